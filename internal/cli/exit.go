package cli

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/pairnull/pkg/errors"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
	ExitNotConverged = 3
	ExitInterrupted  = 130
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, errors.ErrCodeConvergenceFailure):
		return ExitNotConverged
	case errors.IsInvalidInput(err),
		errors.Is(err, errors.ErrCodeInvalidFormat),
		errors.Is(err, errors.ErrCodeInvalidOption),
		errors.Is(err, errors.ErrCodeInsufficientArea),
		errors.Is(err, errors.ErrCodeFileNotFound):
		return ExitInvalidInput
	}
	return ExitFailure
}
