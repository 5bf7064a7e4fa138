package cli

import (
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/pairnull/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), ExitInterrupted},
		{"not converged", &errors.ConvergenceError{Tries: 10}, ExitNotConverged},
		{"invalid input", errors.New(errors.ErrCodeInvalidInput, "x1 has 1 point"), ExitInvalidInput},
		{"invalid crs", errors.New(errors.ErrCodeInvalidCRS, "mismatch"), ExitInvalidInput},
		{"empty mask", errors.New(errors.ErrCodeInsufficientArea, "no cells"), ExitInvalidInput},
		{"missing file", errors.New(errors.ErrCodeFileNotFound, "x1.csv"), ExitInvalidInput},
		{"other", fmt.Errorf("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
