package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidatePositive rejects values that are not strictly positive and finite.
func ValidatePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return New(ErrCodeInvalidOption, "%s must be a positive finite number, got %v", name, v)
	}
	return nil
}

// ValidateMinInt rejects integers below min.
func ValidateMinInt(name string, v, min int) error {
	if v < min {
		return New(ErrCodeInvalidOption, "%s must be at least %d, got %d", name, min, v)
	}
	return nil
}

// ValidateFraction rejects values outside the half-open interval [0, 1).
func ValidateFraction(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v >= 1 {
		return New(ErrCodeInvalidOption, "%s must be in [0, 1), got %v", name, v)
	}
	return nil
}

// ValidateCoordinate rejects non-finite coordinates. The index is reported
// so callers can locate the offending row.
func ValidateCoordinate(set string, index int, x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return New(ErrCodeInvalidInput, "%s: point %d has non-finite coordinates (%v, %v)", set, index, x, y)
	}
	return nil
}

// ValidateRunID validates an externally supplied run identifier.
//
// Validation rules:
//   - Cannot be empty
//   - Maximum length of 64 characters
//   - Only letters, digits and '-'
func ValidateRunID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "run id cannot be empty")
	}
	if len(id) > 64 {
		return New(ErrCodeInvalidInput, "run id too long (max 64 characters)")
	}
	if strings.IndexFunc(id, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-')
	}) >= 0 {
		return New(ErrCodeInvalidInput, "run id contains invalid characters: %q", id)
	}
	return nil
}
