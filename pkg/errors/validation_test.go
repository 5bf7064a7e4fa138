package errors

import (
	"math"
	"testing"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		wantErr bool
	}{
		{"positive", 0.001, false},
		{"large", 1e9, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("tol", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePositive(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidOption) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidOption)
			}
		})
	}
}

func TestValidateMinInt(t *testing.T) {
	if err := ValidateMinInt("bins", 1, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateMinInt("bins", 0, 1); err == nil {
		t.Error("expected error for 0 < 1")
	}
}

func TestValidateFraction(t *testing.T) {
	tests := []struct {
		input   float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{0.999, false},
		{1, true},
		{-0.1, true},
		{math.NaN(), true},
	}
	for _, tt := range tests {
		err := ValidateFraction("overlap", tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFraction(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateCoordinate(t *testing.T) {
	if err := ValidateCoordinate("x1", 0, 10, 45); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateCoordinate("x1", 3, math.NaN(), 45)
	if err == nil || !Is(err, ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if err := ValidateCoordinate("x2", 1, 0, math.Inf(-1)); err == nil {
		t.Error("expected error for infinite latitude")
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "6f1c2b1e-8d3a-4f7e-9a51-2b9d8e7c6a10", false},
		{"simple", "run1", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 65)), true},
		{"slash", "../etc", true},
		{"space", "a b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRunID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
