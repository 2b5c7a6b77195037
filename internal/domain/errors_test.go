package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := NewValidationError("File type not allowed. Allowed types: %s", "png")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ValidationError to match ErrInvalidInput")
	}
	if errors.Is(err, ErrInternal) {
		t.Errorf("ValidationError must not match ErrInternal")
	}
	if err.Error() != "File type not allowed. Allowed types: png" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	wrapped := fmt.Errorf("normalize: %w", err)
	var ve *ValidationError
	if !errors.As(wrapped, &ve) {
		t.Fatalf("expected wrapped error to unwrap to ValidationError")
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("save image", cause)

	if !errors.Is(err, ErrInternal) {
		t.Errorf("expected ErrInternal")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to remain reachable")
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Errorf("internal error must not match ErrInvalidInput")
	}
}

func TestValidRating(t *testing.T) {
	for _, tc := range []struct {
		value int
		want  bool
	}{
		{0, false}, {1, true}, {3, true}, {5, true}, {6, false}, {-1, false},
	} {
		if got := ValidRating(tc.value); got != tc.want {
			t.Errorf("ValidRating(%d) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
