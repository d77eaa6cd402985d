package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain", base, Internal},
		{"tagged", New(Decode, "transcode", base), Decode},
		{"wrapped_tagged", fmt.Errorf("outer: %w", New(Inference, "unit 1", base)), Inference},
		{"nil", nil, Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewNil(t *testing.T) {
	if err := New(Decode, "x", nil); err != nil {
		t.Errorf("New(nil) = %v, want nil", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(FormatValidation, "validate", errors.New("channels = 2, want 1"))
	if got := err.Error(); got != "format_validation: validate: channels = 2, want 1" {
		t.Errorf("Error() = %q", got)
	}
	if got := Cause(err); got != "channels = 2, want 1" {
		t.Errorf("Cause() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("engine down")
	err := New(Inference, "unit 0", base)
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped cause")
	}
	if !Is(err, Inference) {
		t.Error("Is(err, Inference) = false")
	}
	if Is(err, Decode) {
		t.Error("Is(err, Decode) = true")
	}
}
