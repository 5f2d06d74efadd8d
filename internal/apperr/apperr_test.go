package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"busy", ErrBusy, http.StatusConflict},
		{"wrapped busy", fmt.Errorf("generate: %w", ErrBusy), http.StatusConflict},
		{"validation", Validation("a prompt is required"), http.StatusBadRequest},
		{"cancelled", ErrCancelled, http.StatusOK},
		{"remote", Remote("failed to generate image", cause), http.StatusBadGateway},
		{"unknown", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Remote("failed to search images", cause)

	if !errors.Is(err, ErrRemote) {
		t.Error("errors.Is(err, ErrRemote) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if err.Error() != "failed to search images: timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Message(err) != "failed to search images" {
		t.Errorf("Message() = %q", Message(err))
	}
	if Message(cause) != "timeout" {
		t.Errorf("Message(plain) = %q", Message(cause))
	}
}
