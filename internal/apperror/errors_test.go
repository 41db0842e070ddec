package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSafeMessage_UnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("saving note: %w", NewNotFound("note not found"))
	if got := SafeMessage(wrapped); got != "note not found" {
		t.Errorf("SafeMessage = %q", got)
	}
	if got := SafeCode(wrapped); got != http.StatusNotFound {
		t.Errorf("SafeCode = %d", got)
	}
}

func TestSafeMessage_HidesInfraErrors(t *testing.T) {
	err := errors.New("Error 1146: Table 'notes.notes' doesn't exist")
	if got := SafeMessage(err); got != "an unexpected error occurred" {
		t.Errorf("SafeMessage leaked %q", got)
	}
	if got := SafeCode(err); got != http.StatusInternalServerError {
		t.Errorf("SafeCode = %d", got)
	}
}

func TestNewUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("redis down")
	err := NewUnavailable("save failed", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if err.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d", err.Code)
	}
}
