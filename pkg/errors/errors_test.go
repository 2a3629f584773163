package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewInvalidInputError("room id missing")
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("Expected 400, got: %d", err.HTTPStatus)
	}
	if err.Error() != "INVALID_INPUT: room id missing" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(cause, ErrCodeInternal, "handler failed", http.StatusInternalServerError)

	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be reachable via errors.Is")
	}
}

func TestGetAppErrorFromChain(t *testing.T) {
	app := NewNotFoundError("room")
	wrapped := fmt.Errorf("outer: %w", app)

	got := GetAppError(wrapped)
	if got == nil || got.Code != ErrCodeNotFound {
		t.Errorf("Expected NOT_FOUND from chain, got: %v", got)
	}

	if GetAppError(errors.New("plain")) != nil {
		t.Error("Expected nil for non-app error")
	}
}
