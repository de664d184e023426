package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Offer"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Booking", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad payload", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("missing id"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not the owner"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("already booked"), CodeConflict, http.StatusConflict},
		{"gone", Gone("offer expired"), CodeGone, http.StatusGone},
		{"internal", Internal("boom", errors.New("db down")), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("too slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("mongo"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to load store", cause)

	if got := err.Error(); got != fmt.Sprintf("%s: failed to load store (caused by: %v)", CodeInternal, cause) {
		t.Errorf("unexpected error string: %s", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to the cause")
	}
}

func TestAsAppErrorWrapsUnknownErrors(t *testing.T) {
	raw := errors.New("bson decode failure")
	appErr := AsAppError(raw)

	if appErr.Code != CodeInternal {
		t.Errorf("code = %s, want %s", appErr.Code, CodeInternal)
	}
	if appErr.Message == raw.Error() {
		t.Error("raw error text must not leak into the client message")
	}

	original := Conflict("pickup code already used")
	if AsAppError(original) != original {
		t.Error("AsAppError should pass through an existing AppError")
	}
}

func TestWithDetails(t *testing.T) {
	err := InvalidInput("quantity out of range").WithDetails(map[string]any{"quantity": 12})
	if err.Details["quantity"] != 12 {
		t.Errorf("details not attached: %v", err.Details)
	}
}
