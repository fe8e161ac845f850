package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeConflict,
				Message: "resource already reserved",
			},
			expected: "CONFLICT: resource already reserved",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestTaxonomyConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"outside availability", OutsideAvailability("interval not open"), CodeOutsideAvailability, http.StatusUnprocessableEntity},
		{"conflict", Conflict("slot taken"), CodeConflict, http.StatusConflict},
		{"hold expired", HoldExpired("h-1"), CodeHoldExpired, http.StatusGone},
		{"hold consumed", HoldConsumed("h-1"), CodeHoldConsumed, http.StatusConflict},
		{"idempotency conflict", IdempotencyConflict("k-1"), CodeIdempotencyConflict, http.StatusConflict},
		{"invalid interval", InvalidInterval("start does not exist"), CodeInvalidInterval, http.StatusBadRequest},
		{"invalid transition", InvalidTransition("canceled", "confirmed"), CodeInvalidTransition, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := Conflict("slot taken")
	if !HasCode(err, CodeConflict) {
		t.Error("HasCode should match the error's code")
	}
	if HasCode(err, CodeHoldExpired) {
		t.Error("HasCode should not match a different code")
	}
	if HasCode(errors.New("plain"), CodeConflict) {
		t.Error("HasCode should be false for non-AppError")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Booking")
	if AsAppError(appErr) != appErr {
		t.Error("AsAppError should return the same AppError")
	}

	plain := errors.New("boom")
	converted := AsAppError(plain)
	if converted.Code != CodeInternal {
		t.Errorf("expected %s, got %s", CodeInternal, converted.Code)
	}
	if converted.Err != plain {
		t.Error("converted error should wrap the original")
	}
}
