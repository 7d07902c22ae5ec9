package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFactoryCodes(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"validation", NewValidation("bad input"), CodeValidation, http.StatusBadRequest},
		{"missing customer info", NewMissingCustomerInfo(), CodeMissingCustomerInfo, http.StatusBadRequest},
		{"sync", NewSync("list tables", cause), CodeSync, http.StatusBadGateway},
		{"mutation", NewMutation("rejected", cause), CodeMutation, http.StatusUnprocessableEntity},
		{"partial failure", NewPartialFailure("a", "b", cause), CodePartialFailure, http.StatusConflict},
		{"timeout", NewTimeout("GET /tables", cause), CodeTimeout, http.StatusGatewayTimeout},
		{"busy", NewBusy("42"), CodeBusy, http.StatusConflict},
		{"not found", NewNotFound("table", 7), CodeNotFound, http.StatusNotFound},
		{"business rule", NewBusinessRule("nope"), CodeBusinessRule, http.StatusUnprocessableEntity},
		{"conflict", NewConflict("clash"), CodeConflict, http.StatusConflict},
		{"internal", NewInternal(cause), CodeInternal, http.StatusInternalServerError},
		{"unauthorized", NewUnauthorized("who"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbidden("no"), CodeForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestMutationKeepsServerDetailVerbatim(t *testing.T) {
	err := NewMutation("Target table already has an open invoice", errors.New("status 422"))
	if err.Message != "Target table already has an open invoice" {
		t.Errorf("Message = %q, want the server detail verbatim", err.Message)
	}

	fallback := NewMutation("", errors.New("status 422"))
	if fallback.Message == "" {
		t.Error("empty detail should fall back to a generic message")
	}
}

func TestUnwrapAndAs(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSync("list tables", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}

	wrapped := fmt.Errorf("refresh: %w", err)
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("AsAppError should find the AppError in a wrapped chain")
	}
	if appErr.Code != CodeSync {
		t.Errorf("Code = %s, want %s", appErr.Code, CodeSync)
	}
}

func TestPredicates(t *testing.T) {
	if !IsValidation(NewValidation("x")) || !IsValidation(NewMissingCustomerInfo()) {
		t.Error("IsValidation should cover both local pre-flight codes")
	}
	if IsValidation(NewSync("x", nil)) {
		t.Error("IsValidation should reject sync errors")
	}
	if !IsPartialFailure(NewPartialFailure("a", "b", nil)) {
		t.Error("IsPartialFailure failed on a partial failure")
	}
	if !IsSync(NewSync("x", nil)) {
		t.Error("IsSync failed on a sync error")
	}
	if !IsNotFound(NewNotFound("x", 1)) {
		t.Error("IsNotFound failed on a not found error")
	}
	if IsAppError(errors.New("plain")) {
		t.Error("IsAppError should reject plain errors")
	}
	if GetHTTPStatus(errors.New("plain")) != http.StatusInternalServerError {
		t.Error("plain errors should map to 500")
	}
}

func TestWithDetail(t *testing.T) {
	err := NewValidation("bad").WithDetail("field", "amount").WithDetail("value", "-1")
	if err.Details["field"] != "amount" || err.Details["value"] != "-1" {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestPartialFailureDetails(t *testing.T) {
	err := NewPartialFailure("debt record creation", "payment recording", errors.New("timeout")).
		WithDetail("debt_record_id", "91")
	if err.Details["committed_step"] != "debt record creation" {
		t.Errorf("committed_step = %v", err.Details["committed_step"])
	}
	if err.Details["failed_step"] != "payment recording" {
		t.Errorf("failed_step = %v", err.Details["failed_step"])
	}
	if err.Details["debt_record_id"] != "91" {
		t.Errorf("debt_record_id = %v", err.Details["debt_record_id"])
	}
}
