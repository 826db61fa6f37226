package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "Invalid request format", ErrInvalidRequest.Error())
	assert.Equal(t, "", (&APIError{StatusCode: http.StatusInternalServerError}).Error())
}

func TestAPIError_Render(t *testing.T) {
	tests := []struct {
		name       string
		apiError   *APIError
		wantStatus int
	}{
		{"bad request", ErrInvalidRequest, http.StatusBadRequest},
		{"rate limited", ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"bad gateway", ErrAuthorityResponse, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			require.NoError(t, render.Render(w, r, tt.apiError))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAPIError_WithTraceID(t *testing.T) {
	withTrace := ErrInternalServer.WithTraceID("trace-123")

	assert.Equal(t, "trace-123", withTrace.TraceID)
	assert.Empty(t, ErrInternalServer.TraceID, "predefined errors must not be mutated")
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{ErrValidationFailed, http.StatusBadRequest, "VALIDATION_FAILED"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{ErrInternalServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{ErrAuthorityResponse, http.StatusBadGateway, "AUTHORITY_RESPONSE_INVALID"},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestInvalidRequestWithError(t *testing.T) {
	err := InvalidRequestWithError(fmt.Errorf("unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", err.ErrorCode)
	assert.Equal(t, "unexpected EOF", err.Details)
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("license_key", "is required")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, ValidationError{Field: "license_key", Message: "is required"}, err.Details)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty key", fmt.Errorf("validate: %w", ErrEmptyLicenseKey), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"malformed response", fmt.Errorf("%w: not json", ErrMalformedResponse), http.StatusBadGateway, "AUTHORITY_RESPONSE_INVALID"},
		{"connectivity", fmt.Errorf("%w: timeout", ErrConnectivity), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.ErrorCode)
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, ErrRateLimitExceeded.WithTraceID("abc"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.False(t, response.Success)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", response.Error.ErrorCode)
	assert.Equal(t, "abc", response.Error.TraceID)
}

func TestErrorResponse_Render(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/license/validate", nil)

	require.NoError(t, render.Render(w, r, NewErrorResponse(ErrNotFound)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}
