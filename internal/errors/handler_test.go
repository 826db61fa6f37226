package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewErrorHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	handler := NewErrorHandler(logger, true)
	assert.True(t, handler.includeStack)
	assert.NotNil(t, handler.logger)

	assert.NotNil(t, NewErrorHandler(nil, false).logger)
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantTitle  string
	}{
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
		},
		{
			name:       "context canceled",
			err:        fmt.Errorf("validate: %w", context.Canceled),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
		},
		{
			name:       "api error",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Bad Request",
		},
		{
			name:       "empty license key",
			err:        ErrEmptyLicenseKey,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeLicenseKeyRequired,
			wantTitle:  "License Key Required",
		},
		{
			name:       "invalid cache key",
			err:        fmt.Errorf("%w: %q", ErrInvalidCacheKey, "../etc"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeCacheKeyInvalid,
			wantTitle:  "Invalid Cache Key",
		},
		{
			name:       "malformed authority response",
			err:        fmt.Errorf("%w: unexpected EOF", ErrMalformedResponse),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeAuthorityResponse,
			wantTitle:  "Bad Gateway",
		},
		{
			name:       "authority unreachable",
			err:        fmt.Errorf("%w: connection refused", ErrConnectivity),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeAuthorityUnreachable,
			wantTitle:  "Service Unavailable",
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("something not found"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantTitle:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/license/validate", nil)
			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, tt.wantTitle, body["title"])
			assert.Equal(t, "/api/license/validate", body["instance"])
			assert.Contains(t, body, "trace_id")
			assert.NotContains(t, body, "stack")

			testutil.AssertLogged(t, logs, slog.LevelError, "request failed")
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	w := httptest.NewRecorder()

	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, w.Body.Len())
}

func TestErrorHandler_HandleError_IncludeStack(t *testing.T) {
	handler := NewErrorHandler(nil, true)
	w := httptest.NewRecorder()

	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))

	body := decodeProblem(t, w)
	assert.Contains(t, body["stack"], "goroutine")
}

func TestErrorHandler_apiErrorToProblem(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodGet, "/api/license/status", nil)

	tests := []struct {
		err      *APIError
		wantType string
	}{
		{ErrValidation("license_key", "required"), TypeValidation},
		{ErrNotFound, TypeNotFound},
		{ErrRateLimitExceeded, TypeRateLimit},
		{ErrServiceUnavailable, TypeServiceDown},
		{ErrAuthorityResponse, TypeAuthorityResponse},
		{New(http.StatusConflict, "SOMETHING_ELSE", "x"), TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.ErrorCode, func(t *testing.T) {
			pd := handler.apiErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantType, pd.Type)
			assert.Equal(t, tt.err.StatusCode, pd.Status)
			assert.Equal(t, tt.err.ErrorCode, pd.Extensions["error_code"])
			if tt.err.Details != nil {
				assert.Equal(t, tt.err.Details, pd.Extensions["details"])
			}
		})
	}
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{"production", false},
		{"development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, tt.includeStack)

			w := httptest.NewRecorder()
			handler.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/", nil), "kaboom")

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, TypeInternal, body["type"])
			if tt.includeStack {
				assert.Equal(t, "kaboom", body["panic"])
			} else {
				assert.NotContains(t, body, "panic")
			}
			testutil.AssertLogged(t, logs, slog.LevelError, "panic recovered")
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/license/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeMethodNotAllowed, body["type"])
	assert.Contains(t, body["detail"], "DELETE")
}

func TestErrorHandler_JSON(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	w := httptest.NewRecorder()

	handler.JSON(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusAccepted, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestErrorHandlerConcurrency(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("%w: %d", ErrConnectivity, i))
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		}(i)
	}
	wg.Wait()
}
