package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
)

type validateBody struct {
	LicenseKey string `json:"license_key" validate:"required,licensekey"`
	Mode       string `json:"mode,omitempty" validate:"omitempty,oneof=online offline"`
}

func newValidation() *ValidationMiddleware {
	return NewValidationMiddleware(nil, apierrors.NewErrorHandler(nil, false))
}

func TestValidationMiddleware_ValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"valid json", http.MethodPost, `{"license_key":"ABC"}`, http.StatusOK},
		{"empty body", http.MethodPost, ``, http.StatusOK},
		{"get skipped", http.MethodGet, `not json`, http.StatusOK},
		{"invalid json", http.MethodPost, `{"license_key":`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"k":"` + strings.Repeat("a", DefaultMaxBodySize) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := newValidation().ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				seen = string(b)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/license/validate", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.body, seen, "body must be restored for the handler")
			}
		})
	}
}

func TestValidationMiddleware_ValidateStruct(t *testing.T) {
	m := newValidation()

	tests := []struct {
		name       string
		body       validateBody
		wantFields []string
	}{
		{name: "valid", body: validateBody{LicenseKey: "C1B6DE-39A6E3"}},
		{name: "missing key", body: validateBody{}, wantFields: []string{"license_key"}},
		{name: "whitespace in key", body: validateBody{LicenseKey: "C1B6 DE"}, wantFields: []string{"license_key"}},
		{name: "control char in key", body: validateBody{LicenseKey: "C1B6\x00DE"}, wantFields: []string{"license_key"}},
		{name: "bad mode", body: validateBody{LicenseKey: "K", Mode: "cached"}, wantFields: []string{"mode"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateStruct(&tt.body)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details, ok := apiErr.Details.([]apierrors.ValidationError)
			require.True(t, ok)
			var fields []string
			for _, d := range details {
				fields = append(fields, d.Field)
				assert.NotEmpty(t, d.Message)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json", http.MethodPost, "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"get", http.MethodGet, "", ``, http.StatusOK},
		{"bodiless post", http.MethodPost, "", ``, http.StatusOK},
		{"missing", http.MethodPost, "", `{}`, http.StatusBadRequest},
		{"unsupported", http.MethodPost, "text/plain", `{}`, http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ContentTypeValidator("application/json")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			r := httptest.NewRequest(tt.method, "/api/license/validate", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				var body apierrors.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.False(t, body.Success)
			}
		})
	}
}

func TestQueryParamValidator_ValidateInt(t *testing.T) {
	v := NewQueryParamValidator(apierrors.NewErrorHandler(nil, false))

	tests := []struct {
		query      string
		want       int
		wantOK     bool
		wantStatus int
	}{
		{"", 2, true, http.StatusOK},
		{"?retention_days=7", 7, true, http.StatusOK},
		{"?retention_days=abc", 0, false, http.StatusBadRequest},
		{"?retention_days=0", 0, false, http.StatusBadRequest},
		{"?retention_days=1000", 0, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			got, ok := v.ValidateInt(w, httptest.NewRequest(http.MethodPost, "/api/license/cache/prune"+tt.query, nil), "retention_days", 1, 365, 2)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
