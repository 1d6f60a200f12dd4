package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/palisadehq/palisade/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "bad_request", "Invalid subject key")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "Invalid subject key", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, 400, "bad_request", "Invalid policy values", "windowMinutes must be between 5 and 1440")

	assert.Equal(t, 400, w.Code)

	var resp pkghttp.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "Invalid policy values", resp.Message)
	assert.Equal(t, "windowMinutes must be between 5 and 1440", resp.Details)
}

// One case per writer, covering every status the security surface returns.
func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w *httptest.ResponseRecorder)
		wantCode  int
		wantError string
		wantMsg   string
	}{
		{
			name:      "bad request",
			write:     func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "Invalid subject key") },
			wantCode:  400,
			wantError: "bad_request",
			wantMsg:   "Invalid subject key",
		},
		{
			name:      "unauthorized",
			write:     func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "Invalid or expired token") },
			wantCode:  401,
			wantError: "unauthorized",
			wantMsg:   "Invalid or expired token",
		},
		{
			name:      "forbidden",
			write:     func(w *httptest.ResponseRecorder) { pkghttp.WriteForbidden(w, "Not permitted for this subject") },
			wantCode:  403,
			wantError: "forbidden",
			wantMsg:   "Not permitted for this subject",
		},
		{
			name:      "not found",
			write:     func(w *httptest.ResponseRecorder) { pkghttp.WriteNotFound(w, "No lockout for subject") },
			wantCode:  404,
			wantError: "not_found",
			wantMsg:   "No lockout for subject",
		},
		{
			name: "conflict",
			write: func(w *httptest.ResponseRecorder) {
				pkghttp.WriteConflict(w, "Lockout decision conflict. Re-query lockout status.")
			},
			wantCode:  409,
			wantError: "conflict",
			wantMsg:   "Lockout decision conflict. Re-query lockout status.",
		},
		{
			name: "too many requests",
			write: func(w *httptest.ResponseRecorder) {
				pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
			},
			wantCode:  429,
			wantError: "rate_limit_exceeded",
			wantMsg:   "Too many requests. Please try again later.",
		},
		{
			name: "service unavailable",
			write: func(w *httptest.ResponseRecorder) {
				pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
			},
			wantCode:  503,
			wantError: "service_unavailable",
			wantMsg:   "Service temporarily unavailable",
		},
		{
			name:      "internal error",
			write:     func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "Internal server error") },
			wantCode:  500,
			wantError: "internal_error",
			wantMsg:   "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantCode, w.Code)

			var resp pkghttp.ErrorResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteError(w, 401, "unauthorized", "Invalid token")

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)

	assert.Contains(t, resp, "error")
	assert.Contains(t, resp, "message")
	assert.Equal(t, "unauthorized", resp["error"])
	assert.Equal(t, "Invalid token", resp["message"])
}
