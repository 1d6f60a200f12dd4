package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/palisadehq/palisade/internal/auth"
	"github.com/palisadehq/palisade/internal/models"
	pkghttp "github.com/palisadehq/palisade/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithCallerContext adds caller claims to request context for testing
// authenticated endpoints
func WithCallerContext(req *http.Request, subjectKey string) *http.Request {
	claims := &models.TokenClaims{
		SubjectKey: subjectKey,
	}
	ctx := context.WithValue(req.Context(), auth.CallerContextKey, claims)
	return req.WithContext(ctx)
}

// WithAdminContext adds administrator claims to request context
func WithAdminContext(req *http.Request, subjectKey string) *http.Request {
	claims := &models.TokenClaims{
		SubjectKey: subjectKey,
		Role:       "admin",
	}
	ctx := context.WithValue(req.Context(), auth.CallerContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam injects a chi route parameter so handlers reading URL params
// can be called directly without a router.
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	RecordAttemptAndEvaluateFunc func(ctx context.Context, subjectKey string, success bool, metadata models.AttemptMetadata) (*models.LockoutDecision, error)
	GetLockoutInfoFunc           func(ctx context.Context, subjectKey string) (*models.LockoutInfo, error)
	ResetLockoutFunc             func(ctx context.Context, subjectKey string) error
}

func (m *MockLockoutService) RecordAttemptAndEvaluate(ctx context.Context, subjectKey string, success bool, metadata models.AttemptMetadata) (*models.LockoutDecision, error) {
	if m.RecordAttemptAndEvaluateFunc == nil {
		return &models.LockoutDecision{}, nil
	}
	return m.RecordAttemptAndEvaluateFunc(ctx, subjectKey, success, metadata)
}

func (m *MockLockoutService) GetLockoutInfo(ctx context.Context, subjectKey string) (*models.LockoutInfo, error) {
	if m.GetLockoutInfoFunc == nil {
		return &models.LockoutInfo{}, nil
	}
	return m.GetLockoutInfoFunc(ctx, subjectKey)
}

func (m *MockLockoutService) ResetLockout(ctx context.Context, subjectKey string) error {
	if m.ResetLockoutFunc == nil {
		return nil
	}
	return m.ResetLockoutFunc(ctx, subjectKey)
}

// MockRateLimiter implements RateLimiterInterface for testing
type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, subjectKey, endpoint, ipAddress string, maxRequests int, window time.Duration) bool
}

func (m *MockRateLimiter) Allow(ctx context.Context, subjectKey, endpoint, ipAddress string, maxRequests int, window time.Duration) bool {
	if m.AllowFunc == nil {
		return true
	}
	return m.AllowFunc(ctx, subjectKey, endpoint, ipAddress, maxRequests, window)
}

// MockPolicyService implements PolicyServiceInterface for testing
type MockPolicyService struct {
	GetEffectiveFunc func(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error)
	UpdateFunc       func(ctx context.Context, policy *models.SecurityPolicy) error
}

func (m *MockPolicyService) GetEffective(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error) {
	if m.GetEffectiveFunc == nil {
		return models.DefaultSecurityPolicy(subjectKey), nil
	}
	return m.GetEffectiveFunc(ctx, subjectKey)
}

func (m *MockPolicyService) Update(ctx context.Context, policy *models.SecurityPolicy) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, policy)
}

// DefaultTestRateLimits returns permissive limits for handler tests.
func DefaultTestRateLimits() RateLimits {
	return RateLimits{
		LoginMaxRequests:  10,
		StatusMaxRequests: 30,
		Window:            time.Minute,
	}
}
