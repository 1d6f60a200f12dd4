package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/palisadehq/palisade/internal/auth"
	"github.com/palisadehq/palisade/internal/config"
	"github.com/palisadehq/palisade/internal/database"
	"github.com/palisadehq/palisade/internal/handlers"
	middlewareCustom "github.com/palisadehq/palisade/internal/middleware"
	"github.com/palisadehq/palisade/internal/models"
	"github.com/palisadehq/palisade/internal/routes"
	"github.com/palisadehq/palisade/internal/services"
	pkghttp "github.com/palisadehq/palisade/pkg/http"
	pkglogger "github.com/palisadehq/palisade/pkg/logger"
)

// TestJWTSecret signs caller tokens for integration tests. The identity
// provider would hold this in production.
const TestJWTSecret = "test-secret-32-characters-long-for-testing"

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Config *config.Config

	Lockouts *services.LockoutService
	logger   *slog.Logger
}

// NewTestServer initializes a complete HTTP server against a real database,
// wired the same way main is.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
		Auth: config.AuthConfig{
			JWTSecret: TestJWTSecret,
		},
		Security: config.SecurityConfig{
			MaxFailedAttempts:      3,
			LockoutDurationMinutes: 15,
			WindowMinutes:          60,
			DecisionRetries:        3,
			CleanupInterval:        1 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			LoginMaxRequests:  100,
			StatusMaxRequests: 100,
			WindowMinutes:     1,
			RequestsPerMinute: 1000,
		},
	}

	attemptRepo, lockoutRepo, policyRepo, requestLogRepo := InitializeRepositories(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	lockoutService := services.NewLockoutService(
		attemptRepo,
		lockoutRepo,
		policyRepo,
		services.LockoutConfig{
			MaxFailedAttempts:      cfg.Security.MaxFailedAttempts,
			LockoutDurationMinutes: cfg.Security.LockoutDurationMinutes,
			WindowMinutes:          cfg.Security.WindowMinutes,
			DecisionRetries:        cfg.Security.DecisionRetries,
		},
		logger,
		auditLogger,
	)

	rateLimitService := services.NewRateLimitService(requestLogRepo, logger, auditLogger, nil)

	policyService := services.NewPolicyService(policyRepo, models.SecurityPolicy{
		MaxFailedAttempts:      cfg.Security.MaxFailedAttempts,
		LockoutDurationMinutes: cfg.Security.LockoutDurationMinutes,
		WindowMinutes:          cfg.Security.WindowMinutes,
	}, logger, auditLogger)

	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	securityHandler := handlers.NewSecurityHandler(
		lockoutService,
		rateLimitService,
		handlers.RateLimits{
			LoginMaxRequests:  cfg.RateLimit.LoginMaxRequests,
			StatusMaxRequests: cfg.RateLimit.StatusMaxRequests,
			Window:            time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
		},
		ipConfig,
	)
	policyHandler := handlers.NewPolicyHandler(policyService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, securityHandler, policyHandler, verifier,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})

	server := httptest.NewServer(r)

	return &TestServer{
		Server:   server,
		DB:       db,
		Config:   cfg,
		Lockouts: lockoutService,
		logger:   logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a caller token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// SignCallerToken mints a token for the given subject, as the identity
// provider would.
func SignCallerToken(subjectKey, role string) (string, error) {
	claims := &models.TokenClaims{
		SubjectKey: subjectKey,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(TestJWTSecret))
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
