package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/palisadehq/palisade/internal/auth"
	"github.com/palisadehq/palisade/internal/models"
	pkghttp "github.com/palisadehq/palisade/pkg/http"
)

// LockoutServiceInterface defines the interface for the lockout engine
type LockoutServiceInterface interface {
	RecordAttemptAndEvaluate(ctx context.Context, subjectKey string, success bool, metadata models.AttemptMetadata) (*models.LockoutDecision, error)
	GetLockoutInfo(ctx context.Context, subjectKey string) (*models.LockoutInfo, error)
	ResetLockout(ctx context.Context, subjectKey string) error
}

// RateLimiterInterface defines the admission check used by the handler
type RateLimiterInterface interface {
	Allow(ctx context.Context, subjectKey, endpoint, ipAddress string, maxRequests int, window time.Duration) bool
}

// RateLimits holds per-endpoint admission limits for the security surface
type RateLimits struct {
	LoginMaxRequests  int
	StatusMaxRequests int
	Window            time.Duration
}

// SecurityHandler handles the account-protection HTTP surface
type SecurityHandler struct {
	lockouts LockoutServiceInterface
	limiter  RateLimiterInterface
	limits   RateLimits
	ipConfig *pkghttp.IPConfig
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(lockouts LockoutServiceInterface, limiter RateLimiterInterface, limits RateLimits, ipConfig *pkghttp.IPConfig) *SecurityHandler {
	return &SecurityHandler{
		lockouts: lockouts,
		limiter:  limiter,
		limits:   limits,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// RecordAttemptRequest represents the request body for recording a login attempt
type RecordAttemptRequest struct {
	SubjectKey        string            `json:"subjectKey" validate:"required,max=320"`
	Success           bool              `json:"success"`
	DeviceFingerprint string            `json:"deviceFingerprint"`
	DeviceInfo        map[string]string `json:"deviceInfo,omitempty"`
	LocationInfo      map[string]string `json:"locationInfo,omitempty"`
	IPAddress         string            `json:"ipAddress,omitempty"`
	UserAgent         string            `json:"userAgent,omitempty"`
	FailureReason     *string           `json:"failureReason,omitempty"`
}

// ResetResponse represents the response body for a lockout reset
type ResetResponse struct {
	Success bool `json:"success"`
}

// RecordAttempt handles recording a login attempt and returning the lockout
// decision. This is the one pre-authentication operation on the surface, so
// admission is keyed by caller IP rather than caller identity.
func (h *SecurityHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req RecordAttemptRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	subjectKey := NormalizeSubjectKey(req.SubjectKey)
	if subjectKey == "" {
		pkghttp.WriteBadRequest(w, "Invalid subject key")
		return
	}

	callerIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	if !h.limiter.Allow(r.Context(), callerIP, "login", callerIP, h.limits.LoginMaxRequests, h.limits.Window) {
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		return
	}

	// Prefer the gateway-observed caller IP; the body value is a fallback for
	// clients reporting the device address themselves.
	ipAddress := req.IPAddress
	if ipAddress == "" {
		ipAddress = callerIP
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.Header.Get("User-Agent")
	}

	metadata := models.AttemptMetadata{
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceInfo:        req.DeviceInfo,
		LocationInfo:      req.LocationInfo,
		IPAddress:         ipAddress,
		UserAgent:         userAgent,
		FailureReason:     req.FailureReason,
	}

	decision, err := h.lockouts.RecordAttemptAndEvaluate(r.Context(), subjectKey, req.Success, metadata)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidSubject):
			pkghttp.WriteBadRequest(w, "Invalid subject key")
		case errors.Is(err, models.ErrLockoutConflict):
			pkghttp.WriteConflict(w, "Lockout decision conflict. Re-query lockout status.")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(decision)
}

// GetLockoutStatus handles the read-only lockout status query. The caller
// must be authenticated as the subject or an administrator.
func (h *SecurityHandler) GetLockoutStatus(w http.ResponseWriter, r *http.Request) {
	subjectKey := NormalizeSubjectKey(chi.URLParam(r, "subjectKey"))
	if subjectKey == "" {
		pkghttp.WriteBadRequest(w, "Invalid subject key")
		return
	}

	claims := auth.GetCallerFromContext(r)
	if !auth.CanActOn(claims, subjectKey) {
		pkghttp.WriteForbidden(w, "Not permitted for this subject")
		return
	}

	callerIP := pkghttp.ExtractClientIP(r, h.ipConfig)
	if !h.limiter.Allow(r.Context(), callerIP, "status", callerIP, h.limits.StatusMaxRequests, h.limits.Window) {
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		return
	}

	info, err := h.lockouts.GetLockoutInfo(r.Context(), subjectKey)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}

// ResetLockout handles an explicit lockout reset, e.g. after a password
// reset through the identity provider.
func (h *SecurityHandler) ResetLockout(w http.ResponseWriter, r *http.Request) {
	subjectKey := NormalizeSubjectKey(chi.URLParam(r, "subjectKey"))
	if subjectKey == "" {
		pkghttp.WriteBadRequest(w, "Invalid subject key")
		return
	}

	claims := auth.GetCallerFromContext(r)
	if !auth.CanActOn(claims, subjectKey) {
		pkghttp.WriteForbidden(w, "Not permitted for this subject")
		return
	}

	if err := h.lockouts.ResetLockout(r.Context(), subjectKey); err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ResetResponse{Success: true})
}

// NormalizeSubjectKey lowercases and trims a subject key. Returns "" for
// keys that are empty after normalization.
func NormalizeSubjectKey(subjectKey string) string {
	return strings.ToLower(strings.TrimSpace(subjectKey))
}
