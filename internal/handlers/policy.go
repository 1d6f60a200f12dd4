package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/palisadehq/palisade/internal/auth"
	"github.com/palisadehq/palisade/internal/models"
	pkghttp "github.com/palisadehq/palisade/pkg/http"
)

// PolicyServiceInterface defines the interface for policy management
type PolicyServiceInterface interface {
	GetEffective(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error)
	Update(ctx context.Context, policy *models.SecurityPolicy) error
}

// PolicyHandler handles per-subject security policy management
type PolicyHandler struct {
	service PolicyServiceInterface
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyServiceInterface) *PolicyHandler {
	return &PolicyHandler{service: service}
}

// UpdatePolicyRequest represents the request body for updating a policy
type UpdatePolicyRequest struct {
	MaxFailedAttempts      int `json:"maxFailedAttempts" validate:"required,gte=1,lte=20"`
	LockoutDurationMinutes int `json:"lockoutDurationMinutes" validate:"required,gte=1,lte=1440"`
	WindowMinutes          int `json:"windowMinutes" validate:"required,gte=5,lte=1440"`
}

// PolicyResponse represents a security policy returned to the caller
type PolicyResponse struct {
	SubjectKey             string `json:"subjectKey"`
	MaxFailedAttempts      int    `json:"maxFailedAttempts"`
	LockoutDurationMinutes int    `json:"lockoutDurationMinutes"`
	WindowMinutes          int    `json:"windowMinutes"`
}

// GetPolicy returns the effective policy for a subject, falling back to the
// process-wide defaults when none is stored.
func (h *PolicyHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
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

	policy, err := h.service.GetEffective(r.Context(), subjectKey)
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
	json.NewEncoder(w).Encode(PolicyResponse{
		SubjectKey:             policy.SubjectKey,
		MaxFailedAttempts:      policy.MaxFailedAttempts,
		LockoutDurationMinutes: policy.LockoutDurationMinutes,
		WindowMinutes:          policy.WindowMinutes,
	})
}

// UpdatePolicy stores a subject's policy. Takes effect on the next
// evaluation; in-flight decisions keep the policy they loaded.
func (h *PolicyHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
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

	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	policy := &models.SecurityPolicy{
		SubjectKey:             subjectKey,
		MaxFailedAttempts:      req.MaxFailedAttempts,
		LockoutDurationMinutes: req.LockoutDurationMinutes,
		WindowMinutes:          req.WindowMinutes,
	}

	if err := h.service.Update(r.Context(), policy); err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest), errors.Is(err, models.ErrInvalidSubject):
			pkghttp.WriteBadRequest(w, "Invalid policy values")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(PolicyResponse{
		SubjectKey:             policy.SubjectKey,
		MaxFailedAttempts:      policy.MaxFailedAttempts,
		LockoutDurationMinutes: policy.LockoutDurationMinutes,
		WindowMinutes:          policy.WindowMinutes,
	})
}
