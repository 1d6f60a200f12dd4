package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/palisadehq/palisade/internal/models"
	pkglogger "github.com/palisadehq/palisade/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePolicyRepo struct {
	policies  map[string]*models.SecurityPolicy
	getErr    error
	upsertErr error
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{policies: make(map[string]*models.SecurityPolicy)}
}

func (f *fakePolicyRepo) GetBySubject(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	policy, ok := f.policies[subjectKey]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *policy
	return &cp, nil
}

func (f *fakePolicyRepo) Upsert(ctx context.Context, policy *models.SecurityPolicy) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *policy
	f.policies[policy.SubjectKey] = &cp
	return nil
}

func newPolicyService(repo *fakePolicyRepo) *PolicyService {
	logger := slog.Default()
	return NewPolicyService(repo, models.SecurityPolicy{
		MaxFailedAttempts:      models.DefaultMaxFailedAttempts,
		LockoutDurationMinutes: models.DefaultLockoutDurationMinutes,
		WindowMinutes:          models.DefaultWindowMinutes,
	}, logger, pkglogger.NewAuditLogger(logger))
}

func TestPolicyService_GetEffective_FallsBackToDefaults(t *testing.T) {
	svc := newPolicyService(newFakePolicyRepo())

	policy, err := svc.GetEffective(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", policy.SubjectKey)
	assert.Equal(t, models.DefaultMaxFailedAttempts, policy.MaxFailedAttempts)
	assert.Equal(t, models.DefaultLockoutDurationMinutes, policy.LockoutDurationMinutes)
	assert.Equal(t, models.DefaultWindowMinutes, policy.WindowMinutes)
}

func TestPolicyService_GetEffective_ReturnsStoredPolicy(t *testing.T) {
	repo := newFakePolicyRepo()
	repo.policies["bob@example.com"] = &models.SecurityPolicy{
		SubjectKey:             "bob@example.com",
		MaxFailedAttempts:      10,
		LockoutDurationMinutes: 5,
		WindowMinutes:          30,
	}
	svc := newPolicyService(repo)

	policy, err := svc.GetEffective(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, 10, policy.MaxFailedAttempts)
	assert.Equal(t, 5, policy.LockoutDurationMinutes)
	assert.Equal(t, 30, policy.WindowMinutes)
}

func TestPolicyService_GetEffective_PropagatesStoreError(t *testing.T) {
	repo := newFakePolicyRepo()
	repo.getErr = errors.New("connection refused")
	svc := newPolicyService(repo)

	_, err := svc.GetEffective(context.Background(), "carol@example.com")
	assert.Error(t, err)
}

func TestPolicyService_Update_StoresPolicy(t *testing.T) {
	repo := newFakePolicyRepo()
	svc := newPolicyService(repo)

	err := svc.Update(context.Background(), &models.SecurityPolicy{
		SubjectKey:             "dave@example.com",
		MaxFailedAttempts:      3,
		LockoutDurationMinutes: 60,
		WindowMinutes:          15,
	})
	require.NoError(t, err)
	assert.Contains(t, repo.policies, "dave@example.com")
}

func TestPolicyService_Update_RejectsEmptySubject(t *testing.T) {
	svc := newPolicyService(newFakePolicyRepo())

	err := svc.Update(context.Background(), &models.SecurityPolicy{
		MaxFailedAttempts:      3,
		LockoutDurationMinutes: 60,
		WindowMinutes:          15,
	})
	assert.ErrorIs(t, err, models.ErrInvalidSubject)
}

func TestPolicyService_Update_RejectsOutOfBoundsValues(t *testing.T) {
	svc := newPolicyService(newFakePolicyRepo())

	cases := []struct {
		name   string
		policy models.SecurityPolicy
	}{
		{"zero max attempts", models.SecurityPolicy{SubjectKey: "x@example.com", MaxFailedAttempts: 0, LockoutDurationMinutes: 15, WindowMinutes: 60}},
		{"zero lockout duration", models.SecurityPolicy{SubjectKey: "x@example.com", MaxFailedAttempts: 5, LockoutDurationMinutes: 0, WindowMinutes: 60}},
		{"zero window", models.SecurityPolicy{SubjectKey: "x@example.com", MaxFailedAttempts: 5, LockoutDurationMinutes: 15, WindowMinutes: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Update(context.Background(), &tc.policy)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}
