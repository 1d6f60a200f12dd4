package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	pkglogger "github.com/palisadehq/palisade/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestEntry struct {
	subjectKey string
	endpoint   string
	at         time.Time
}

// fakeRequestLog is an in-memory request log with injectable failures.
type fakeRequestLog struct {
	clock     *fakeClock
	entries   []requestEntry
	recordErr error
	countErr  error
}

func (f *fakeRequestLog) Record(ctx context.Context, subjectKey, endpoint, ipAddress string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.entries = append(f.entries, requestEntry{subjectKey: subjectKey, endpoint: endpoint, at: f.clock.Now()})
	return nil
}

func (f *fakeRequestLog) CountSince(ctx context.Context, subjectKey, endpoint string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	count := 0
	for _, e := range f.entries {
		if e.subjectKey == subjectKey && e.endpoint == endpoint && !e.at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRequestLog) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	kept := f.entries[:0]
	var deleted int64
	for _, e := range f.entries {
		if e.at.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return deleted, nil
}

func newRateLimitFixture() (*RateLimitService, *fakeRequestLog, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)}
	log := &fakeRequestLog{clock: clock}
	logger := slog.Default()
	svc := NewRateLimitService(log, logger, pkglogger.NewAuditLogger(logger), clock.Now)
	return svc, log, clock
}

func TestRateLimitService_AllowsUpToMax(t *testing.T) {
	svc, _, _ := newRateLimitFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, svc.Allow(ctx, "alice@example.com", "login", "1.2.3.4", 3, time.Minute))
	}
}

func TestRateLimitService_DeniesRequestOverMax(t *testing.T) {
	svc, _, _ := newRateLimitFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, svc.Allow(ctx, "alice@example.com", "login", "1.2.3.4", 3, time.Minute))
	}
	assert.False(t, svc.Allow(ctx, "alice@example.com", "login", "1.2.3.4", 3, time.Minute))
}

func TestRateLimitService_WindowRolloverAllowsAgain(t *testing.T) {
	svc, _, clock := newRateLimitFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, svc.Allow(ctx, "bob@example.com", "login", "1.2.3.4", 3, time.Minute))
	}
	require.False(t, svc.Allow(ctx, "bob@example.com", "login", "1.2.3.4", 3, time.Minute))

	clock.Advance(61 * time.Second)
	assert.True(t, svc.Allow(ctx, "bob@example.com", "login", "1.2.3.4", 3, time.Minute))
}

func TestRateLimitService_KeysAreIndependent(t *testing.T) {
	svc, _, _ := newRateLimitFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, svc.Allow(ctx, "carol@example.com", "login", "1.2.3.4", 3, time.Minute))
	}
	require.False(t, svc.Allow(ctx, "carol@example.com", "login", "1.2.3.4", 3, time.Minute))

	// Different subject and different endpoint each have their own budget.
	assert.True(t, svc.Allow(ctx, "dave@example.com", "login", "1.2.3.4", 3, time.Minute))
	assert.True(t, svc.Allow(ctx, "carol@example.com", "status", "1.2.3.4", 3, time.Minute))
}

func TestRateLimitService_FailsOpenOnRecordError(t *testing.T) {
	svc, log, _ := newRateLimitFixture()
	log.recordErr = errors.New("connection refused")

	assert.True(t, svc.Allow(context.Background(), "erin@example.com", "login", "1.2.3.4", 1, time.Minute))
}

func TestRateLimitService_FailsOpenOnCountError(t *testing.T) {
	svc, log, _ := newRateLimitFixture()
	log.countErr = errors.New("connection refused")

	// Even a subject that would be over the limit passes when the store
	// cannot answer.
	for i := 0; i < 5; i++ {
		assert.True(t, svc.Allow(context.Background(), "frank@example.com", "login", "1.2.3.4", 1, time.Minute))
	}
}

func TestRateLimitService_CleanupStale(t *testing.T) {
	svc, log, clock := newRateLimitFixture()
	ctx := context.Background()

	require.True(t, svc.Allow(ctx, "grace@example.com", "login", "1.2.3.4", 10, time.Minute))
	clock.Advance(2 * time.Hour)
	require.True(t, svc.Allow(ctx, "grace@example.com", "login", "1.2.3.4", 10, time.Minute))

	deleted, err := svc.CleanupStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, log.entries, 1)
}
