package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/palisadehq/palisade/internal/handlers"
	"github.com/palisadehq/palisade/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts := NewTestServer(testDB.DB)
	defer ts.Close()

	t.Run("failures accumulate to lockout and success clears it", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		subject := TestSubject("flow")

		// Two failures stay below the threshold of three.
		for i := 0; i < 2; i++ {
			resp, err := ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
				SubjectKey: subject,
				Success:    false,
			}, nil)
			require.NoError(t, err)

			var decision models.LockoutDecision
			require.NoError(t, ParseJSONResponse(resp, &decision))
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.False(t, decision.ShouldLockout)
			assert.Equal(t, i+1, decision.FailedAttemptsCount)
		}

		// Third failure trips the lock.
		resp, err := ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
			SubjectKey: subject,
			Success:    false,
		}, nil)
		require.NoError(t, err)

		var decision models.LockoutDecision
		require.NoError(t, ParseJSONResponse(resp, &decision))
		assert.True(t, decision.ShouldLockout)
		assert.Equal(t, 3, decision.FailedAttemptsCount)
		assert.Equal(t, 15, decision.LockoutDurationMinutes)

		// The subject can see their own lock state.
		token, err := SignCallerToken(subject, "")
		require.NoError(t, err)

		resp, err = ts.RequestWithAuth("GET", "/v1/security/lockouts/"+subject, token, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info models.LockoutInfo
		require.NoError(t, ParseJSONResponse(resp, &info))
		assert.True(t, info.IsLocked)
		assert.Equal(t, 3, info.FailedAttempts)
		assert.Greater(t, info.MinutesRemaining, 0)

		// A successful attempt clears the lock immediately.
		resp, err = ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
			SubjectKey: subject,
			Success:    true,
		}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		count, err := CountLockoutRecords(ctx, testDB.Pool, subject)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		// All four attempts landed in the ledger.
		rows, err := CountLedgerRows(ctx, testDB.Pool, subject)
		require.NoError(t, err)
		assert.Equal(t, 4, rows)
	})

	t.Run("admin resets another subject's lockout", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		subject := TestSubject("reset")

		for i := 0; i < 3; i++ {
			resp, err := ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
				SubjectKey: subject,
				Success:    false,
			}, nil)
			require.NoError(t, err)
			resp.Body.Close()
		}

		adminToken, err := SignCallerToken("admin@example.com", "admin")
		require.NoError(t, err)

		resp, err := ts.RequestWithAuth("DELETE", "/v1/security/lockouts/"+subject, adminToken, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var reset handlers.ResetResponse
		require.NoError(t, ParseJSONResponse(resp, &reset))
		assert.True(t, reset.Success)

		count, err := CountLockoutRecords(ctx, testDB.Pool, subject)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("manual hold survives threshold decisions", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		subject := TestSubject("held")

		// An administrative hold whose horizon is already in the past; it
		// holds until explicit reset.
		past := time.Now().Add(-time.Hour)
		require.NoError(t, SeedLockout(ctx, testDB.Pool, subject, &past, false))

		for i := 0; i < 3; i++ {
			resp, err := ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
				SubjectKey: subject,
				Success:    false,
			}, nil)
			require.NoError(t, err)
			resp.Body.Close()
		}

		var automaticUnlock bool
		require.NoError(t, testDB.Pool.QueryRow(ctx,
			"SELECT automatic_unlock FROM lockout_records WHERE subject_key = $1", subject).Scan(&automaticUnlock))
		assert.False(t, automaticUnlock, "threshold decision must not demote the hold")

		token, err := SignCallerToken(subject, "")
		require.NoError(t, err)

		resp, err := ts.RequestWithAuth("GET", "/v1/security/lockouts/"+subject, token, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info models.LockoutInfo
		require.NoError(t, ParseJSONResponse(resp, &info))
		assert.True(t, info.IsLocked)
	})

	t.Run("caller cannot read another subject's lock state", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		subject := TestSubject("victim")

		token, err := SignCallerToken("other@example.com", "")
		require.NoError(t, err)

		resp, err := ts.RequestWithAuth("GET", "/v1/security/lockouts/"+subject, token, nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("status queries require authentication", func(t *testing.T) {
		resp, err := ts.Request("GET", "/v1/security/lockouts/anyone@example.com", nil, nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("per-subject policy overrides the default threshold", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		subject := TestSubject("policy")

		require.NoError(t, SeedPolicy(ctx, testDB.Pool, &models.SecurityPolicy{
			SubjectKey:             subject,
			MaxFailedAttempts:      2,
			LockoutDurationMinutes: 30,
			WindowMinutes:          60,
		}))

		resp, err := ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
			SubjectKey: subject,
			Success:    false,
		}, nil)
		require.NoError(t, err)
		resp.Body.Close()

		resp, err = ts.Request("POST", "/v1/security/attempts", handlers.RecordAttemptRequest{
			SubjectKey: subject,
			Success:    false,
		}, nil)
		require.NoError(t, err)

		var decision models.LockoutDecision
		require.NoError(t, ParseJSONResponse(resp, &decision))
		assert.True(t, decision.ShouldLockout)
		assert.Equal(t, 30, decision.LockoutDurationMinutes)
	})

	t.Run("policy can be updated over the API", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		subject := TestSubject("policy-api")

		adminToken, err := SignCallerToken("admin@example.com", "admin")
		require.NoError(t, err)

		resp, err := ts.RequestWithAuth("PUT", "/v1/security/policies/"+subject, adminToken, handlers.UpdatePolicyRequest{
			MaxFailedAttempts:      4,
			LockoutDurationMinutes: 20,
			WindowMinutes:          30,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated handlers.PolicyResponse
		require.NoError(t, ParseJSONResponse(resp, &updated))
		assert.Equal(t, 4, updated.MaxFailedAttempts)

		resp, err = ts.RequestWithAuth("GET", "/v1/security/policies/"+subject, adminToken, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var fetched handlers.PolicyResponse
		require.NoError(t, ParseJSONResponse(resp, &fetched))
		assert.Equal(t, 4, fetched.MaxFailedAttempts)
		assert.Equal(t, 20, fetched.LockoutDurationMinutes)
		assert.Equal(t, 30, fetched.WindowMinutes)
	})
}
