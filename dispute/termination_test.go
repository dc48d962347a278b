package dispute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginAndResolve_AutoCancel(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	req, err := Begin(Termination{}, "  client unresponsive ", "atty-1", now)
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, req.Current())
	assert.Equal(t, "client unresponsive", req.Reason)

	done, err := Resolve(req, Outcome{}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusAutoCancelled, done.Current())
	require.NotNil(t, done.TerminatedAt)
	assert.True(t, done.TerminatedAt.Equal(now))
	assert.False(t, Locked(done), "auto-cancelled termination must not lock the case")
	assert.True(t, done.Terminal())
}

func TestBeginAndResolve_Disputed(t *testing.T) {
	now := time.Now()
	req, err := Begin(Termination{Status: StatusNone}, "work not delivered", "atty-1", now)
	require.NoError(t, err)

	done, err := Resolve(req, Outcome{RequiresAdmin: true, DisputeID: "d-9"}, now)
	require.NoError(t, err)
	assert.True(t, Locked(done), "disputed termination must lock the case")
	assert.Equal(t, "d-9", done.DisputeID)
	assert.Nil(t, done.TerminatedAt)
}

func TestBegin_Rejections(t *testing.T) {
	now := time.Now()
	_, err := Begin(Termination{}, "   ", "atty-1", now)
	assert.ErrorIs(t, err, ErrReasonRequired)

	for _, st := range []Status{StatusRequested, StatusAutoCancelled, StatusDisputed} {
		prior := Termination{Status: st}
		got, err := Begin(prior, "reason", "atty-1", now)
		assert.ErrorIs(t, err, ErrBadStatus, "status %s", st)
		assert.Equal(t, st, got.Status, "prior termination must be returned unchanged")
	}
}

func TestResolve_RequiresRequested(t *testing.T) {
	_, err := Resolve(Termination{}, Outcome{}, time.Now())
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestCurrent_Normalizes(t *testing.T) {
	assert.Equal(t, StatusNone, (Termination{}).Current())
	assert.Equal(t, StatusDisputed, (Termination{Status: " DISPUTED "}).Current())
}

func TestRelistAllowed(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(2 * time.Hour)
	past := now.Add(-time.Minute)

	tests := []struct {
		name      string
		deadline  *time.Time
		finalized bool
		want      bool
	}{
		{"no hold, finalized", nil, true, true},
		{"no hold, payout pending", nil, false, false},
		{"hold running", &future, true, false},
		{"hold elapsed", &past, true, true},
		{"hold elapsed, payout pending", &past, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelistAllowed(tt.deadline, tt.finalized, now))
		})
	}

	assert.True(t, HoldActive(&future, now))
	assert.False(t, HoldActive(&past, now))
	assert.False(t, HoldActive(nil, now))
}
