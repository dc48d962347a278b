package cases

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegitsss/lets-para3-sub002/dispute"
	"github.com/thegitsss/lets-para3-sub002/status"
)

func TestCase_UnmarshalPopulated(t *testing.T) {
	payload := `{
		"_id": "c1",
		"title": "Discovery review",
		"status": "funded_in_progress",
		"attorney": {"_id": "atty-1", "firstName": "Ada"},
		"paralegal": {"_id": "para-1", "firstName": "Pat", "lastName": "Lee"},
		"escrowIntentId": " pi_123 ",
		"escrowStatus": "FUNDED",
		"invites": [{"paralegalId": "para-2", "status": "declined"}],
		"applicants": [{"paralegalId": "para-1", "coverLetter": "hi", "profileSnapshot": {"yearsExperience": 4}}],
		"termination": {"status": "none"},
		"purgeScheduledFor": "2025-01-02T03:04:05Z"
	}`

	var c Case
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, status.InProgress, c.Status)
	assert.Equal(t, "funded_in_progress", c.RawStatus)
	assert.Equal(t, "atty-1", c.AttorneyID)
	require.NotNil(t, c.Paralegal)
	assert.Equal(t, "para-1", c.Paralegal.ID)
	assert.Equal(t, "pi_123", c.EscrowIntentID)
	assert.Equal(t, EscrowFundedStatus, c.EscrowStatus)
	assert.Len(t, c.Invites, 1)
	assert.Equal(t, InviteDeclined, c.Invites[0].Status)
	require.NotNil(t, c.PurgeScheduledFor)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), c.PurgeScheduledFor.UTC())
	assert.Equal(t, dispute.StatusNone, c.Termination.Current())
}

func TestCase_UnmarshalBareIDs(t *testing.T) {
	payload := `{"id": "c2", "status": "awaiting_funding", "attorney": "atty-9", "paralegal": "para-3", "pendingParalegal": null}`

	var c Case
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.Equal(t, status.Open, c.Status)
	assert.Equal(t, "atty-9", c.AttorneyID)
	require.NotNil(t, c.Paralegal)
	assert.Equal(t, "para-3", c.Paralegal.ID)
	assert.Nil(t, c.PendingParalegal)
	assert.Equal(t, "para-3", HiredParalegalID(&c))
}

func TestCase_UnmarshalEmptyParalegalString(t *testing.T) {
	var c Case
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c3","status":"open","paralegal":""}`), &c))
	assert.Nil(t, c.Paralegal)
	assert.False(t, HasParalegal(&c))
}

func TestCase_MarshalKeepsCanonicalStatus(t *testing.T) {
	in := Case{
		ID:        "c4",
		Status:    status.InProgress,
		RawStatus: "active",
		Paralegal: &PartyRef{ID: "para-1"},
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Case
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, status.InProgress, out.Status)
	require.NotNil(t, out.Paralegal)
	assert.Equal(t, "para-1", out.Paralegal.ID)
}

func TestCase_CloneIsDeep(t *testing.T) {
	at := time.Now()
	orig := Case{
		ID:                "c5",
		Paralegal:         &PartyRef{ID: "p"},
		Applicants:        []Applicant{{ParalegalID: "p", ProfileSnapshot: map[string]any{"k": "v"}}},
		Invites:           []Invite{{ParalegalID: "q", Status: InvitePending}},
		PurgeScheduledFor: &at,
	}
	cp := orig.Clone()
	cp.Paralegal.ID = "changed"
	cp.Applicants[0].ProfileSnapshot["k"] = "changed"
	cp.Invites[0].Status = InviteDeclined
	*cp.PurgeScheduledFor = at.Add(time.Hour)

	assert.Equal(t, "p", orig.Paralegal.ID)
	assert.Equal(t, "v", orig.Applicants[0].ProfileSnapshot["k"])
	assert.Equal(t, InvitePending, orig.Invites[0].Status)
	assert.True(t, orig.PurgeScheduledFor.Equal(at))
}
