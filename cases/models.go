// Package cases holds the case record and the pure eligibility predicates
// every collaboration surface shares.
package cases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/thegitsss/lets-para3-sub002/dispute"
	"github.com/thegitsss/lets-para3-sub002/status"
)

// EscrowFundedStatus is the escrowStatus value that marks funded escrow.
const EscrowFundedStatus = "funded"

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// PartyRef is a reference to a user attached to a case. The backend sends
// either a bare id or a populated object.
type PartyRef struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type Invite struct {
	ParalegalID string       `json:"paralegalId"`
	Status      InviteStatus `json:"status"`
	InvitedAt   *time.Time   `json:"invitedAt,omitempty"`
}

type Applicant struct {
	ParalegalID     string         `json:"paralegalId"`
	Status          string         `json:"status,omitempty"`
	AppliedAt       *time.Time     `json:"appliedAt,omitempty"`
	CoverLetter     string         `json:"coverLetter,omitempty"`
	ProfileSnapshot map[string]any `json:"profileSnapshot,omitempty"`
	ResumeURL       string         `json:"resumeURL,omitempty"`
	LinkedInURL     string         `json:"linkedInURL,omitempty"`
}

// Case is the authoritative case record as last seen from the backend.
// Status is normalized on decode; RawStatus is kept for diagnostics only.
type Case struct {
	ID        string
	Title     string
	Status    status.Status
	RawStatus string

	Archived        bool
	Draft           bool
	ReadOnly        bool
	PaymentReleased bool
	PayoutFinalized bool

	EscrowIntentID string
	EscrowStatus   string

	AttorneyID string

	Paralegal   *PartyRef
	ParalegalID string

	PendingParalegal          *PartyRef
	PendingParalegalID        string
	PendingParalegalInvitedAt *time.Time

	Invites    []Invite
	Applicants []Applicant

	PurgeScheduledFor *time.Time
	DisputeDeadlineAt *time.Time
	Termination       dispute.Termination

	UpdatedAt *time.Time
}

// wireCase is the JSON shape the backend emits.
type wireCase struct {
	ID                        string              `json:"id,omitempty"`
	MongoID                   string              `json:"_id,omitempty"`
	Title                     string              `json:"title,omitempty"`
	Status                    string              `json:"status"`
	Archived                  bool                `json:"archived"`
	Draft                     bool                `json:"draft,omitempty"`
	ReadOnly                  bool                `json:"readOnly"`
	PaymentReleased           bool                `json:"paymentReleased"`
	PayoutFinalized           bool                `json:"payoutFinalized,omitempty"`
	EscrowIntentID            string              `json:"escrowIntentId,omitempty"`
	EscrowStatus              string              `json:"escrowStatus,omitempty"`
	Attorney                  json.RawMessage     `json:"attorney,omitempty"`
	AttorneyID                string              `json:"attorneyId,omitempty"`
	Paralegal                 json.RawMessage     `json:"paralegal,omitempty"`
	ParalegalID               string              `json:"paralegalId,omitempty"`
	PendingParalegal          json.RawMessage     `json:"pendingParalegal,omitempty"`
	PendingParalegalID        string              `json:"pendingParalegalId,omitempty"`
	PendingParalegalInvitedAt *time.Time          `json:"pendingParalegalInvitedAt,omitempty"`
	Invites                   []Invite            `json:"invites,omitempty"`
	Applicants                []Applicant         `json:"applicants,omitempty"`
	PurgeScheduledFor         *time.Time          `json:"purgeScheduledFor,omitempty"`
	DisputeDeadlineAt         *time.Time          `json:"disputeDeadlineAt,omitempty"`
	Termination               dispute.Termination `json:"termination"`
	UpdatedAt                 *time.Time          `json:"updatedAt,omitempty"`
}

// UnmarshalJSON decodes the backend representation, normalizing status
// and accepting either ids or populated objects for party references.
func (c *Case) UnmarshalJSON(data []byte) error {
	var w wireCase
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("cases: decode case: %w", err)
	}

	attorney, err := decodePartyRef(w.Attorney)
	if err != nil {
		return fmt.Errorf("cases: decode attorney: %w", err)
	}
	paralegal, err := decodePartyRef(w.Paralegal)
	if err != nil {
		return fmt.Errorf("cases: decode paralegal: %w", err)
	}
	pending, err := decodePartyRef(w.PendingParalegal)
	if err != nil {
		return fmt.Errorf("cases: decode pending paralegal: %w", err)
	}

	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	attorneyID := w.AttorneyID
	if attorneyID == "" && attorney != nil {
		attorneyID = attorney.ID
	}

	*c = Case{
		ID:                        id,
		Title:                     w.Title,
		Status:                    status.Normalize(w.Status),
		RawStatus:                 w.Status,
		Archived:                  w.Archived,
		Draft:                     w.Draft,
		ReadOnly:                  w.ReadOnly,
		PaymentReleased:           w.PaymentReleased,
		PayoutFinalized:           w.PayoutFinalized,
		EscrowIntentID:            strings.TrimSpace(w.EscrowIntentID),
		EscrowStatus:              strings.ToLower(strings.TrimSpace(w.EscrowStatus)),
		AttorneyID:                attorneyID,
		Paralegal:                 paralegal,
		ParalegalID:               w.ParalegalID,
		PendingParalegal:          pending,
		PendingParalegalID:        w.PendingParalegalID,
		PendingParalegalInvitedAt: w.PendingParalegalInvitedAt,
		Invites:                   w.Invites,
		Applicants:                w.Applicants,
		PurgeScheduledFor:         w.PurgeScheduledFor,
		DisputeDeadlineAt:         w.DisputeDeadlineAt,
		Termination:               w.Termination,
		UpdatedAt:                 w.UpdatedAt,
	}
	return nil
}

// MarshalJSON emits the same shape UnmarshalJSON accepts, with the
// canonical status in place of the raw one.
func (c Case) MarshalJSON() ([]byte, error) {
	w := wireCase{
		ID:                        c.ID,
		Title:                     c.Title,
		Status:                    string(c.Status),
		Archived:                  c.Archived,
		Draft:                     c.Draft,
		ReadOnly:                  c.ReadOnly,
		PaymentReleased:           c.PaymentReleased,
		PayoutFinalized:           c.PayoutFinalized,
		EscrowIntentID:            c.EscrowIntentID,
		EscrowStatus:              c.EscrowStatus,
		AttorneyID:                c.AttorneyID,
		ParalegalID:               c.ParalegalID,
		PendingParalegalID:        c.PendingParalegalID,
		PendingParalegalInvitedAt: c.PendingParalegalInvitedAt,
		Invites:                   c.Invites,
		Applicants:                c.Applicants,
		PurgeScheduledFor:         c.PurgeScheduledFor,
		DisputeDeadlineAt:         c.DisputeDeadlineAt,
		Termination:               c.Termination,
		UpdatedAt:                 c.UpdatedAt,
	}
	var err error
	if w.Paralegal, err = encodePartyRef(c.Paralegal); err != nil {
		return nil, err
	}
	if w.PendingParalegal, err = encodePartyRef(c.PendingParalegal); err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Clone returns a deep copy so cached records never alias caller state.
func (c Case) Clone() Case {
	out := c
	if c.Paralegal != nil {
		p := *c.Paralegal
		out.Paralegal = &p
	}
	if c.PendingParalegal != nil {
		p := *c.PendingParalegal
		out.PendingParalegal = &p
	}
	if c.Invites != nil {
		out.Invites = append([]Invite(nil), c.Invites...)
	}
	if c.Applicants != nil {
		out.Applicants = make([]Applicant, len(c.Applicants))
		for i, a := range c.Applicants {
			if a.ProfileSnapshot != nil {
				snap := make(map[string]any, len(a.ProfileSnapshot))
				for k, v := range a.ProfileSnapshot {
					snap[k] = v
				}
				a.ProfileSnapshot = snap
			}
			out.Applicants[i] = a
		}
	}
	out.PurgeScheduledFor = cloneTime(c.PurgeScheduledFor)
	out.DisputeDeadlineAt = cloneTime(c.DisputeDeadlineAt)
	out.PendingParalegalInvitedAt = cloneTime(c.PendingParalegalInvitedAt)
	out.UpdatedAt = cloneTime(c.UpdatedAt)
	out.Termination.RequestedAt = cloneTime(c.Termination.RequestedAt)
	out.Termination.TerminatedAt = cloneTime(c.Termination.TerminatedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func decodePartyRef(raw json.RawMessage) (*PartyRef, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, err
		}
		if strings.TrimSpace(id) == "" {
			return nil, nil
		}
		return &PartyRef{ID: id}, nil
	}

	var obj struct {
		ID        string `json:"id"`
		MongoID   string `json:"_id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	ref := &PartyRef{ID: obj.ID, FirstName: obj.FirstName, LastName: obj.LastName}
	if ref.ID == "" {
		ref.ID = obj.MongoID
	}
	return ref, nil
}

func encodePartyRef(ref *PartyRef) (json.RawMessage, error) {
	if ref == nil {
		return nil, nil
	}
	b, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("cases: encode party: %w", err)
	}
	return b, nil
}
