package lifecycle

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/cases"
)

// Decision is a paralegal's answer to an invitation.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// HireResult is the hired case plus whether escrow still has to be funded
// before work can start.
type HireResult struct {
	Case         cases.Case
	NeedsFunding bool
}

// Hire attaches paralegalID to the case. The viewer must have a default
// payment method on file.
func (s *Service) Hire(ctx context.Context, caseID, paralegalID string) (HireResult, error) {
	release, err := s.acquire(caseID, OpHire)
	if err != nil {
		return HireResult{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return HireResult{}, s.rejected(OpHire, caseID, fail(OpHire, err))
	}
	if err := cases.CheckAction(s.viewer, &prev, cases.ActionHire, s.now()); err != nil {
		return HireResult{}, s.rejected(OpHire, caseID, deny(OpHire, err))
	}
	if strings.TrimSpace(paralegalID) == "" {
		return HireResult{}, s.rejected(OpHire, caseID, deny(OpHire, cases.ErrNotEligible))
	}

	_, ok, err := s.backend.DefaultPaymentMethod(ctx)
	if err != nil {
		return HireResult{}, s.rejected(OpHire, caseID, fail(OpHire, err))
	}
	if !ok {
		return HireResult{}, s.rejected(OpHire, caseID, reject(OpHire, api.KindPaymentRequired, MessagePaymentMethodRequired))
	}

	ctx, key := s.keyed(ctx, "")
	updated, err := s.backend.Hire(ctx, caseID, paralegalID)
	if err != nil {
		return HireResult{}, s.rejected(OpHire, caseID, fail(OpHire, err))
	}

	next := prev.Clone()
	if updated != nil {
		next = *updated
	} else {
		attachParalegal(&next, paralegalID)
		// A relisted case may still carry the previous engagement's escrow.
		next.EscrowStatus = ""
		next.EscrowIntentID = ""
	}

	s.commit(ctx, key, OpHire, prev, next, map[string]any{"paralegal_id": paralegalID})
	return HireResult{Case: next, NeedsFunding: !cases.EscrowFunded(&next)}, nil
}

// Invite records a pending invitation for paralegalID.
func (s *Service) Invite(ctx context.Context, caseID, paralegalID string) (cases.Case, error) {
	release, err := s.acquire(caseID, OpInvite)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpInvite, caseID, fail(OpInvite, err))
	}
	if err := cases.CheckAction(s.viewer, &prev, cases.ActionInvite, s.now()); err != nil {
		return cases.Case{}, s.rejected(OpInvite, caseID, deny(OpInvite, err))
	}
	if strings.TrimSpace(paralegalID) == "" {
		return cases.Case{}, s.rejected(OpInvite, caseID, deny(OpInvite, cases.ErrNotEligible))
	}

	ctx, key := s.keyed(ctx, "")
	updated, err := s.backend.Invite(ctx, caseID, paralegalID)
	if err != nil {
		return cases.Case{}, s.rejected(OpInvite, caseID, fail(OpInvite, err))
	}

	next := prev.Clone()
	if updated != nil {
		next = *updated
	} else {
		now := s.now().UTC()
		upsertInvite(&next, cases.Invite{ParalegalID: paralegalID, Status: cases.InvitePending, InvitedAt: &now})
	}

	s.commit(ctx, key, OpInvite, prev, next, map[string]any{"paralegal_id": paralegalID})
	return next, nil
}

// RespondToInvite accepts or declines the viewer's invitation.
func (s *Service) RespondToInvite(ctx context.Context, caseID string, decision Decision) (cases.Case, error) {
	release, err := s.acquire(caseID, OpRespondToInvite)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	if decision != DecisionAccept && decision != DecisionDecline {
		return cases.Case{}, s.rejected(OpRespondToInvite, caseID, reject(OpRespondToInvite, api.KindValidationConflict, MessageInvalidDecision))
	}

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpRespondToInvite, caseID, fail(OpRespondToInvite, err))
	}
	if !cases.CanRespondToInvite(s.viewer, &prev) {
		return cases.Case{}, s.rejected(OpRespondToInvite, caseID, deny(OpRespondToInvite, respondDenial(&prev)))
	}

	ctx, key := s.keyed(ctx, "")
	updated, err := s.backend.RespondInvite(ctx, caseID, string(decision))
	if err != nil {
		return cases.Case{}, s.rejected(OpRespondToInvite, caseID, fail(OpRespondToInvite, err))
	}

	next := prev.Clone()
	if updated != nil {
		next = *updated
	}
	switch decision {
	case DecisionAccept:
		if updated == nil {
			attachParalegal(&next, s.viewer.ID)
		}
	case DecisionDecline:
		removeInvite(&next, s.viewer.ID)
	}

	s.commit(ctx, key, OpRespondToInvite, prev, next, map[string]any{"decision": string(decision)})
	return next, nil
}

func respondDenial(c *cases.Case) error {
	switch {
	case cases.IsFinal(c):
		return cases.ErrFinalCase
	case c.ReadOnly:
		return cases.ErrReadOnly
	default:
		return cases.ErrNotEligible
	}
}

// Apply adds the viewer to the applicants. The entry is shown immediately
// and rolled back if the backend refuses it.
func (s *Service) Apply(ctx context.Context, caseID, note string) (cases.Case, error) {
	release, err := s.acquire(caseID, OpApply)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpApply, caseID, fail(OpApply, err))
	}
	if err := cases.CheckAction(s.viewer, &prev, cases.ActionApply, s.now()); err != nil {
		return cases.Case{}, s.rejected(OpApply, caseID, deny(OpApply, err))
	}

	now := s.now().UTC()
	optimistic := prev.Clone()
	optimistic.Applicants = append(optimistic.Applicants, cases.Applicant{
		ParalegalID: s.viewer.ID,
		Status:      "pending",
		AppliedAt:   &now,
		CoverLetter: note,
	})
	s.cache.Upsert(optimistic)

	ctx, key := s.keyed(ctx, "")
	updated, err := s.backend.Apply(ctx, caseID, note)
	if err != nil {
		s.rollbackApply(caseID)
		return cases.Case{}, s.rejected(OpApply, caseID, fail(OpApply, err))
	}
	if updated != nil {
		s.cache.Upsert(*updated)
	}

	next := optimistic
	if reloaded, err := s.backend.GetCase(ctx, caseID); err != nil {
		s.logger.Warn("reload after apply failed", zap.String("case_id", caseID), zap.Error(err))
		if updated != nil {
			next = *updated
		}
	} else {
		next = reloaded
	}

	s.commit(ctx, key, OpApply, prev, next, map[string]any{"note_length": len(note)})
	return next, nil
}

func (s *Service) rollbackApply(caseID string) {
	current, ok := s.cache.Get(caseID)
	if !ok {
		return
	}
	for i := len(current.Applicants) - 1; i >= 0; i-- {
		if current.Applicants[i].ParalegalID == s.viewer.ID {
			current.Applicants = append(current.Applicants[:i], current.Applicants[i+1:]...)
			break
		}
	}
	s.cache.Upsert(current)
}

func attachParalegal(c *cases.Case, paralegalID string) {
	c.ParalegalID = paralegalID
	if c.Paralegal == nil || c.Paralegal.ID != paralegalID {
		ref := cases.PartyRef{ID: paralegalID}
		if c.PendingParalegal != nil && c.PendingParalegal.ID == paralegalID {
			ref = *c.PendingParalegal
		}
		c.Paralegal = &ref
	}
	c.PendingParalegal = nil
	c.PendingParalegalID = ""
	c.PendingParalegalInvitedAt = nil
	for i := range c.Invites {
		if c.Invites[i].ParalegalID == paralegalID {
			c.Invites[i].Status = cases.InviteAccepted
		}
	}
}

func upsertInvite(c *cases.Case, inv cases.Invite) {
	for i := range c.Invites {
		if c.Invites[i].ParalegalID == inv.ParalegalID {
			c.Invites[i] = inv
			return
		}
	}
	c.Invites = append(c.Invites, inv)
}

func removeInvite(c *cases.Case, paralegalID string) {
	kept := c.Invites[:0]
	for _, inv := range c.Invites {
		if inv.ParalegalID != paralegalID {
			kept = append(kept, inv)
		}
	}
	c.Invites = kept
	if c.PendingParalegalID == paralegalID || (c.PendingParalegal != nil && c.PendingParalegal.ID == paralegalID) {
		c.PendingParalegal = nil
		c.PendingParalegalID = ""
		c.PendingParalegalInvitedAt = nil
	}
}
