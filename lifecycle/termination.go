package lifecycle

import (
	"context"
	"errors"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/cases"
	"github.com/thegitsss/lets-para3-sub002/dispute"
)

// Terminate ends the engagement. The backend decides whether the case is
// cancelled outright or handed to an admin as a dispute.
func (s *Service) Terminate(ctx context.Context, caseID, reason string) (cases.Case, error) {
	release, err := s.acquire(caseID, OpTerminate)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpTerminate, caseID, fail(OpTerminate, err))
	}
	if err := cases.CheckAction(s.viewer, &prev, cases.ActionTerminate, s.now()); err != nil {
		return cases.Case{}, s.rejected(OpTerminate, caseID, deny(OpTerminate, err))
	}

	pending, err := dispute.Begin(prev.Termination, reason, s.viewer.ID, s.now())
	if err != nil {
		if errors.Is(err, dispute.ErrReasonRequired) {
			return cases.Case{}, s.rejected(OpTerminate, caseID, reject(OpTerminate, api.KindValidationConflict, MessageReasonRequired))
		}
		return cases.Case{}, s.rejected(OpTerminate, caseID, deny(OpTerminate, cases.ErrNotEligible))
	}

	ctx, key := s.keyed(ctx, "")
	resp, err := s.backend.Terminate(ctx, caseID, pending.Reason)
	if err != nil {
		return cases.Case{}, s.rejected(OpTerminate, caseID, fail(OpTerminate, err))
	}

	resolved, err := dispute.Resolve(pending, dispute.Outcome{RequiresAdmin: resp.RequiresAdmin, DisputeID: resp.DisputeID}, s.now())
	if err != nil {
		return cases.Case{}, s.rejected(OpTerminate, caseID, deny(OpTerminate, cases.ErrNotEligible))
	}

	next := prev.Clone()
	if resp.Case != nil {
		next = *resp.Case
	}
	if !next.Termination.Terminal() {
		next.Termination = resolved
	}

	s.commit(ctx, key, OpTerminate, prev, next, map[string]any{
		"termination_status": string(next.Termination.Current()),
		"requires_admin":     resp.RequiresAdmin,
		"dispute_id":         resp.DisputeID,
	})
	return next, nil
}
