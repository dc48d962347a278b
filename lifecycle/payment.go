package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/cases"
	"github.com/thegitsss/lets-para3-sub002/status"
)

// CompletionResult carries the completed case and where its archive can be
// downloaded until the purge runs.
type CompletionResult struct {
	Case         cases.Case
	DownloadPath string
}

// FundEscrow starts escrow for the case and confirms it with the payment
// processor using paymentMethodToken.
func (s *Service) FundEscrow(ctx context.Context, caseID, paymentMethodToken string) (cases.Case, error) {
	release, err := s.acquire(caseID, OpFundEscrow)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	if s.confirmer == nil {
		return cases.Case{}, s.rejected(OpFundEscrow, caseID, reject(OpFundEscrow, api.KindUnknown, MessageNoConfirmer))
	}

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpFundEscrow, caseID, fail(OpFundEscrow, err))
	}
	if !cases.CanFund(&prev) {
		return cases.Case{}, s.rejected(OpFundEscrow, caseID, deny(OpFundEscrow, fundDenial(&prev)))
	}

	ctx, key := s.keyed(ctx, "")
	intent, err := s.backend.StartEscrow(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpFundEscrow, caseID, fail(OpFundEscrow, err))
	}

	intentID, err := s.confirmer.Confirm(ctx, intent.ClientSecret, paymentMethodToken)
	if err != nil {
		var declined *PaymentDeclined
		if errors.As(err, &declined) {
			return cases.Case{}, s.rejected(OpFundEscrow, caseID, &Rejection{
				Op:      OpFundEscrow,
				Kind:    api.KindPaymentRequired,
				Message: declined.Reason,
				Err:     err,
			})
		}
		return cases.Case{}, s.rejected(OpFundEscrow, caseID, fail(OpFundEscrow, err))
	}
	if intentID == "" {
		intentID = intent.PaymentIntentID
	}

	next := prev.Clone()
	next.EscrowStatus = cases.EscrowFundedStatus
	next.EscrowIntentID = intentID
	s.cache.Upsert(next)

	if reloaded, err := s.backend.GetCase(ctx, caseID); err != nil {
		s.logger.Warn("reload after funding failed", zap.String("case_id", caseID), zap.Error(err))
	} else {
		next = reloaded
	}

	s.commit(ctx, key, OpFundEscrow, prev, next, map[string]any{"payment_intent_id": intentID})
	return next, nil
}

func fundDenial(c *cases.Case) error {
	switch {
	case cases.IsFinal(c):
		return cases.ErrFinalCase
	case c.ReadOnly:
		return cases.ErrReadOnly
	default:
		return cases.ErrNotEligible
	}
}

// Complete marks the case completed and releases payment. The case becomes
// read-only and is scheduled for purge.
func (s *Service) Complete(ctx context.Context, caseID string) (CompletionResult, error) {
	release, err := s.acquire(caseID, OpComplete)
	if err != nil {
		return CompletionResult{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return CompletionResult{}, s.rejected(OpComplete, caseID, fail(OpComplete, err))
	}
	if !cases.CanComplete(s.viewer, &prev) {
		denial := cases.ErrNotEligible
		if prev.ReadOnly {
			denial = cases.ErrReadOnly
		}
		return CompletionResult{}, s.rejected(OpComplete, caseID, deny(OpComplete, denial))
	}

	ctx, key := s.keyed(ctx, "")
	resp, err := s.backend.Complete(ctx, caseID)
	if err != nil {
		return CompletionResult{}, s.rejected(OpComplete, caseID, fail(OpComplete, err))
	}

	next := prev.Clone()
	if resp.Case != nil {
		next = *resp.Case
	}
	purgeAt := resp.PurgeScheduledFor
	if purgeAt == nil {
		purgeAt = next.PurgeScheduledFor
	}
	if purgeAt == nil {
		if reloaded, err := s.backend.GetCase(ctx, caseID); err != nil {
			s.logger.Warn("reload after completion failed", zap.String("case_id", caseID), zap.Error(err))
		} else {
			purgeAt = reloaded.PurgeScheduledFor
		}
	}
	markCompleted(&next, purgeAt)

	s.commit(ctx, key, OpComplete, prev, next, map[string]any{"download_path": resp.DownloadPath})
	return CompletionResult{Case: next, DownloadPath: resp.DownloadPath}, nil
}

func markCompleted(c *cases.Case, purgeAt *time.Time) {
	c.Status = status.Completed
	c.RawStatus = string(status.Completed)
	c.PaymentReleased = true
	c.ReadOnly = true
	if purgeAt != nil {
		at := *purgeAt
		c.PurgeScheduledFor = &at
	}
}
