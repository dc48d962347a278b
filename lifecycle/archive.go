package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/cases"
	"github.com/thegitsss/lets-para3-sub002/status"
)

// normalizeFields is the corrective patch that moves a case back to a state
// the backend accepts for restore and delete.
func normalizeFields() map[string]any {
	return map[string]any{"status": string(status.Open), "archived": false}
}

// Archive moves the case to the archive. When the backend answers without
// a purge schedule the case is reloaded so a read-only window it opened is
// picked up.
func (s *Service) Archive(ctx context.Context, caseID string) (cases.Case, error) {
	release, err := s.acquire(caseID, OpArchive)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpArchive, caseID, fail(OpArchive, err))
	}

	ctx, key := s.keyed(ctx, "")
	updated, err := s.backend.SetArchived(ctx, caseID, true, "")
	if err != nil {
		return cases.Case{}, s.rejected(OpArchive, caseID, fail(OpArchive, err))
	}

	next := prev.Clone()
	if updated != nil {
		next = *updated
	}
	if updated == nil || next.PurgeScheduledFor == nil {
		if reloaded, err := s.backend.GetCase(ctx, caseID); err != nil {
			s.logger.Warn("reload after archive failed", zap.String("case_id", caseID), zap.Error(err))
		} else {
			next = reloaded
		}
	}
	next.Archived = true

	s.commit(ctx, key, OpArchive, prev, next, nil)
	return next, nil
}

// Restore moves the case out of the archive. When the backend rejects the
// bare toggle it is retried once with the status forced back to open.
// Completed cases are refused without contacting the backend.
func (s *Service) Restore(ctx context.Context, caseID string) (cases.Case, error) {
	release, err := s.acquire(caseID, OpRestore)
	if err != nil {
		return cases.Case{}, err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return cases.Case{}, s.rejected(OpRestore, caseID, fail(OpRestore, err))
	}
	if !cases.CanRestore(&prev) {
		return cases.Case{}, s.rejected(OpRestore, caseID, deny(OpRestore, cases.ErrFinalCase))
	}

	normalized := false
	ctx, key := s.keyed(ctx, "")
	updated, err := s.backend.SetArchived(ctx, caseID, false, "")
	if err != nil && api.KindOf(err) == api.KindValidationConflict {
		s.logger.Info("restore rejected, retrying with open status", zap.String("case_id", caseID), zap.Error(err))
		normalized = true
		var retryCtx context.Context
		retryCtx, key = s.keyed(ctx, "normalized")
		updated, err = s.backend.SetArchived(retryCtx, caseID, false, string(status.Open))
	}
	if err != nil {
		return cases.Case{}, s.rejected(OpRestore, caseID, fail(OpRestore, err))
	}

	next := prev.Clone()
	if updated != nil {
		next = *updated
	}
	next.Archived = false
	if normalized && updated == nil {
		next.Status = status.Open
		next.RawStatus = string(status.Open)
	}

	s.commit(ctx, key, OpRestore, prev, next, map[string]any{"normalized": normalized})
	return next, nil
}

// Delete permanently removes the case. Archived or non-open cases are first
// patched back to open; a rejected delete is retried once after patching
// again. The cache is pruned only once the backend confirms.
func (s *Service) Delete(ctx context.Context, caseID string) error {
	release, err := s.acquire(caseID, OpDelete)
	if err != nil {
		return err
	}
	defer release()

	prev, err := s.caseFor(ctx, caseID)
	if err != nil {
		return s.rejected(OpDelete, caseID, fail(OpDelete, err))
	}
	if cases.IsFinal(&prev) {
		return s.rejected(OpDelete, caseID, deny(OpDelete, cases.ErrFinalCase))
	}

	ctx, key := s.keyed(ctx, "")
	if prev.Archived || prev.Status != status.Open {
		patchCtx, _ := s.keyed(ctx, "normalize")
		if _, err := s.backend.PatchCase(patchCtx, caseID, normalizeFields()); err != nil {
			return s.rejected(OpDelete, caseID, fail(OpDelete, err))
		}
	}

	err = s.backend.DeleteCase(ctx, caseID)
	if err != nil && api.KindOf(err) == api.KindValidationConflict {
		s.logger.Info("delete rejected, normalizing and retrying", zap.String("case_id", caseID), zap.Error(err))
		patchCtx, _ := s.keyed(ctx, "normalize-retry")
		if _, perr := s.backend.PatchCase(patchCtx, caseID, normalizeFields()); perr != nil {
			return s.rejected(OpDelete, caseID, fail(OpDelete, perr))
		}
		var retryCtx context.Context
		retryCtx, key = s.keyed(ctx, "retry")
		err = s.backend.DeleteCase(retryCtx, caseID)
	}
	if err != nil {
		return s.rejected(OpDelete, caseID, fail(OpDelete, err))
	}

	s.cache.Remove(caseID)
	s.logger.Info("case transition",
		zap.String("case_id", caseID),
		zap.String("op", string(OpDelete)),
		zap.String("from", string(prev.Status)),
	)
	s.record(ctx, key, OpDelete, caseID, string(prev.Status), "", nil)
	s.snapshot(ctx)
	return nil
}
