package dispute

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrBadStatus      = errors.New("dispute: invalid status transition")
	ErrReasonRequired = errors.New("dispute: termination reason required")
)

// Current returns the effective status, treating an empty value as none.
func (t Termination) Current() Status {
	switch Status(strings.ToLower(strings.TrimSpace(string(t.Status)))) {
	case "", StatusNone:
		return StatusNone
	case StatusRequested:
		return StatusRequested
	case StatusAutoCancelled:
		return StatusAutoCancelled
	case StatusDisputed:
		return StatusDisputed
	default:
		return t.Status
	}
}

// Terminal reports whether the sub-state can no longer change on this client.
func (t Termination) Terminal() bool {
	switch t.Current() {
	case StatusAutoCancelled, StatusDisputed:
		return true
	default:
		return false
	}
}

// Locked reports whether a dispute is pending admin review. A locked case
// refuses hire, invite, apply and terminate regardless of other eligibility.
func Locked(t Termination) bool {
	return t.Current() == StatusDisputed
}

// CanRequest reports whether a new termination may be requested.
func CanRequest(t Termination) bool {
	return t.Current() == StatusNone
}

// Begin moves a termination from none to the in-flight requested state.
// The returned value is never persisted; the backend resolves it within
// the same request.
func Begin(t Termination, reason, requestedBy string, now time.Time) (Termination, error) {
	if !CanRequest(t) {
		return t, ErrBadStatus
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return t, ErrReasonRequired
	}
	at := now.UTC()
	return Termination{
		Status:      StatusRequested,
		Reason:      reason,
		RequestedAt: &at,
		RequestedBy: requestedBy,
	}, nil
}

// Resolve applies the backend outcome to a requested termination.
func Resolve(t Termination, outcome Outcome, now time.Time) (Termination, error) {
	if t.Current() != StatusRequested {
		return t, ErrBadStatus
	}
	next := t
	if outcome.RequiresAdmin {
		next.Status = StatusDisputed
		next.DisputeID = outcome.DisputeID
		return next, nil
	}
	at := now.UTC()
	next.Status = StatusAutoCancelled
	next.TerminatedAt = &at
	return next, nil
}

// HoldActive reports whether the post-dispute relist hold is still running.
func HoldActive(deadline *time.Time, now time.Time) bool {
	return deadline != nil && now.Before(*deadline)
}

// RelistAllowed reports whether a case that went through termination may be
// opened for hiring again.
func RelistAllowed(deadline *time.Time, payoutFinalized bool, now time.Time) bool {
	return !HoldActive(deadline, now) && payoutFinalized
}
