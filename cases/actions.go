package cases

import (
	"errors"
	"time"

	"github.com/thegitsss/lets-para3-sub002/auth"
	"github.com/thegitsss/lets-para3-sub002/dispute"
)

// FinalCaseMessage is shown whenever a paid-out case is asked to leave the
// archive, directly or as the pre-step of a delete.
const FinalCaseMessage = "Completed cases cannot be restored"

var (
	ErrReadOnly        = errors.New("cases: case is read-only")
	ErrDisputeLocked   = errors.New("cases: case is locked by a pending dispute")
	ErrWorkspaceLocked = errors.New("cases: workspace is not available for this case")
	ErrFinalCase       = errors.New("cases: " + FinalCaseMessage)
	ErrNotEligible     = errors.New("cases: action not allowed for this case")
)

// Action is a collaboration-mutating user action.
type Action string

const (
	ActionSendMessage Action = "send_message"
	ActionUploadFile  Action = "upload_file"
	ActionHire        Action = "hire"
	ActionInvite      Action = "invite"
	ActionApply       Action = "apply"
	ActionTerminate   Action = "terminate"
)

// CheckAction is the guard every collaboration surface runs before a
// mutating action. It never performs I/O.
func CheckAction(v auth.Viewer, c *Case, action Action, now time.Time) error {
	if c == nil {
		return ErrNotEligible
	}
	if c.ReadOnly {
		return ErrReadOnly
	}

	switch action {
	case ActionSendMessage, ActionUploadFile:
		if !IsWorkspaceEligible(c) {
			return ErrWorkspaceLocked
		}
		return nil
	case ActionHire, ActionInvite, ActionApply, ActionTerminate:
		if dispute.Locked(c.Termination) {
			return ErrDisputeLocked
		}
	}

	var ok bool
	switch action {
	case ActionHire, ActionInvite:
		ok = CanHire(v, c, now)
	case ActionApply:
		ok = CanApply(v, c, HasApplied(c, v.ID), now)
	case ActionTerminate:
		ok = CanTerminate(v, c)
	}
	if !ok {
		return ErrNotEligible
	}
	return nil
}
