package cases

import (
	"time"

	"github.com/thegitsss/lets-para3-sub002/auth"
	"github.com/thegitsss/lets-para3-sub002/dispute"
	"github.com/thegitsss/lets-para3-sub002/status"
)

// Category is the list bucket a case is shown under.
type Category string

const (
	CategoryArchived  Category = "archived"
	CategoryDraft     Category = "draft"
	CategoryInquiries Category = "inquiries"
	CategoryActive    Category = "active"
)

// IsTerminal reports whether c has reached an end state and belongs out of
// active work lists.
func IsTerminal(c *Case) bool {
	if c == nil {
		return false
	}
	return c.PaymentReleased || c.Status.Terminal()
}

// IsFinal reports whether c has been paid out. Final cases can never be
// restored from the archive.
func IsFinal(c *Case) bool {
	if c == nil {
		return false
	}
	return c.PaymentReleased || c.Status == status.Completed
}

// EscrowFunded reports whether escrow is funded. A "funded" status without
// an intent id does not count.
func EscrowFunded(c *Case) bool {
	if c == nil {
		return false
	}
	return c.EscrowIntentID != "" && c.EscrowStatus == EscrowFundedStatus
}

// HasParalegal reports whether a paralegal has been hired, funded or not.
func HasParalegal(c *Case) bool {
	if c == nil {
		return false
	}
	return c.Paralegal != nil || c.ParalegalID != ""
}

// HiredParalegalID returns the id of the hired paralegal, if any.
func HiredParalegalID(c *Case) string {
	if c == nil {
		return ""
	}
	if c.ParalegalID != "" {
		return c.ParalegalID
	}
	if c.Paralegal != nil {
		return c.Paralegal.ID
	}
	return ""
}

// IsWorkspaceEligible is the single gate for messaging, file exchange, chat
// and checklist access.
func IsWorkspaceEligible(c *Case) bool {
	if c == nil {
		return false
	}
	return !c.Archived &&
		!c.PaymentReleased &&
		c.Status == status.InProgress &&
		EscrowFunded(c) &&
		HasParalegal(c)
}

// Categorize buckets c for list views.
func Categorize(c *Case) Category {
	switch {
	case c == nil:
		return CategoryActive
	case c.Archived:
		return CategoryArchived
	case c.Draft || c.Status == status.Draft:
		return CategoryDraft
	case !HasParalegal(c) && len(c.Applicants) > 0:
		return CategoryInquiries
	default:
		return CategoryActive
	}
}

// Bucket groups list by Categorize, preserving order within each bucket.
func Bucket(list []Case) map[Category][]Case {
	out := make(map[Category][]Case, 4)
	for i := range list {
		cat := Categorize(&list[i])
		out[cat] = append(out[cat], list[i])
	}
	return out
}

// IsOwner reports whether v posted c.
func IsOwner(v auth.Viewer, c *Case) bool {
	return c != nil && v.ID != "" && v.IsAttorney() && c.AttorneyID == v.ID
}

func ownerOrAdmin(v auth.Viewer, c *Case) bool {
	return c != nil && (v.IsAdmin() || IsOwner(v, c))
}

// HasApplied reports whether paralegalID already has an applicant entry.
func HasApplied(c *Case, paralegalID string) bool {
	if c == nil || paralegalID == "" {
		return false
	}
	for _, a := range c.Applicants {
		if a.ParalegalID == paralegalID {
			return true
		}
	}
	return false
}

// InvitedViewer reports whether v holds an outstanding invitation on c,
// through either the legacy pending fields or the invites list.
func InvitedViewer(v auth.Viewer, c *Case) bool {
	if c == nil || v.ID == "" {
		return false
	}
	if c.PendingParalegalID == v.ID || (c.PendingParalegal != nil && c.PendingParalegal.ID == v.ID) {
		return true
	}
	for _, inv := range c.Invites {
		if inv.ParalegalID == v.ID && inv.Status == InvitePending {
			return true
		}
	}
	return false
}

// isRelist reports whether c is being reopened after a prior engagement
// ended through termination.
func isRelist(c *Case) bool {
	return c.DisputeDeadlineAt != nil || c.Termination.Current() == dispute.StatusAutoCancelled
}

// CanHire reports whether v may hire (or invite) a paralegal on c now.
func CanHire(v auth.Viewer, c *Case, now time.Time) bool {
	if !ownerOrAdmin(v, c) {
		return false
	}
	if dispute.Locked(c.Termination) {
		return false
	}
	if c.Archived || c.ReadOnly || IsFinal(c) || HasParalegal(c) {
		return false
	}
	if c.Status != status.Open {
		return false
	}
	if isRelist(c) && !dispute.RelistAllowed(c.DisputeDeadlineAt, c.PayoutFinalized, now) {
		return false
	}
	return true
}

// CanInvite shares the hire gate.
func CanInvite(v auth.Viewer, c *Case, now time.Time) bool {
	return CanHire(v, c, now)
}

// CanApply reports whether paralegal v may apply to c.
func CanApply(v auth.Viewer, c *Case, alreadyApplied bool, now time.Time) bool {
	if c == nil || !v.IsParalegal() || v.ID == "" {
		return false
	}
	if alreadyApplied || dispute.Locked(c.Termination) {
		return false
	}
	if c.Archived || c.ReadOnly || c.PaymentReleased || IsFinal(c) || HasParalegal(c) {
		return false
	}
	if c.Status != status.Open {
		return false
	}
	if dispute.HoldActive(c.DisputeDeadlineAt, now) {
		return false
	}
	return true
}

// CanRespondToInvite reports whether v may accept or decline an invite on c.
func CanRespondToInvite(v auth.Viewer, c *Case) bool {
	if c == nil || !v.IsParalegal() {
		return false
	}
	return InvitedViewer(v, c) && !IsFinal(c) && !c.ReadOnly && !dispute.Locked(c.Termination)
}

// CanFund reports whether escrow may be funded for c.
func CanFund(c *Case) bool {
	return c != nil && HasParalegal(c) && !EscrowFunded(c) && !c.ReadOnly && !IsFinal(c)
}

// CanComplete reports whether v may mark c complete and release payment.
func CanComplete(v auth.Viewer, c *Case) bool {
	return ownerOrAdmin(v, c) && HasParalegal(c) && !c.PaymentReleased && !c.ReadOnly
}

// CanTerminate reports whether v may request termination of the engagement.
func CanTerminate(v auth.Viewer, c *Case) bool {
	if !ownerOrAdmin(v, c) || !HasParalegal(c) || c.ReadOnly {
		return false
	}
	if c.Status == status.Closed {
		return false
	}
	return dispute.CanRequest(c.Termination)
}

// CanRestore reports whether c may leave the archive.
func CanRestore(c *Case) bool {
	return c != nil && !IsFinal(c)
}
