package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/cases"
)

// Op names a lifecycle transition.
type Op string

const (
	OpHire            Op = "hire"
	OpInvite          Op = "invite"
	OpRespondToInvite Op = "respond_invite"
	OpApply           Op = "apply"
	OpFundEscrow      Op = "fund_escrow"
	OpComplete        Op = "complete"
	OpTerminate       Op = "terminate"
	OpArchive         Op = "archive"
	OpRestore         Op = "restore"
	OpDelete          Op = "delete"
)

var (
	ErrHireRejected           = errors.New("lifecycle: hire rejected")
	ErrInviteRejected         = errors.New("lifecycle: invite rejected")
	ErrInviteResponseRejected = errors.New("lifecycle: invite response rejected")
	ErrApplyRejected          = errors.New("lifecycle: apply rejected")
	ErrPaymentFailed          = errors.New("lifecycle: payment failed")
	ErrCompletionRejected     = errors.New("lifecycle: completion rejected")
	ErrTerminationRejected    = errors.New("lifecycle: termination rejected")
	ErrArchiveToggleFailed    = errors.New("lifecycle: archive toggle failed")
	ErrDeleteRejected         = errors.New("lifecycle: delete rejected")

	// ErrInFlight is returned when the same operation is already running
	// for the same case.
	ErrInFlight = errors.New("lifecycle: operation already in flight")
)

var opSentinels = map[Op]error{
	OpHire:            ErrHireRejected,
	OpInvite:          ErrInviteRejected,
	OpRespondToInvite: ErrInviteResponseRejected,
	OpApply:           ErrApplyRejected,
	OpFundEscrow:      ErrPaymentFailed,
	OpComplete:        ErrCompletionRejected,
	OpTerminate:       ErrTerminationRejected,
	OpArchive:         ErrArchiveToggleFailed,
	OpRestore:         ErrArchiveToggleFailed,
	OpDelete:          ErrDeleteRejected,
}

// User-facing copy for failures the client detects or rewrites itself.
const (
	MessagePaymentMethodRequired = "Add a default payment method before hiring a paralegal."
	MessageParalegalStripe       = "This paralegal has not finished connecting Stripe yet, so they cannot be hired."
	MessageViewerStripe          = "Connect your Stripe account to accept invitations and receive payouts."
	MessageReasonRequired        = "Please provide a reason for ending this engagement."
	MessageInvalidDecision       = "Invite response must be accept or decline."
	MessageNoConfirmer           = "Payments are not available right now."
)

// Rejection is the typed failure every transition returns. errors.Is
// matches both the operation's sentinel and the api kind sentinel.
type Rejection struct {
	Op      Op
	Kind    api.Kind
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("lifecycle: %s rejected (%s): %s", r.Op, r.Kind, r.Message)
}

func (r *Rejection) Is(target error) bool {
	if r == nil {
		return false
	}
	if s, ok := opSentinels[r.Op]; ok && s == target {
		return true
	}
	return (&api.Error{Kind: r.Kind}).Is(target)
}

func (r *Rejection) Unwrap() error {
	if r == nil {
		return nil
	}
	return r.Err
}

// PaymentDeclined is returned by a PaymentConfirmer when the processor
// refuses the charge.
type PaymentDeclined struct {
	Reason string
}

func (e *PaymentDeclined) Error() string {
	return "lifecycle: payment declined: " + e.Reason
}

// fail wraps a backend or transport error.
func fail(op Op, err error) *Rejection {
	kind := api.KindOf(err)
	return &Rejection{
		Op:      op,
		Kind:    kind,
		Message: friendlyMessage(op, kind, api.MessageOf(err)),
		Err:     err,
	}
}

// deny builds a client-side rejection from a predicate failure.
func deny(op Op, err error) *Rejection {
	return &Rejection{
		Op:      op,
		Kind:    api.KindValidationConflict,
		Message: denialMessage(err),
		Err:     err,
	}
}

func reject(op Op, kind api.Kind, message string) *Rejection {
	return &Rejection{
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     &api.Error{Kind: kind, Message: message},
	}
}

func denialMessage(err error) string {
	switch {
	case errors.Is(err, cases.ErrFinalCase):
		return cases.FinalCaseMessage
	case errors.Is(err, cases.ErrReadOnly):
		return "This case is read-only."
	case errors.Is(err, cases.ErrDisputeLocked):
		return "This case is locked while a dispute is under review."
	case errors.Is(err, cases.ErrWorkspaceLocked):
		return "The workspace is not available for this case yet."
	default:
		return "This action is not available for this case."
	}
}

// friendlyMessage keeps backend copy verbatim except for the Stripe
// connection family and completed-case restores.
func friendlyMessage(op Op, kind api.Kind, message string) string {
	if api.IsStripeConnectMessage(message) {
		switch op {
		case OpHire, OpInvite:
			return MessageParalegalStripe
		case OpRespondToInvite, OpApply:
			return MessageViewerStripe
		}
	}
	if (op == OpRestore || op == OpDelete) && kind == api.KindValidationConflict && mentionsCompleted(message) {
		return cases.FinalCaseMessage
	}
	return message
}

func mentionsCompleted(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "completed") || strings.Contains(m, "payment released")
}
