// Package status canonicalizes the case status spellings the backend emits.
//
// Every other package branches on Status values only; raw backend strings
// are passed through Normalize exactly once, when a case is decoded.
package status

import "strings"

// Status is the canonical case status.
type Status string

const (
	Unknown    Status = ""
	Open       Status = "open"
	Draft      Status = "draft"
	InProgress Status = "in progress"
	Completed  Status = "completed"
	Closed     Status = "closed"
	Disputed   Status = "disputed"
)

var aliases = map[string]Status{
	"open":               Open,
	"assigned":           Open,
	"awaiting_funding":   Open,
	"draft":              Draft,
	"in_progress":        InProgress,
	"active":             InProgress,
	"awaiting_documents": InProgress,
	"reviewing":          InProgress,
	"funded_in_progress": InProgress,
	"completed":          Completed,
	"complete":           Completed,
	"closed":             Closed,
	"cancelled":          Closed,
	"canceled":           Closed,
	"disputed":           Disputed,
}

// pendingFunding lists the spellings that mean a paralegal is tentatively
// attached but escrow has not been funded yet.
var pendingFunding = map[string]struct{}{
	"assigned":         {},
	"awaiting_funding": {},
}

// Normalize maps a raw backend status to its canonical form. Unknown or
// empty input yields Unknown. Normalize is total and idempotent.
func Normalize(raw string) Status {
	if s, ok := aliases[key(raw)]; ok {
		return s
	}
	return Unknown
}

// IsPendingFunding reports whether raw is one of the pending-hire spellings
// that Normalize folds into Open.
func IsPendingFunding(raw string) bool {
	_, ok := pendingFunding[key(raw)]
	return ok
}

// Display renders the status for list views; Unknown shows as open.
func (s Status) Display() string {
	if s == Unknown {
		return string(Open)
	}
	return string(s)
}

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Closed:
		return true
	default:
		return false
	}
}

func key(raw string) string {
	k := strings.ToLower(strings.TrimSpace(raw))
	k = strings.ReplaceAll(k, "-", "_")
	return strings.Join(strings.Fields(k), "_")
}
