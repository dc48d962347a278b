package dispute

import "time"

// Status represents the termination sub-state of a case.
type Status string

const (
	StatusNone          Status = "none"
	StatusRequested     Status = "requested"
	StatusAutoCancelled Status = "auto_cancelled"
	StatusDisputed      Status = "disputed"
)

// Termination mirrors the termination block carried on a case record.
type Termination struct {
	Status       Status     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	RequestedAt  *time.Time `json:"requestedAt,omitempty"`
	RequestedBy  string     `json:"requestedBy,omitempty"`
	DisputeID    string     `json:"disputeId,omitempty"`
	TerminatedAt *time.Time `json:"terminatedAt,omitempty"`
}

// Outcome is the backend's arbitration of a termination request.
type Outcome struct {
	RequiresAdmin bool
	DisputeID     string
}
