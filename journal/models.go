// Package journal records successful case transitions to Postgres together
// with an outbox row for downstream consumers.
package journal

import "time"

// Entry is one successful transition as seen by the client.
type Entry struct {
	IdempotencyKey string
	CaseID         string
	Op             string
	PreviousStatus string
	NextStatus     string
	ActorID        *string
	Payload        map[string]any
	OccurredAt     time.Time
}

// Event mirrors the case_events table.
type Event struct {
	ID             int64
	CaseID         string
	Op             string
	PreviousStatus string
	NextStatus     string
	ActorID        *string
	Payload        []byte
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// OutboxMessage represents a transactional outbox entry.
type OutboxMessage struct {
	ID        int64
	Topic     string
	Payload   []byte
	Status    string
	Attempts  int
	CreatedAt time.Time
}

// TopicFor returns the outbox topic for op.
func TopicFor(op string) string {
	return "case." + op
}
