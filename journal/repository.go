package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateIdempotencyKey signals the entry was already recorded.
	ErrDuplicateIdempotencyKey = errors.New("journal: duplicate idempotency key")
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// InsertIdempotencyKey reserves key inside the active transaction.
func (r *Repository) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	if key == "" {
		return fmt.Errorf("journal: empty idempotency key")
	}

	_, err := tx.Exec(ctx, `INSERT INTO idempotency (key) VALUES ($1)`, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("journal: insert idempotency key: %w", err)
	}

	return nil
}

// InsertEvent appends the transition to case_events and returns its id.
func (r *Repository) InsertEvent(ctx context.Context, tx pgx.Tx, e Entry) (int64, error) {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("journal: marshal event payload: %w", err)
	}

	var actorID any
	if e.ActorID != nil {
		actorID = *e.ActorID
	}

	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	const insertSQL = `
INSERT INTO case_events (case_id, op, previous_status, next_status, actor_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;
`

	var id int64
	if err := tx.QueryRow(ctx, insertSQL, e.CaseID, e.Op, e.PreviousStatus, e.NextStatus, actorID, payloadBytes, occurredAt.UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("journal: insert case event: %w", err)
	}

	return id, nil
}

// EnqueueOutbox writes the outbox row for the event.
func (r *Repository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal: marshal outbox payload: %w", err)
	}

	const insertSQL = `
INSERT INTO outbox (topic, payload)
VALUES ($1, $2);
`

	if _, err := tx.Exec(ctx, insertSQL, topic, payloadBytes); err != nil {
		return fmt.Errorf("journal: insert outbox message: %w", err)
	}

	return nil
}

// ListEvents returns the recorded events for caseID, oldest first.
func (r *Repository) ListEvents(ctx context.Context, q Querier, caseID string) ([]Event, error) {
	const selectSQL = `
SELECT id, case_id, op, previous_status, next_status, actor_id, payload, occurred_at, created_at
FROM case_events
WHERE case_id = $1
ORDER BY id;
`

	rows, err := q.Query(ctx, selectSQL, caseID)
	if err != nil {
		return nil, fmt.Errorf("journal: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.CaseID, &ev.Op, &ev.PreviousStatus, &ev.NextStatus, &ev.ActorID, &ev.Payload, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate events: %w", err)
	}
	return out, nil
}
