package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// EntryRepository defines the data access required by the recorder.
type EntryRepository interface {
	InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error
	InsertEvent(ctx context.Context, tx pgx.Tx, e Entry) (int64, error)
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

type Recorder struct {
	pool TxBeginner
	repo EntryRepository
}

func NewRecorder(pool TxBeginner, repo EntryRepository) *Recorder {
	if repo == nil {
		repo = NewRepository()
	}
	return &Recorder{
		pool: pool,
		repo: repo,
	}
}

// Record writes the event and its outbox row in one transaction. A replayed
// idempotency key is a no-op.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if e.IdempotencyKey == "" {
		return fmt.Errorf("journal: missing idempotency key")
	}
	if e.CaseID == "" {
		return fmt.Errorf("journal: missing case id")
	}
	if e.Op == "" {
		return fmt.Errorf("journal: missing op")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.repo.InsertIdempotencyKey(ctx, tx, e.IdempotencyKey); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			return nil
		}
		return err
	}

	eventID, err := r.repo.InsertEvent(ctx, tx, e)
	if err != nil {
		return err
	}

	outbox := map[string]any{
		"event_id":        eventID,
		"case_id":         e.CaseID,
		"op":              e.Op,
		"previous_status": e.PreviousStatus,
		"next_status":     e.NextStatus,
	}
	if e.ActorID != nil {
		outbox["actor_id"] = *e.ActorID
	}
	if err := r.repo.EnqueueOutbox(ctx, tx, TopicFor(e.Op), outbox); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("journal: commit tx: %w", err)
	}

	return nil
}
