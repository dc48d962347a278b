// Package lifecycle drives case transitions against the backend and keeps
// the local case cache in step with the results.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/auth"
	"github.com/thegitsss/lets-para3-sub002/cases"
	"github.com/thegitsss/lets-para3-sub002/journal"
	"github.com/thegitsss/lets-para3-sub002/store"
)

// DefaultPageLimit is the list size requested on refresh.
const DefaultPageLimit = 100

// Backend is the subset of api.Client the service drives.
type Backend interface {
	ListCases(ctx context.Context, params api.ListParams) ([]cases.Case, error)
	GetCase(ctx context.Context, caseID string) (cases.Case, error)
	PatchCase(ctx context.Context, caseID string, fields map[string]any) (*cases.Case, error)
	SetArchived(ctx context.Context, caseID string, archived bool, status string) (*cases.Case, error)
	DeleteCase(ctx context.Context, caseID string) error
	Hire(ctx context.Context, caseID, paralegalID string) (*cases.Case, error)
	Invite(ctx context.Context, caseID, paralegalID string) (*cases.Case, error)
	RespondInvite(ctx context.Context, caseID, decision string) (*cases.Case, error)
	Apply(ctx context.Context, caseID, note string) (*cases.Case, error)
	Complete(ctx context.Context, caseID string) (api.CompleteResponse, error)
	Terminate(ctx context.Context, caseID, reason string) (api.TerminateResponse, error)
	StartEscrow(ctx context.Context, caseID string) (api.EscrowIntent, error)
	DefaultPaymentMethod(ctx context.Context) (api.PaymentMethod, bool, error)
}

// PaymentConfirmer confirms an escrow intent with the payment processor and
// returns the confirmed intent id. Declines are reported as *PaymentDeclined.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, clientSecret, paymentMethodToken string) (string, error)
}

// Journal records successful transitions.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Snapshotter persists the cache after it changes.
type Snapshotter interface {
	Save(ctx context.Context, viewerID string, r store.Reader) error
}

type flightKey struct {
	caseID string
	op     Op
}

// Service is the only writer of its cache.
type Service struct {
	backend     Backend
	cache       *store.Cache
	viewer      auth.Viewer
	logger      *zap.Logger
	confirmer   PaymentConfirmer
	journal     Journal
	snapshots   Snapshotter
	idGenerator func() string
	now         func() time.Time
	pageLimit   int

	mu       sync.Mutex
	inFlight map[flightKey]struct{}
}

func NewService(backend Backend, cache *store.Cache, viewer auth.Viewer) *Service {
	if cache == nil {
		cache = store.NewCache()
	}
	return &Service{
		backend:     backend,
		cache:       cache,
		viewer:      viewer,
		logger:      zap.NewNop(),
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
		pageLimit:   DefaultPageLimit,
		inFlight:    make(map[flightKey]struct{}),
	}
}

func (s *Service) WithLogger(logger *zap.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithPaymentConfirmer(c PaymentConfirmer) *Service {
	s.confirmer = c
	return s
}

func (s *Service) WithJournal(j Journal) *Service {
	s.journal = j
	return s
}

func (s *Service) WithSnapshotter(snap Snapshotter) *Service {
	s.snapshots = snap
	return s
}

func (s *Service) WithPageLimit(limit int) *Service {
	if limit > 0 {
		s.pageLimit = limit
	}
	return s
}

// Cache exposes read access to the cached cases.
func (s *Service) Cache() store.Reader {
	return s.cache
}

// Viewer returns the user the service acts for.
func (s *Service) Viewer() auth.Viewer {
	return s.viewer
}

// Refresh reloads both case lists and swaps them into the cache together.
func (s *Service) Refresh(ctx context.Context) error {
	var active, archived []cases.Case

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.backend.ListCases(gctx, api.ListParams{Archived: false, Limit: s.pageLimit})
		if err != nil {
			return fmt.Errorf("lifecycle: list active cases: %w", err)
		}
		active = list
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListCases(gctx, api.ListParams{Archived: true, Limit: s.pageLimit})
		if err != nil {
			return fmt.Errorf("lifecycle: list archived cases: %w", err)
		}
		archived = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.cache.Replace(active, archived)
	s.logger.Debug("cases refreshed", zap.Int("active", len(active)), zap.Int("archived", len(archived)))
	s.snapshot(ctx)
	return nil
}

// Reload fetches caseID and replaces the cached copy.
func (s *Service) Reload(ctx context.Context, caseID string) (cases.Case, error) {
	c, err := s.backend.GetCase(ctx, caseID)
	if err != nil {
		return cases.Case{}, fmt.Errorf("lifecycle: reload case: %w", err)
	}
	s.cache.Upsert(c)
	return c, nil
}

// caseFor returns the cached case, fetching it once when absent.
func (s *Service) caseFor(ctx context.Context, caseID string) (cases.Case, error) {
	if c, ok := s.cache.Get(caseID); ok {
		return c, nil
	}
	c, err := s.backend.GetCase(ctx, caseID)
	if err != nil {
		return cases.Case{}, err
	}
	s.cache.Upsert(c)
	return c, nil
}

// acquire marks (caseID, op) as running. The returned func releases it.
func (s *Service) acquire(caseID string, op Op) (func(), error) {
	key := flightKey{caseID: caseID, op: op}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return nil, ErrInFlight
	}
	s.inFlight[key] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}, nil
}

// keyed attaches the idempotency key for one backend write to ctx and
// returns it. The key extends the one already on ctx, or a fresh id, with
// step so follow-up writes of the same operation stay distinct.
func (s *Service) keyed(ctx context.Context, step string) (context.Context, string) {
	base, ok := api.IdempotencyKey(ctx)
	if !ok {
		base = s.idGenerator()
	}
	key := base
	if step != "" {
		key = base + ":" + step
	}
	return api.WithIdempotencyKey(ctx, key), key
}

// commit stores next and emits the transition. key is the idempotency key
// of the write the backend accepted.
func (s *Service) commit(ctx context.Context, key string, op Op, prev, next cases.Case, payload map[string]any) {
	s.cache.Upsert(next)
	s.logger.Info("case transition",
		zap.String("case_id", next.ID),
		zap.String("op", string(op)),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(next.Status)),
	)
	s.record(ctx, key, op, prev.ID, string(prev.Status), string(next.Status), payload)
	s.snapshot(ctx)
}

func (s *Service) record(ctx context.Context, key string, op Op, caseID, from, to string, payload map[string]any) {
	if s.journal == nil {
		return
	}
	var actor *string
	if s.viewer.ID != "" {
		id := s.viewer.ID
		actor = &id
	}
	entry := journal.Entry{
		IdempotencyKey: key,
		CaseID:         caseID,
		Op:             string(op),
		PreviousStatus: from,
		NextStatus:     to,
		ActorID:        actor,
		Payload:        payload,
		OccurredAt:     s.now(),
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal record failed", zap.String("case_id", caseID), zap.String("op", string(op)), zap.Error(err))
	}
}

func (s *Service) snapshot(ctx context.Context) {
	if s.snapshots == nil || s.viewer.ID == "" {
		return
	}
	if err := s.snapshots.Save(ctx, s.viewer.ID, s.cache); err != nil {
		s.logger.Warn("cache snapshot failed", zap.Error(err))
	}
}

func (s *Service) rejected(op Op, caseID string, err *Rejection) *Rejection {
	s.logger.Info("case transition rejected",
		zap.String("case_id", caseID),
		zap.String("op", string(op)),
		zap.String("kind", string(err.Kind)),
		zap.String("message", err.Message),
	)
	return err
}
