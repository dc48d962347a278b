package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/auth"
	"github.com/thegitsss/lets-para3-sub002/config"
	"github.com/thegitsss/lets-para3-sub002/db"
	"github.com/thegitsss/lets-para3-sub002/journal"
	"github.com/thegitsss/lets-para3-sub002/lifecycle"
	"github.com/thegitsss/lets-para3-sub002/logging"
	"github.com/thegitsss/lets-para3-sub002/store"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	viewer    auth.Viewer
	svc       *lifecycle.Service
	snapshots *store.RedisSnapshot
	pool      *pgxpool.Pool
	out       io.Writer
	closed    bool
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	logger, err := logging.New(cfg.LogEnv)
	if err != nil {
		return nil, fmt.Errorf("casectl: build logger: %w", err)
	}

	viewer, err := auth.NewService(cfg.JWTSecret).Viewer(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("casectl: resolve viewer (set CASEDESK_TOKEN): %w", err)
	}

	client := api.NewClient(cfg.APIURL, cfg.Token, nil)
	svc := lifecycle.NewService(client, store.NewCache(), viewer).
		WithLogger(logger).
		WithPageLimit(cfg.PageLimit)

	a := &app{cfg: cfg, logger: logger, viewer: viewer, svc: svc, out: out}

	if cfg.SnapshotsEnabled() {
		snap, err := store.NewRedisSnapshot(cfg.RedisURL)
		if err != nil {
			logger.Warn("cache snapshots disabled", zap.Error(err))
		} else {
			a.snapshots = snap
			svc.WithSnapshotter(snap)
		}
	}

	if cfg.JournalEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("transition journal disabled", zap.Error(err))
		} else if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			logger.Warn("transition journal disabled", zap.Error(err))
		} else {
			a.pool = pool
			svc.WithJournal(journal.NewRecorder(pool, nil))
		}
	}

	return a, nil
}

func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.snapshots != nil {
		_ = a.snapshots.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}
