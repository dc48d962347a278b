package purge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often the visible countdown is recomputed.
const DefaultInterval = time.Minute

// RenderFunc receives the formatted countdown for caseID. It must not call
// back into the Watcher.
type RenderFunc func(caseID, remaining string)

// Watcher runs at most one countdown at a time, for the visible case.
// Starting a new countdown stops the previous one first.
type Watcher struct {
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	caseID string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatcher(interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{interval: interval, now: time.Now, logger: logger}
}

func (w *Watcher) WithClock(now func() time.Time) *Watcher {
	w.now = now
	return w
}

// Watch starts the countdown for caseID, replacing any running one. The
// countdown ends when ctx is cancelled, Stop is called, another Watch
// starts, or the clamp reaches 00:00.
func (w *Watcher) Watch(ctx context.Context, caseID string, purgeAt time.Time, render RenderFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.caseID = caseID
	w.cancel = cancel
	w.done = done

	w.logger.Debug("purge countdown started", zap.String("case_id", caseID), zap.Time("purge_at", purgeAt))
	go w.run(runCtx, done, caseID, purgeAt, render)
}

// Stop cancels the running countdown, if any, and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Current returns the case whose countdown is running, or "".
func (w *Watcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return ""
	}
	select {
	case <-w.done:
		return ""
	default:
		return w.caseID
	}
}

func (w *Watcher) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.logger.Debug("purge countdown stopped", zap.String("case_id", w.caseID))
	w.cancel = nil
	w.done = nil
	w.caseID = ""
}

func (w *Watcher) run(ctx context.Context, done chan struct{}, caseID string, purgeAt time.Time, render RenderFunc) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		remaining := Remaining(purgeAt, w.now())
		render(caseID, Format(remaining))
		if remaining == 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
