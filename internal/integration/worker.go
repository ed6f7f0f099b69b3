package integration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/model"
)

const (
	// DefaultSyncInterval is the time between background sync runs.
	DefaultSyncInterval = 6 * time.Hour

	lockName = "integration-sync"
)

// UserSyncer syncs one user's providers into their ledger.
type UserSyncer interface {
	ListUsersWithConnections(ctx context.Context) ([]*model.User, error)
	SyncUser(ctx context.Context, user *model.User) (*SyncReport, error)
}

// Locker guards a run so only one instance syncs at a time.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

// Worker periodically syncs every user with connected providers.
type Worker struct {
	syncer   UserSyncer
	locker   Locker
	logger   *slog.Logger
	interval time.Duration

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a sync worker. A nil locker runs without coordination.
func NewWorker(syncer UserSyncer, locker Locker, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Worker{
		syncer:   syncer,
		locker:   locker,
		logger:   logger.With("component", "integration.worker"),
		interval: interval,
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	w.logger.Info("sync worker started", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopping")
			return nil
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("sync run failed", "error", err)
			}
		}
	}
}

// RunOnce syncs every connected user once. Another instance holding the
// lock makes this a no-op.
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.locker != nil {
		release, err := w.locker.AcquireLock(ctx, lockName, w.interval)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				w.logger.Debug("sync already running elsewhere")
				return nil
			}
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release sync lock", "error", err)
			}
		}()
	}

	users, err := w.syncer.ListUsersWithConnections(ctx)
	if err != nil {
		return err
	}

	imported := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report, err := w.syncer.SyncUser(ctx, user)
		if err != nil {
			w.logger.Warn("user sync failed", "user_id", user.ID, "error", err)
			continue
		}
		imported += report.Imported
	}

	w.logger.Info("sync run complete", "users", len(users), "imported", imported)
	return nil
}

// Shutdown stops the worker and waits for an in-flight run to finish.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("sync worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("sync worker shutdown timed out")
		return ctx.Err()
	}
}
