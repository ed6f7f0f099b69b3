package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/model"
)

type fakeSyncer struct {
	mu     sync.Mutex
	users  []*model.User
	synced []string
	failOn string
}

func (f *fakeSyncer) ListUsersWithConnections(context.Context) ([]*model.User, error) {
	return f.users, nil
}

func (f *fakeSyncer) SyncUser(_ context.Context, user *model.User) (*SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == f.failOn {
		return nil, errors.New("sync failed")
	}
	f.synced = append(f.synced, user.ID)
	return &SyncReport{Imported: 2}, nil
}

type fakeLocker struct {
	held     bool
	released int
}

func (f *fakeLocker) AcquireLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if f.held {
		return nil, cache.ErrLockHeld
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

func TestWorker_RunOnce(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{
		users:  []*model.User{{ID: "usr_a"}, {ID: "usr_b"}, {ID: "usr_c"}},
		failOn: "usr_b",
	}
	locker := &fakeLocker{}
	w := NewWorker(syncer, locker, discardLogger(), time.Hour)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, []string{"usr_a", "usr_c"}, syncer.synced)
	assert.Equal(t, 1, locker.released)
}

func TestWorker_RunOnce_LockHeld(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{users: []*model.User{{ID: "usr_a"}}}
	w := NewWorker(syncer, &fakeLocker{held: true}, discardLogger(), time.Hour)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Empty(t, syncer.synced)
}

func TestWorker_RunAndShutdown(t *testing.T) {
	t.Parallel()

	w := NewWorker(&fakeSyncer{}, nil, discardLogger(), time.Hour)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.started
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
