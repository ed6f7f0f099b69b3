package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository/memory"
)

var testStart = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// cheapParams keep argon2 fast in tests.
var cheapParams = auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionCache struct {
	mu      sync.Mutex
	entries map[string]*model.AuthContext
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{entries: make(map[string]*model.AuthContext)}
}

func (f *fakeSessionCache) GetAuthContext(_ context.Context, key string) (*model.AuthContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (f *fakeSessionCache) SetAuthContext(_ context.Context, key string, a *model.AuthContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *a
	f.entries[key] = &c
	return nil
}

func (f *fakeSessionCache) DeleteAuthContext(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeSessionCache) InvalidateUserSessions(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, a := range f.entries {
		if a.UserID == userID {
			delete(f.entries, k)
		}
	}
	return nil
}

func (f *fakeSessionCache) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// fakeLimiter allows limit attempts per subject until reset.
type fakeLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, counts: make(map[string]int)}
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, scope, subject string, _, _ int) (*cache.RateLimitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := scope + ":" + subject
	f.counts[key]++
	return &cache.RateLimitResult{Allowed: f.counts[key] <= f.limit}, nil
}

func (f *fakeLimiter) ResetRateLimit(_ context.Context, scope, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, scope+":"+subject)
	return nil
}

type authFixture struct {
	svc     *AuthService
	store   *memory.Store
	cache   *fakeSessionCache
	limiter *fakeLimiter
	clock   *clock.Manual
}

func newAuthFixture() *authFixture {
	store := memory.New()
	sc := newFakeSessionCache()
	limiter := newFakeLimiter(3)
	clk := clock.NewManual(testStart)
	svc := NewAuthService(store, sc, limiter, clk, discardLogger(), nil, AuthOptions{
		SessionTTL:           24 * time.Hour,
		PinAttemptsPerMinute: 3,
		HashParams:           cheapParams,
	})
	return &authFixture{svc: svc, store: store, cache: sc, limiter: limiter, clock: clk}
}
