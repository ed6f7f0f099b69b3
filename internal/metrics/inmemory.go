package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SessionCacheHits   uint64
	SessionCacheMisses uint64
	Logins             uint64
	AuthFailures       map[string]uint64
	EntriesCreated     map[string]uint64
	EntriesUpdated     map[string]uint64
	EntriesDeleted     map[string]uint64
	// ProviderSyncs is keyed by "provider/status".
	ProviderSyncs       map[string]uint64
	SyncedTransactions  map[string]uint64
	SyncDurationCount   uint64
	SyncDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	sessionCacheHits    uint64
	sessionCacheMisses  uint64
	logins              uint64
	syncDurationCount   uint64
	syncDurationTotalNs int64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

const (
	authFailures       = "auth_failures"
	entriesCreated     = "entries_created"
	entriesUpdated     = "entries_updated"
	entriesDeleted     = "entries_deleted"
	providerSyncs      = "provider_syncs"
	syncedTransactions = "synced_transactions"
)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		SessionCacheHits:    atomic.LoadUint64(&m.sessionCacheHits),
		SessionCacheMisses:  atomic.LoadUint64(&m.sessionCacheMisses),
		Logins:              atomic.LoadUint64(&m.logins),
		AuthFailures:        m.copyLocked(authFailures),
		EntriesCreated:      m.copyLocked(entriesCreated),
		EntriesUpdated:      m.copyLocked(entriesUpdated),
		EntriesDeleted:      m.copyLocked(entriesDeleted),
		ProviderSyncs:       m.copyLocked(providerSyncs),
		SyncedTransactions:  m.copyLocked(syncedTransactions),
		SyncDurationCount:   atomic.LoadUint64(&m.syncDurationCount),
		SyncDurationTotalNs: atomic.LoadInt64(&m.syncDurationTotalNs),
	}
}

func (m *InMemoryRecorder) add(family, label string, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters, ok := m.labelled[family]
	if !ok {
		counters = make(map[string]uint64)
		m.labelled[family] = counters
	}
	counters[label] += n
}

func (m *InMemoryRecorder) copyLocked(family string) map[string]uint64 {
	out := make(map[string]uint64, len(m.labelled[family]))
	for k, v := range m.labelled[family] {
		out[k] = v
	}
	return out
}

// IncSessionCacheHit increments the session cache hit counter.
func (m *InMemoryRecorder) IncSessionCacheHit() {
	atomic.AddUint64(&m.sessionCacheHits, 1)
}

// IncSessionCacheMiss increments the session cache miss counter.
func (m *InMemoryRecorder) IncSessionCacheMiss() {
	atomic.AddUint64(&m.sessionCacheMisses, 1)
}

// IncAuthFailure counts a failed authentication by reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.add(authFailures, reason, 1)
}

// IncLogin counts a successful login or registration.
func (m *InMemoryRecorder) IncLogin() {
	atomic.AddUint64(&m.logins, 1)
}

func (m *InMemoryRecorder) IncEntryCreated(kind string) { m.add(entriesCreated, kind, 1) }
func (m *InMemoryRecorder) IncEntryUpdated(kind string) { m.add(entriesUpdated, kind, 1) }
func (m *InMemoryRecorder) IncEntryDeleted(kind string) { m.add(entriesDeleted, kind, 1) }

// IncProviderSync counts one provider fetch.
func (m *InMemoryRecorder) IncProviderSync(provider, status string) {
	m.add(providerSyncs, provider+"/"+status, 1)
}

// AddSyncedTransactions counts newly stored provider transactions.
func (m *InMemoryRecorder) AddSyncedTransactions(provider string, n int) {
	if n > 0 {
		m.add(syncedTransactions, provider, uint64(n))
	}
}

// ObserveSyncDuration records one full sync run.
func (m *InMemoryRecorder) ObserveSyncDuration(duration time.Duration) {
	atomic.AddUint64(&m.syncDurationCount, 1)
	atomic.AddInt64(&m.syncDurationTotalNs, duration.Nanoseconds())
}
