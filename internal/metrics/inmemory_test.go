package metrics

import (
	"testing"
	"time"
)

func TestInMemoryRecorder(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncSessionCacheHit()
	m.IncSessionCacheMiss()
	m.IncSessionCacheMiss()
	m.IncAuthFailure("pin_incorrect")
	m.IncEntryCreated("donation")
	m.IncProviderSync("paypal", "success")
	m.IncProviderSync("paypal", "success")
	m.AddSyncedTransactions("paypal", 3)
	m.AddSyncedTransactions("venmo", 0)
	m.ObserveSyncDuration(1500 * time.Millisecond)

	snap := m.Snapshot()
	if snap.SessionCacheHits != 1 || snap.SessionCacheMisses != 2 {
		t.Errorf("cache counters = %d/%d, want 1/2", snap.SessionCacheHits, snap.SessionCacheMisses)
	}
	if snap.AuthFailures["pin_incorrect"] != 1 {
		t.Errorf("auth failures = %v", snap.AuthFailures)
	}
	if snap.EntriesCreated["donation"] != 1 {
		t.Errorf("entries created = %v", snap.EntriesCreated)
	}
	if snap.ProviderSyncs["paypal/success"] != 2 {
		t.Errorf("provider syncs = %v", snap.ProviderSyncs)
	}
	if snap.SyncedTransactions["paypal"] != 3 {
		t.Errorf("synced = %v", snap.SyncedTransactions)
	}
	if _, ok := snap.SyncedTransactions["venmo"]; ok {
		t.Error("zero additions should not create a series")
	}
	if snap.SyncDurationCount != 1 || snap.SyncDurationTotalNs != int64(1500*time.Millisecond) {
		t.Errorf("sync duration = %d/%d", snap.SyncDurationCount, snap.SyncDurationTotalNs)
	}

	// Snapshots are copies.
	snap.EntriesCreated["donation"] = 99
	if m.Snapshot().EntriesCreated["donation"] != 1 {
		t.Error("snapshot must not alias recorder state")
	}
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncLogin()
	r.IncProviderSync("bank", "failed")
	r.ObserveSyncDuration(time.Second)
}
