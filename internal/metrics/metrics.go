// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Session metrics
	IncSessionCacheHit()
	IncSessionCacheMiss()
	IncAuthFailure(reason string) // reason: "invalid_credentials", "invalid_token", "pin_incorrect", ...
	IncLogin()

	// Ledger metrics
	IncEntryCreated(kind string) // kind: "transaction" or "donation"
	IncEntryUpdated(kind string)
	IncEntryDeleted(kind string)

	// Integration sync metrics
	IncProviderSync(provider, status string) // status: "success" or "failed"
	AddSyncedTransactions(provider string, n int)
	ObserveSyncDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
