package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (*NoopRecorder) IncSessionCacheHit()               {}
func (*NoopRecorder) IncSessionCacheMiss()              {}
func (*NoopRecorder) IncAuthFailure(string)             {}
func (*NoopRecorder) IncLogin()                         {}
func (*NoopRecorder) IncEntryCreated(string)            {}
func (*NoopRecorder) IncEntryUpdated(string)            {}
func (*NoopRecorder) IncEntryDeleted(string)            {}
func (*NoopRecorder) IncProviderSync(string, string)    {}
func (*NoopRecorder) AddSyncedTransactions(string, int) {}
func (*NoopRecorder) ObserveSyncDuration(time.Duration) {}
