package handler

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/tzedaka/maaser/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "maaser_session_cache_hits_total %d\n", snap.SessionCacheHits)
	writeMetric(w, "maaser_session_cache_misses_total %d\n", snap.SessionCacheMisses)
	writeMetric(w, "maaser_logins_total %d\n", snap.Logins)
	writeLabelled(w, "maaser_auth_failures_total", "reason", snap.AuthFailures)

	writeLabelled(w, "maaser_entries_created_total", "kind", snap.EntriesCreated)
	writeLabelled(w, "maaser_entries_updated_total", "kind", snap.EntriesUpdated)
	writeLabelled(w, "maaser_entries_deleted_total", "kind", snap.EntriesDeleted)

	for _, key := range sortedKeys(snap.ProviderSyncs) {
		provider, status, _ := strings.Cut(key, "/")
		writeMetric(w, "maaser_provider_syncs_total{provider=%q,status=%q} %d\n", provider, status, snap.ProviderSyncs[key])
	}
	writeLabelled(w, "maaser_synced_transactions_total", "provider", snap.SyncedTransactions)

	writeMetric(w, "maaser_sync_duration_seconds_count %d\n", snap.SyncDurationCount)
	writeMetric(w, "maaser_sync_duration_seconds_sum %.6f\n", float64(snap.SyncDurationTotalNs)/1e9)
}

func writeLabelled(w io.Writer, name, label string, values map[string]uint64) {
	for _, key := range sortedKeys(values) {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
