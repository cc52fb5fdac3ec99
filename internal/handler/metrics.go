package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/corates/corates/internal/metrics"
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
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabeledMetric(w, "corates_merge_initiated_total", snap.MergeInitiated)
	writeLabeledMetric(w, "corates_merge_verified_total", snap.MergeVerified)
	writeLabeledMetric(w, "corates_merge_completed_total", snap.MergeCompleted)
	writeMetric(w, "corates_merge_cancelled_total %d\n", snap.MergeCancelled)
	writeLabeledMetric(w, "corates_mail_sent_total", snap.MailSent)

	writeMetric(w, "corates_merge_duration_seconds_count %d\n", snap.MergeDurationCount)
	writeMetric(w, "corates_merge_duration_seconds_sum %.6f\n", snap.MergeDurationTotal.Seconds())
	writeMetric(w, "corates_merge_ops_applied_total %d\n", snap.MergeOpsApplied)
}

// writeLabeledMetric emits one line per status label, in stable order.
func writeLabeledMetric(w http.ResponseWriter, name string, byStatus map[string]int64) {
	statuses := make([]string, 0, len(byStatus))
	for status := range byStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		writeMetric(w, name+"{status=%q} %d\n", status, byStatus[status])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
