// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Merge workflow metrics
	IncMergeInitiated(status string) // status: "success", "rejected", "rate_limited", "send_failed"
	IncMergeVerified(status string)  // status: "success", "invalid", "rate_limited"
	IncMergeCompleted(status string) // status: "success", "rejected", "failed"
	IncMergeCancelled()
	ObserveMergeDuration(duration time.Duration)
	ObserveMergeOpsApplied(count int)

	// Mail dispatch metrics
	IncMailSent(status string) // status: "success" or "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Snapshot is a point-in-time view of counters for the metrics endpoint.
type Snapshot struct {
	MergeInitiated map[string]int64 `json:"merge_initiated"`
	MergeVerified  map[string]int64 `json:"merge_verified"`
	MergeCompleted map[string]int64 `json:"merge_completed"`
	MergeCancelled int64            `json:"merge_cancelled"`
	MailSent       map[string]int64 `json:"mail_sent"`

	MergeDurationCount int64         `json:"merge_duration_count"`
	MergeDurationTotal time.Duration `json:"merge_duration_total"`
	MergeOpsApplied    int64         `json:"merge_ops_applied"`
}
