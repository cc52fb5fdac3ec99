package metrics

import (
	"sync"
	"time"
)

// InMemoryRecorder implements Recorder with in-process counters.
// Suitable for the metrics endpoint of a single instance; not durable.
type InMemoryRecorder struct {
	mu sync.Mutex

	mergeInitiated map[string]int64
	mergeVerified  map[string]int64
	mergeCompleted map[string]int64
	mergeCancelled int64
	mailSent       map[string]int64

	mergeDurationCount int64
	mergeDurationTotal time.Duration
	mergeOpsApplied    int64
}

// NewInMemory returns a Recorder backed by in-process counters.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		mergeInitiated: make(map[string]int64),
		mergeVerified:  make(map[string]int64),
		mergeCompleted: make(map[string]int64),
		mailSent:       make(map[string]int64),
	}
}

// IncMergeInitiated increments the initiate counter for a status.
func (r *InMemoryRecorder) IncMergeInitiated(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeInitiated[status]++
}

// IncMergeVerified increments the verify counter for a status.
func (r *InMemoryRecorder) IncMergeVerified(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeVerified[status]++
}

// IncMergeCompleted increments the complete counter for a status.
func (r *InMemoryRecorder) IncMergeCompleted(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeCompleted[status]++
}

// IncMergeCancelled increments the cancel counter.
func (r *InMemoryRecorder) IncMergeCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeCancelled++
}

// ObserveMergeDuration records one merge execution duration.
func (r *InMemoryRecorder) ObserveMergeDuration(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeDurationCount++
	r.mergeDurationTotal += duration
}

// ObserveMergeOpsApplied adds to the applied-ops counter.
func (r *InMemoryRecorder) ObserveMergeOpsApplied(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeOpsApplied += int64(count)
}

// IncMailSent increments the mail counter for a status.
func (r *InMemoryRecorder) IncMailSent(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailSent[status]++
}

// Snapshot returns a copy of all counters.
func (r *InMemoryRecorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		MergeInitiated:     copyCounters(r.mergeInitiated),
		MergeVerified:      copyCounters(r.mergeVerified),
		MergeCompleted:     copyCounters(r.mergeCompleted),
		MergeCancelled:     r.mergeCancelled,
		MailSent:           copyCounters(r.mailSent),
		MergeDurationCount: r.mergeDurationCount,
		MergeDurationTotal: r.mergeDurationTotal,
		MergeOpsApplied:    r.mergeOpsApplied,
	}
}

func copyCounters(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
