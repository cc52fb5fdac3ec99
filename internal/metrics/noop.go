package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncMergeInitiated is a no-op.
func (n *NoopRecorder) IncMergeInitiated(status string) {}

// IncMergeVerified is a no-op.
func (n *NoopRecorder) IncMergeVerified(status string) {}

// IncMergeCompleted is a no-op.
func (n *NoopRecorder) IncMergeCompleted(status string) {}

// IncMergeCancelled is a no-op.
func (n *NoopRecorder) IncMergeCancelled() {}

// ObserveMergeDuration is a no-op.
func (n *NoopRecorder) ObserveMergeDuration(duration time.Duration) {}

// ObserveMergeOpsApplied is a no-op.
func (n *NoopRecorder) ObserveMergeOpsApplied(count int) {}

// IncMailSent is a no-op.
func (n *NoopRecorder) IncMailSent(status string) {}
