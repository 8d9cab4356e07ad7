// Defines the read-only metric stream the simulator emits for completed jobs.
// Aggregation lives with the consumer (see sim/stats); the core never
// summarizes anything itself.

package sim

import "fmt"

// MetricKind names one of the per-job measurements.
type MetricKind string

const (
	MetricWaitTime        MetricKind = "wait_time"
	MetricServiceDuration MetricKind = "service_duration"
	MetricTotalTime       MetricKind = "total_time"
)

// MetricEvent is a single measurement of a completed job.
type MetricEvent struct {
	Kind    MetricKind
	JobID   ProcessID
	JobType string
	Time    float64 // simulation time the job completed
	Value   float64
}

// JobRecord summarizes one completed job.
type JobRecord struct {
	JobID           ProcessID
	JobType         string
	ArrivalTime     float64
	WaitTime        float64
	ServiceDuration float64
	// CompletionTime is the time from arrival to completion.
	CompletionTime float64
}

// FinishedAt returns the simulation time at which the job terminated.
func (r JobRecord) FinishedAt() float64 {
	return r.ArrivalTime + r.CompletionTime
}

// Metrics expands the record into its WaitTime, ServiceDuration and TotalTime events.
func (r JobRecord) Metrics() [3]MetricEvent {
	at := r.FinishedAt()
	return [3]MetricEvent{
		{Kind: MetricWaitTime, JobID: r.JobID, JobType: r.JobType, Time: at, Value: r.WaitTime},
		{Kind: MetricServiceDuration, JobID: r.JobID, JobType: r.JobType, Time: at, Value: r.ServiceDuration},
		{Kind: MetricTotalTime, JobID: r.JobID, JobType: r.JobType, Time: at, Value: r.CompletionTime},
	}
}

func (r JobRecord) String() string {
	return fmt.Sprintf("Job: (ID: %d, Type: %s, Arrival: %.3f, Wait: %.3f, Service: %.3f, Total: %.3f)",
		r.JobID, r.JobType, r.ArrivalTime, r.WaitTime, r.ServiceDuration, r.CompletionTime)
}

// MetricsSink consumes the metric stream. Implementations must not feed back
// into scheduling.
type MetricsSink interface {
	RecordMetric(MetricEvent)
	RecordJob(JobRecord)
}

// AbandonSink is optionally implemented by sinks that want to know which
// processes were cut off by Shutdown.
type AbandonSink interface {
	RecordAbandoned(p *Process)
}

// MultiSink fans every record out to each sink in order.
type MultiSink []MetricsSink

func (m MultiSink) RecordMetric(ev MetricEvent) {
	for _, s := range m {
		s.RecordMetric(ev)
	}
}

func (m MultiSink) RecordJob(rec JobRecord) {
	for _, s := range m {
		s.RecordJob(rec)
	}
}

func (m MultiSink) RecordAbandoned(p *Process) {
	for _, s := range m {
		if as, ok := s.(AbandonSink); ok {
			as.RecordAbandoned(p)
		}
	}
}

// DiscardSink drops everything.
type DiscardSink struct{}

func (DiscardSink) RecordMetric(MetricEvent) {}
func (DiscardSink) RecordJob(JobRecord)      {}

// RecordingSink keeps every record in arrival order. Handy in tests and for
// replay comparisons.
type RecordingSink struct {
	Events []MetricEvent
	Jobs   []JobRecord
}

func (r *RecordingSink) RecordMetric(ev MetricEvent) {
	r.Events = append(r.Events, ev)
}

func (r *RecordingSink) RecordJob(rec JobRecord) {
	r.Jobs = append(r.Jobs, rec)
}
