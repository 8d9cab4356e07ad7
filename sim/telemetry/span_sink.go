package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inference-sim/workshop-sim/sim"
)

// DefaultEpoch is the wall-clock instant simulation time 0 maps onto.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// SpanSink implements sim.MetricsSink and sim.AbandonSink. Every completed
// job becomes one "job" span from arrival to completion with a "granted"
// event at the end of its wait; abandoned processes end with an error status.
type SpanSink struct {
	ctx    context.Context
	tracer trace.Tracer
	epoch  time.Time
	unit   time.Duration
	clock  func() float64
}

// Option configures a SpanSink.
type Option func(s *SpanSink)

// WithEpoch sets the wall-clock instant of simulation time 0.
func WithEpoch(epoch time.Time) Option {
	return func(s *SpanSink) { s.epoch = epoch }
}

// WithTimeUnit sets the wall-clock length of one simulation time unit.
func WithTimeUnit(unit time.Duration) Option {
	return func(s *SpanSink) { s.unit = unit }
}

// WithClock supplies the simulation clock, used to end abandoned spans at
// shutdown time.
func WithClock(clock func() float64) Option {
	return func(s *SpanSink) { s.clock = clock }
}

// WithContext sets the parent context of every job span.
func WithContext(ctx context.Context) Option {
	return func(s *SpanSink) { s.ctx = ctx }
}

// NewSpanSink creates a sink recording spans with tracer. One time unit is
// one minute by default.
func NewSpanSink(tracer trace.Tracer, opts ...Option) *SpanSink {
	s := &SpanSink{
		ctx:    context.Background(),
		tracer: tracer,
		epoch:  DefaultEpoch,
		unit:   time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// At maps a simulation time onto the wall clock.
func (s *SpanSink) At(t float64) time.Time {
	return s.epoch.Add(time.Duration(t * float64(s.unit)))
}

// RecordMetric is a no-op; the JobRecord carries every value the span needs.
func (s *SpanSink) RecordMetric(sim.MetricEvent) {}

func (s *SpanSink) RecordJob(rec sim.JobRecord) {
	granted := rec.ArrivalTime + rec.WaitTime
	_, span := s.tracer.Start(s.ctx, "job",
		trace.WithTimestamp(s.At(rec.ArrivalTime)),
		trace.WithAttributes(
			attribute.Int64("job.id", int64(rec.JobID)),
			attribute.String("job.type", rec.JobType),
			attribute.Float64("job.arrival_time", rec.ArrivalTime),
			attribute.Float64("job.wait_time", rec.WaitTime),
			attribute.Float64("job.service_duration", rec.ServiceDuration),
			attribute.Float64("job.total_time", rec.CompletionTime),
		),
	)
	span.AddEvent("granted", trace.WithTimestamp(s.At(granted)))
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(s.At(rec.FinishedAt())))
}

func (s *SpanSink) RecordAbandoned(p *sim.Process) {
	end := p.ArrivalTime
	if s.clock != nil {
		end = s.clock()
	}
	_, span := s.tracer.Start(s.ctx, "job",
		trace.WithTimestamp(s.At(p.ArrivalTime)),
		trace.WithAttributes(
			attribute.Int64("job.id", int64(p.ID)),
			attribute.Float64("job.arrival_time", p.ArrivalTime),
		),
	)
	if p.StartTime != nil {
		span.AddEvent("granted", trace.WithTimestamp(s.At(*p.StartTime)))
	}
	span.SetStatus(codes.Error, "abandoned at horizon")
	span.End(trace.WithTimestamp(s.At(end)))
}
