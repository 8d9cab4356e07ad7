// Package sim provides the core discrete-event simulation engine for the workshop.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event_queue.go: the (due time, sequence) ordered queue that owns the clock
//   - process.go: Process, Behavior and the Yield values that mark suspension points
//   - coordinator.go: all-or-nothing acquisition across several ResourcePools
//   - simulator.go: the event loop, process resumption and horizon handling
//   - job.go: the Job behavior (Arrived → Waiting → Granted → InService → Terminated)
//
// # Architecture
//
// The engine is strictly single-threaded. Exactly one process runs at a time,
// between two suspension points, and pool state only changes inside an event
// handler. Collaborators live in sub-packages and talk to the engine through
// Simulator.Submit and the MetricsSink interface:
//   - sim/workload/: arrival processes, job types and duration sampling from a YAML spec
//   - sim/stats/: summary statistics over the metric stream
//   - sim/trace/: event and grant trace recording
//   - sim/telemetry/: OpenTelemetry spans for completed jobs
//
// # Key Interfaces
//
//   - Event: an action bound to a queue entry (arrival, timeout, grant)
//   - Behavior: process logic written as an explicit state machine
//   - MetricsSink: read-only consumer of completion records
//   - GrantObserver: sees every joint grant after all pools were incremented
package sim
