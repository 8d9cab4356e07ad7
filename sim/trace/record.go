// Package trace provides event and grant recording for simulation runs.
// This package has no dependencies on sim/. It stores pure data types, so two
// runs can be compared record by record.
package trace

// EventRecord captures a single executed event.
type EventRecord struct {
	Time      float64
	Seq       uint64
	Kind      string
	ProcessID int64
}

// PoolLevel is a snapshot of one pool taken at the moment of a grant.
type PoolLevel struct {
	Pool     string
	InUse    int
	Capacity int
	Queued   int
}

// GrantRecord captures a joint grant together with the state of every pool it
// touched, taken after all pools were incremented.
type GrantRecord struct {
	Time      float64
	RequestID uint64
	ProcessID int64
	Waited    float64
	Pools     []PoolLevel
}

// ReleaseRecord captures the return of a joint request's units.
type ReleaseRecord struct {
	Time      float64
	RequestID uint64
	ProcessID int64
	Forced    bool // released by shutdown rather than by the process
}
