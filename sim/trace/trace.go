package trace

// TraceLevel controls the verbosity of tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelGrants captures grants and releases only.
	TraceLevelGrants TraceLevel = "grants"
	// TraceLevelEvents captures every executed event plus grants and releases.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelGrants: true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation.
type SimulationTrace struct {
	Config   TraceConfig
	Events   []EventRecord
	Grants   []GrantRecord
	Releases []ReleaseRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Events:   make([]EventRecord, 0),
		Grants:   make([]GrantRecord, 0),
		Releases: make([]ReleaseRecord, 0),
	}
}

// RecordEvent appends an event record when the level includes events.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if st.Config.Level != TraceLevelEvents {
		return
	}
	st.Events = append(st.Events, record)
}

// RecordGrant appends a grant record unless tracing is disabled.
func (st *SimulationTrace) RecordGrant(record GrantRecord) {
	if !st.enabled() {
		return
	}
	st.Grants = append(st.Grants, record)
}

// RecordRelease appends a release record unless tracing is disabled.
func (st *SimulationTrace) RecordRelease(record ReleaseRecord) {
	if !st.enabled() {
		return
	}
	st.Releases = append(st.Releases, record)
}

func (st *SimulationTrace) enabled() bool {
	return st.Config.Level == TraceLevelGrants || st.Config.Level == TraceLevelEvents
}
