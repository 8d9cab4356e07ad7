package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents    int
	EventsByKind   map[string]int
	TotalGrants    int
	TotalReleases  int
	ForcedReleases int
	MeanWait       float64
	MaxWait        float64
	PeakInUse      map[string]int // pool → highest InUse observed at a grant
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		EventsByKind: make(map[string]int),
		PeakInUse:    make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	for _, e := range st.Events {
		summary.EventsByKind[e.Kind]++
	}

	if len(st.Grants) > 0 {
		totalWait := 0.0
		for _, g := range st.Grants {
			totalWait += g.Waited
			if g.Waited > summary.MaxWait {
				summary.MaxWait = g.Waited
			}
			for _, p := range g.Pools {
				if p.InUse > summary.PeakInUse[p.Pool] {
					summary.PeakInUse[p.Pool] = p.InUse
				}
			}
		}
		summary.MeanWait = totalWait / float64(len(st.Grants))
	}
	summary.TotalGrants = len(st.Grants)

	summary.TotalReleases = len(st.Releases)
	for _, r := range st.Releases {
		if r.Forced {
			summary.ForcedReleases++
		}
	}
	return summary
}
