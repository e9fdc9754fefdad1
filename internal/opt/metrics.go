package opt

// Metrics summarizes one Optimize call.
type Metrics struct {
	Passes           int
	Components       int
	LargestComponent int
	Edges            int
	BruteForceSolves int
	BeamSolves       int
	Candidates       int
	BeamSteps        int
	KeptPrevious     int // re-solves discarded for scoring below the previous pass
	OracleCalls      int
	Placed           int
	BestTotal        float64
	FinalTotal       float64
	Snapshots        []PassSnapshot
	DurationMs       int64
}

// PassSnapshot is the running score at the end of a pass.
type PassSnapshot struct {
	Pass   int
	Total  float64
	Placed int
}

// AsMap flattens m for JSON responses and run records.
func (m Metrics) AsMap() map[string]any {
	snaps := make([]map[string]any, 0, len(m.Snapshots))
	for _, s := range m.Snapshots {
		snaps = append(snaps, map[string]any{"pass": s.Pass, "total": s.Total, "placed": s.Placed})
	}
	return map[string]any{
		"passes":           m.Passes,
		"components":       m.Components,
		"largestComponent": m.LargestComponent,
		"edges":            m.Edges,
		"bruteForceSolves": m.BruteForceSolves,
		"beamSolves":       m.BeamSolves,
		"candidates":       m.Candidates,
		"beamSteps":        m.BeamSteps,
		"keptPrevious":     m.KeptPrevious,
		"oracleCalls":      m.OracleCalls,
		"placed":           m.Placed,
		"bestTotal":        m.BestTotal,
		"finalTotal":       m.FinalTotal,
		"snapshots":        snaps,
		"durationMs":       m.DurationMs,
	}
}
