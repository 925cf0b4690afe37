package engine

// GateDecision is the routing verdict after data retrieval.
type GateDecision int

const (
	// Proceed runs the full pipeline.
	Proceed GateDecision = iota
	// FastPathReport skips analysis and insight, routing straight to the
	// report with the retrieval artifact only. This is a cost-saving route,
	// not an error.
	FastPathReport
)

func (d GateDecision) String() string {
	if d == FastPathReport {
		return "fast_path_report"
	}
	return "proceed"
}

// DecideQuality is the quality gate: a pure function of the retrieval
// quality score and the configured threshold.
func DecideQuality(qualityScore, threshold float64) GateDecision {
	if qualityScore < threshold {
		return FastPathReport
	}
	return Proceed
}
