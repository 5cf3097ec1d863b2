package models

// Verdict is the readiness classification of an export.
type Verdict string

const (
	VerdictReady           Verdict = "ready"
	VerdictNeedsEnrichment Verdict = "needs_enrichment"
	VerdictInsufficient    Verdict = "insufficient"
)

// VerdictForScore maps a 0-100 readiness score to its verdict.
func VerdictForScore(score int) Verdict {
	switch {
	case score >= 80:
		return VerdictReady
	case score >= 50:
		return VerdictNeedsEnrichment
	default:
		return VerdictInsufficient
	}
}

// CoverageCounts is the coverage tally for one artifact type or overall.
// Required counts required, non-waived requirements; waived ones are tallied
// separately and never appear as gaps.
type CoverageCounts struct {
	Required int      `json:"required"`
	Existing int      `json:"existing"`
	Waived   int      `json:"waived"`
	Percent  float64  `json:"percent"`
	Gaps     []string `json:"gaps"`
}

// CoverageReport diffs artifact requirements against existing artifacts.
type CoverageReport struct {
	Overall CoverageCounts                  `json:"overall"`
	ByType  map[ArtifactType]CoverageCounts `json:"by_type"`
	// Existing maps covered requirement ids to the path that satisfied them.
	Existing map[string]string `json:"existing"`
}

// GapCount returns the number of uncovered, required, non-waived artifacts.
func (r *CoverageReport) GapCount() int {
	return len(r.Overall.Gaps)
}

// ReadinessCriterion is one weighted line of the readiness rubric.
type ReadinessCriterion struct {
	Name   string  `json:"name"`
	Weight int     `json:"weight"`
	Earned float64 `json:"earned"`
	Note   string  `json:"note,omitempty"`
}

// GatePrediction is a non-authoritative guess at a Gate 1 check outcome.
type GatePrediction struct {
	Check     string     `json:"check"`
	Predicted GateStatus `json:"predicted"`
	Reason    string     `json:"reason"`
}

// Readiness is the weighted readiness score of a manifest plus its coverage.
type Readiness struct {
	Score                 int                  `json:"score"`
	Verdict               Verdict              `json:"verdict"`
	Criteria              []ReadinessCriterion `json:"criteria"`
	CrossReferencePenalty int                  `json:"cross_reference_penalty"`
	GatePredictions       []GatePrediction     `json:"gate_predictions"`
}
