package core

import (
	"fmt"
	"math"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Readiness rubric weights; they sum to 100.
const (
	weightRequirements  = 20
	weightTargets       = 15
	weightObservability = 15
	weightObjectives    = 15
	weightGovernance    = 10
	weightRisks         = 10
	weightCoverage      = 15

	crossRefPenalty    = 5
	maxCrossRefPenalty = 20
)

// ReadinessInput is everything readiness scoring looks at.
type ReadinessInput struct {
	Manifest          *models.Manifest
	Validation        ValidationResult
	Requirements      []models.ArtifactRequirement
	Coverage          models.CoverageReport
	ProvenanceEnabled bool
	Git               models.GitInfo
}

func criterion(name string, weight int, fraction float64, note string) models.ReadinessCriterion {
	fraction = math.Max(0, math.Min(1, fraction))
	return models.ReadinessCriterion{
		Name:   name,
		Weight: weight,
		Earned: math.Round(float64(weight)*fraction*100) / 100,
		Note:   note,
	}
}

// AssessReadiness scores how complete a manifest and its coverage are for
// downstream consumption and predicts each Gate 1 check.
func AssessReadiness(in ReadinessInput) models.Readiness {
	m := in.Manifest
	var criteria []models.ReadinessCriterion

	r := m.Spec.Requirements
	declared := 0
	for _, v := range []string{r.Availability, r.LatencyP50, r.LatencyP99, r.Throughput, r.ErrorBudget} {
		if v != "" {
			declared++
		}
	}
	criteria = append(criteria, criterion("requirements", weightRequirements, float64(declared)/5,
		fmt.Sprintf("%d of 5 requirement fields declared", declared)))

	targetFraction := 0.0
	if n := len(m.Spec.Targets); n > 0 {
		namespaced := 0
		for _, t := range m.Spec.Targets {
			if t.Namespace != "" {
				namespaced++
			}
		}
		targetFraction = 0.5 + 0.5*float64(namespaced)/float64(n)
	}
	criteria = append(criteria, criterion("targets", weightTargets, targetFraction,
		fmt.Sprintf("%d targets", len(m.Spec.Targets))))

	o := m.Spec.Observability
	obsFraction := 0.0
	if len(o.AlertChannels) > 0 {
		obsFraction += 0.5
	}
	rest := o
	rest.AlertChannels = nil
	if !rest.IsEmpty() {
		obsFraction += 0.5
	}
	criteria = append(criteria, criterion("observability", weightObservability, obsFraction, ""))

	objFraction := 0.0
	if n := len(m.Strategy.Objectives); n > 0 {
		measured := 0
		for _, obj := range m.Strategy.Objectives {
			if len(obj.KeyResults) > 0 {
				measured++
			}
		}
		objFraction = 0.5 + 0.5*float64(measured)/float64(n)
	}
	criteria = append(criteria, criterion("objectives", weightObjectives, objFraction,
		fmt.Sprintf("%d objectives, %d tactics", len(m.Strategy.Objectives), len(m.Strategy.Tactics))))

	govFraction := 0.0
	if !m.Guidance.IsEmpty() {
		if len(m.Guidance.Constraints) > 0 {
			govFraction += 0.5
		}
		if len(m.Guidance.Focus.Areas) > 0 {
			govFraction += 0.25
		}
		if openQuestions(m) == 0 {
			govFraction += 0.25
		}
	}
	criteria = append(criteria, criterion("governance", weightGovernance, govFraction,
		fmt.Sprintf("%d open questions", openQuestions(m))))

	riskFraction := 0.0
	if n := len(m.Spec.Risks); n > 0 {
		mitigated := 0
		for _, rk := range m.Spec.Risks {
			if rk.Mitigation != "" {
				mitigated++
			}
		}
		riskFraction = 0.5 + 0.5*float64(mitigated)/float64(n)
	}
	criteria = append(criteria, criterion("risks", weightRisks, riskFraction,
		fmt.Sprintf("%d risks declared", len(m.Spec.Risks))))

	criteria = append(criteria, criterion("coverage", weightCoverage, in.Coverage.Overall.Percent/100,
		fmt.Sprintf("%.1f%% covered", in.Coverage.Overall.Percent)))

	total := 0.0
	for _, c := range criteria {
		total += c.Earned
	}
	penalty := min(crossRefPenalty*len(in.Validation.CrossReferenceErrors()), maxCrossRefPenalty)
	score := int(math.Round(total)) - penalty
	score = max(0, min(100, score))

	return models.Readiness{
		Score:                 score,
		Verdict:               models.VerdictForScore(score),
		Criteria:              criteria,
		CrossReferencePenalty: penalty,
		GatePredictions:       predictGate1(in),
	}
}

func openQuestions(m *models.Manifest) int {
	n := 0
	for _, q := range m.Guidance.Questions {
		if q.Status == models.QuestionOpen {
			n++
		}
	}
	return n
}

// predictGate1 guesses each Gate 1 outcome from what the exporter knows.
// Predictions are advisory; Gate 1 decides.
func predictGate1(in ReadinessInput) []models.GatePrediction {
	preds := []models.GatePrediction{
		{Check: models.CheckStructuralIntegrity, Predicted: models.GatePass, Reason: "all documents are rendered by the exporter"},
	}

	if in.ProvenanceEnabled {
		preds = append(preds, models.GatePrediction{Check: models.CheckChecksumChain, Predicted: models.GatePass, Reason: "checksum chain recorded"})
	} else {
		preds = append(preds, models.GatePrediction{Check: models.CheckChecksumChain, Predicted: models.GateWarning, Reason: "provenance emission disabled"})
	}

	switch {
	case !in.ProvenanceEnabled:
		preds = append(preds, models.GatePrediction{Check: models.CheckProvenanceConsistency, Predicted: models.GateWarning, Reason: "no provenance to check"})
	case in.Git.Commit == "":
		preds = append(preds, models.GatePrediction{Check: models.CheckProvenanceConsistency, Predicted: models.GateWarning, Reason: "no git commit supplied"})
	default:
		preds = append(preds, models.GatePrediction{Check: models.CheckProvenanceConsistency, Predicted: models.GatePass, Reason: "git metadata supplied"})
	}

	mapped := make(map[string]bool)
	for _, r := range in.Requirements {
		if r.Required {
			mapped[r.Target] = true
		}
	}
	mapping := models.GatePrediction{Check: models.CheckMappingCompleteness, Predicted: models.GatePass, Reason: "every target has required artifacts"}
	for _, t := range in.Manifest.Spec.Targets {
		if !mapped[t.Name] {
			mapping = models.GatePrediction{Check: models.CheckMappingCompleteness, Predicted: models.GateFail, Reason: fmt.Sprintf("target %q has no required artifacts", t.Name)}
			break
		}
	}
	preds = append(preds, mapping,
		models.GatePrediction{Check: models.CheckGapParity, Predicted: models.GatePass, Reason: "gap counts derive from one coverage report"})

	calibration := models.GatePrediction{Check: models.CheckDesignCalibration, Predicted: models.GatePass, Reason: "all tiers match expected depth"}
	for _, r := range in.Requirements {
		if r.Required && r.Tier != ExpectedDepth(r.Type) {
			calibration = models.GatePrediction{Check: models.CheckDesignCalibration, Predicted: models.GateWarning,
				Reason: fmt.Sprintf("%s is %s, expected %s", r.ID, r.Tier, ExpectedDepth(r.Type))}
			break
		}
	}
	return append(preds, calibration)
}
