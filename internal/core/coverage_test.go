package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// --- ScoreCoverage ---

func TestScoreCoverage_NothingExists(t *testing.T) {
	m := mustParse(t, checkoutManifest)
	report := ScoreCoverage(GenerateRequirements(m), nil)

	if report.Overall.Required != 6 {
		t.Errorf("Required = %d, want 6", report.Overall.Required)
	}
	if report.Overall.Percent != 0 {
		t.Errorf("Percent = %v, want 0", report.Overall.Percent)
	}
	if report.GapCount() != 6 {
		t.Errorf("GapCount() = %d, want 6", report.GapCount())
	}
	if report.Overall.Gaps[0] != "checkout-api-dashboard" {
		t.Errorf("gaps not in requirement order: %v", report.Overall.Gaps)
	}
}

func TestScoreCoverage_FullCoverage(t *testing.T) {
	m := mustParse(t, checkoutManifest)
	report := ScoreCoverage(GenerateRequirements(m), existingFor("checkout-api", checkoutRequired...))

	if report.Overall.Percent != 100 {
		t.Errorf("Percent = %v, want 100", report.Overall.Percent)
	}
	if report.GapCount() != 0 {
		t.Errorf("gaps = %v, want none", report.Overall.Gaps)
	}
	if len(report.Existing) != 6 {
		t.Errorf("Existing has %d entries, want 6", len(report.Existing))
	}
}

func TestScoreCoverage_PartialAndRounding(t *testing.T) {
	m := mustParse(t, checkoutManifest)
	existing := existingFor("checkout-api", models.ArtifactDashboard, models.ArtifactSLO)
	existing["unrelated-thing"] = "x.yaml"

	report := ScoreCoverage(GenerateRequirements(m), existing)

	if report.Overall.Existing != 2 {
		t.Errorf("Existing = %d, want 2", report.Overall.Existing)
	}
	if report.Overall.Percent != 33.3 {
		t.Errorf("Percent = %v, want 33.3", report.Overall.Percent)
	}
	if _, ok := report.Existing["unrelated-thing"]; ok {
		t.Error("existing entries that match no requirement must be ignored")
	}
	dash := report.ByType[models.ArtifactDashboard]
	if dash.Percent != 100 || dash.Required != 1 {
		t.Errorf("dashboard counts = %+v", dash)
	}
}

func TestScoreCoverage_WaivedIsNeitherGapNorCovered(t *testing.T) {
	m := mustParse(t, checkoutManifest)
	m.Spec.Observability.Waivers = []models.Waiver{
		{Target: "checkout-api", Type: models.ArtifactRunbook, Reason: "platform runbook"},
	}
	existing := existingFor("checkout-api", models.ArtifactDashboard)

	report := ScoreCoverage(GenerateRequirements(m), existing)

	want := models.CoverageCounts{
		Required: 5,
		Existing: 1,
		Waived:   1,
		Percent:  20,
		Gaps: []string{
			"checkout-api-alert-rule",
			"checkout-api-slo",
			"checkout-api-service-monitor",
			"checkout-api-log-recording-rule",
		},
	}
	if diff := cmp.Diff(want, report.Overall); diff != "" {
		t.Errorf("overall mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreCoverage_NothingRequired(t *testing.T) {
	report := ScoreCoverage(nil, nil)
	if report.Overall.Percent != 100 {
		t.Errorf("Percent = %v, want 100 when nothing is counted", report.Overall.Percent)
	}
	if report.Overall.Gaps == nil {
		t.Error("Gaps must be an empty list, not nil, so it encodes as []")
	}
}

// --- CheckCoverageThreshold ---

func TestCheckCoverageThreshold(t *testing.T) {
	report := models.CoverageReport{Overall: models.CoverageCounts{Percent: 50, Gaps: []string{"a", "b"}}}

	tests := []struct {
		name    string
		min     float64
		wantErr bool
	}{
		{"disabled", 0, false},
		{"met exactly", 50, false},
		{"below", 80, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCoverageThreshold("checkout", report, tt.min)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var below *CoverageBelowThresholdError
			if tt.wantErr && (!errors.As(err, &below) || len(below.Gaps) != 2 || below.Threshold != tt.min) {
				t.Errorf("err = %#v, want *CoverageBelowThresholdError with gaps", err)
			}
		})
	}
}

// --- IndexExisting / MergeExisting ---

func TestIndexExisting(t *testing.T) {
	m := mustParse(t, checkoutManifest)
	reqs := GenerateRequirements(m)

	files := []string{
		"dashboards/checkout-api-dashboard.grafana.json",
		"dashboards/copy/checkout-api-dashboard.json",
		"slo/checkout-api-slo.yaml",
		"runbooks/checkout-api-runbook",
		"misc/readme.md",
		"alerts/checkout-api-alert-rule.yaml.bak",
	}
	got := IndexExisting(reqs, files)

	want := map[string]string{
		"checkout-api-dashboard":  "dashboards/checkout-api-dashboard.grafana.json",
		"checkout-api-slo":        "slo/checkout-api-slo.yaml",
		"checkout-api-runbook":    "runbooks/checkout-api-runbook",
		"checkout-api-alert-rule": "alerts/checkout-api-alert-rule.yaml.bak",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("IndexExisting mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeExisting_EarlierWins(t *testing.T) {
	got := MergeExisting(
		map[string]string{"a": "map/a"},
		nil,
		map[string]string{"a": "scan/a", "b": "scan/b"},
	)
	want := map[string]string{"a": "map/a", "b": "scan/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeExisting mismatch (-want +got):\n%s", diff)
	}
}
