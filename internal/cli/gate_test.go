package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// --- planCmd ---

func TestPlanCmd_Table(t *testing.T) {
	events := withPipeline(t)

	out, err := run(t, planCmd, writeManifest(t, checkoutManifest))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, want := range []string{"Project checkout (critical)", "checkout-api-dashboard", "gap", "Readiness:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(events.types) != 0 {
		t.Errorf("plan must not record export events, got %v", events.types)
	}
}

func TestPlanCmd_JSON(t *testing.T) {
	withPipeline(t)
	setFlag(t, planCmd, "json", "true")
	setFlag(t, planCmd, "min-coverage", "50")

	out, err := run(t, planCmd, writeManifest(t, checkoutManifest))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var report planReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding plan JSON: %v\n%s", err, out)
	}
	if report.Project != "checkout" || report.MeetsThreshold || report.MinCoverage != 50 {
		t.Errorf("report = %+v", report)
	}
	if report.Coverage.GapCount() != report.Coverage.Overall.Required {
		t.Errorf("gaps = %d, required = %d", report.Coverage.GapCount(), report.Coverage.Overall.Required)
	}
}

func TestPlanCmd_CrossReferenceErrorsAreWarnings(t *testing.T) {
	withPipeline(t)

	out, err := run(t, planCmd, writeManifest(t, blockedManifest))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "warning:") || !strings.Contains(out, "tac-cache") {
		t.Errorf("cross-reference error not surfaced:\n%s", out)
	}
}

// --- gate1Cmd ---

func TestGate1Cmd_FreshExportPasses(t *testing.T) {
	withPipeline(t)
	dir := exportCheckout(t)

	out, err := run(t, gate1Cmd, dir)
	if err != nil {
		t.Fatalf("gate1: %v\n%s", err, out)
	}
	for _, id := range models.Gate1Checks {
		if !strings.Contains(out, id) {
			t.Errorf("output missing check %s", id)
		}
	}
}

func TestGate1Cmd_TamperedExportFails(t *testing.T) {
	withPipeline(t)
	dir := exportCheckout(t)

	path := filepath.Join(dir, models.FileCoverageReport)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(data, ' '), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = run(t, gate1Cmd, dir)
	if !errors.Is(err, core.ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
	if ExitCode(err) != ExitFail {
		t.Errorf("exit code = %d, want %d", ExitCode(err), ExitFail)
	}
}

func TestGate1Cmd_JSONAndOutputFile(t *testing.T) {
	withPipeline(t)
	dir := exportCheckout(t)
	reportPath := filepath.Join(t.TempDir(), "gate1.json")
	setFlag(t, gate1Cmd, "json", "true")
	setFlag(t, gate1Cmd, "output", reportPath)

	out, err := run(t, gate1Cmd, dir)
	if err != nil {
		t.Fatalf("gate1: %v", err)
	}
	saved, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	if out != string(saved) {
		t.Error("stdout and --output reports differ")
	}
	var report models.Gate1Report
	if err := json.Unmarshal(saved, &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != len(models.Gate1Checks) {
		t.Errorf("got %d results, want %d", len(report.Results), len(models.Gate1Checks))
	}
}

func TestGate1Cmd_RequireProvenance(t *testing.T) {
	withPipeline(t)
	outDir := filepath.Join(t.TempDir(), "export")
	setFlag(t, exportCmd, "out", outDir)
	setFlag(t, exportCmd, "no-provenance", "true")
	if _, err := run(t, exportCmd, writeManifest(t, checkoutManifest)); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, gate1Cmd, outDir); err != nil {
		t.Fatalf("missing provenance should only warn: %v", err)
	}

	setFlag(t, gate1Cmd, "require-provenance", "true")
	_, err := run(t, gate1Cmd, outDir)
	if !errors.Is(err, core.ErrProvenanceMissing) {
		t.Fatalf("err = %v, want ErrProvenanceMissing", err)
	}
}

// --- gate2Cmd ---

func TestGate2Cmd_AbsentInputs(t *testing.T) {
	withPipeline(t)
	dir := exportCheckout(t)

	out, err := run(t, gate2Cmd, dir)
	if err != nil {
		t.Fatalf("lenient gate2: %v", err)
	}
	if !strings.Contains(out, string(models.AnswerNotEvaluated)) || !strings.Contains(out, "HEALTHY") {
		t.Errorf("output:\n%s", out)
	}

	setFlag(t, gate2Cmd, "fail-on-issue", "true")
	if _, err := run(t, gate2Cmd, dir); ExitCode(err) != ExitFail {
		t.Fatalf("strict gate2: err = %v, want a failure", err)
	}
}

func TestGate2Cmd_ShortCircuitsOnTranslationGap(t *testing.T) {
	events := withPipeline(t)
	dir := exportCheckout(t)

	ingestion := t.TempDir()
	content := `{"features":[{"id":"checkout-api-dashboard","target":"checkout-api","type":"dashboard"}]}`
	if err := os.WriteFile(filepath.Join(ingestion, models.FileIngestionResult), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	setFlag(t, gate2Cmd, "ingestion-dir", ingestion)
	setFlag(t, gate2Cmd, "json", "true")

	out, err := run(t, gate2Cmd, dir)
	if ExitCode(err) != ExitFail {
		t.Fatalf("err = %v, want a gate failure", err)
	}
	var report models.Gate2Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding: %v\n%s", err, out)
	}
	if report.Healthy || report.Questions[1].Answer != models.AnswerNo || report.Questions[2].Answer != models.AnswerNotEvaluated {
		t.Errorf("report = %+v", report)
	}

	last := events.data[len(events.data)-1]
	if events.types[len(events.types)-1] != core.EventGate2Completed || last["short_circuited"] != true {
		t.Errorf("last event = %s %v", events.types[len(events.types)-1], last)
	}
}

func TestGateCmds_NotInitialized(t *testing.T) {
	withPipeline(t)
	Gate1, Gate2 = nil, nil

	if _, err := run(t, gate1Cmd, "x"); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("gate1: err = %v", err)
	}
	if _, err := run(t, gate2Cmd, "x"); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("gate2: err = %v", err)
	}
}
