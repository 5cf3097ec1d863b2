package storage

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

func newGateInputs() GateInputReader {
	return NewGateInputReader(NewArtifactScanner(ScanOptions{}))
}

// --- ReadIngestion ---

func TestReadIngestion(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, models.FileIngestionResult,
		`{"features":[{"id":"F-1","target":"api","type":"slo"}],"plan":{"task_count":3}}`)

	res, err := newGateInputs().ReadIngestion(t.Context(), dir)
	if err != nil {
		t.Fatalf("ReadIngestion: %v", err)
	}
	if len(res.Features) != 1 || res.Features[0].Type != models.ArtifactSLO {
		t.Errorf("Features = %+v", res.Features)
	}
	if res.Plan.TaskCount == nil || *res.Plan.TaskCount != 3 {
		t.Errorf("Plan.TaskCount = %v, want 3", res.Plan.TaskCount)
	}
}

func TestReadIngestion_Absent(t *testing.T) {
	r := newGateInputs()

	if _, err := r.ReadIngestion(t.Context(), ""); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("empty dir: err = %v, want fs.ErrNotExist", err)
	}
	if _, err := r.ReadIngestion(t.Context(), t.TempDir()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: err = %v, want fs.ErrNotExist", err)
	}
}

func TestReadIngestion_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, models.FileIngestionResult, "{not json")

	_, err := newGateInputs().ReadIngestion(t.Context(), dir)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, fs.ErrNotExist) {
		t.Error("a parse error must not look like an absent input")
	}
}

// --- ReadExecution ---

func TestReadExecution_PrefersExecutionResult(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, models.FileExecutionResult, `{"units":[{"id":"u1"},{"id":"u2"}]}`)
	writeTestFile(t, dir, "a.yaml", "x")
	writeTestFile(t, dir, "b.yaml", "x")
	writeTestFile(t, dir, "c.yaml", "x")

	sum, err := newGateInputs().ReadExecution(t.Context(), dir)
	if err != nil {
		t.Fatalf("ReadExecution: %v", err)
	}
	if sum.Units != 2 || sum.Source != models.FileExecutionResult {
		t.Errorf("summary = %+v, want 2 units from %s", sum, models.FileExecutionResult)
	}
}

func TestReadExecution_CountsFilesIgnoringDotFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "dashboards/api.json", "{}")
	writeTestFile(t, dir, "alerts.yaml", "x")
	writeTestFile(t, dir, ".manifest", "x")
	writeTestFile(t, dir, ".cache/blob", "x")

	sum, err := newGateInputs().ReadExecution(t.Context(), dir)
	if err != nil {
		t.Fatalf("ReadExecution: %v", err)
	}
	if sum.Units != 2 || sum.Source != "file count" {
		t.Errorf("summary = %+v, want 2 units from file count", sum)
	}
}

func TestReadExecution_Absent(t *testing.T) {
	r := newGateInputs()

	if _, err := r.ReadExecution(t.Context(), ""); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("empty dir: err = %v, want fs.ErrNotExist", err)
	}
	if _, err := r.ReadExecution(t.Context(), filepath.Join(t.TempDir(), "nope")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing dir: err = %v, want fs.ErrNotExist", err)
	}
}

func TestReadExecution_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, models.FileExecutionResult, "[")

	if _, err := newGateInputs().ReadExecution(t.Context(), dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestReadExecution_FileLimit(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		writeTestFile(t, dir, name, "x")
	}

	r := NewGateInputReader(NewArtifactScanner(ScanOptions{MaxFiles: 2}))
	_, err := r.ReadExecution(t.Context(), dir)
	if !errors.Is(err, ErrScanLimitExceeded) {
		t.Fatalf("err = %v, want ErrScanLimitExceeded", err)
	}
	if errors.Is(err, fs.ErrNotExist) {
		t.Error("a limit overrun must not read as missing output")
	}
}

func TestReadExecution_DepthLimit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "top.yaml", "x")
	writeTestFile(t, dir, "one/two/deep.yaml", "x")

	r := NewGateInputReader(NewArtifactScanner(ScanOptions{MaxDepth: 1}))
	sum, err := r.ReadExecution(t.Context(), dir)
	if err != nil {
		t.Fatalf("ReadExecution: %v", err)
	}
	if sum.Units != 1 {
		t.Errorf("Units = %d, want 1 with depth bounded", sum.Units)
	}
}

func TestReadExecution_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.yaml", "x")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := newGateInputs().ReadExecution(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
