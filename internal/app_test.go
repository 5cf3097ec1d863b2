package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/contextcore/internal/cli"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/internal/observability"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

const appManifest = `apiVersion: contextcore.io/v1alpha2
kind: ProjectManifest
metadata:
  name: checkout
spec:
  project:
    id: checkout
  business:
    criticality: critical
    owner: payments-team
  targets:
    - kind: Deployment
      name: checkout-api
      namespace: payments
`

// restoreCLI puts the cli package variables back after NewApp rewires them.
func restoreCLI(t *testing.T) {
	t.Helper()
	cfg, exp, g1, g2, bundles, events := cli.Config, cli.Exporter, cli.Gate1, cli.Gate2, cli.Bundles, cli.Events
	el, ae, mc := cli.EventLog, cli.AlertEngine, cli.MetricsCalc
	t.Cleanup(func() {
		cli.Config, cli.Exporter, cli.Gate1, cli.Gate2, cli.Bundles, cli.Events = cfg, exp, g1, g2, bundles, events
		cli.EventLog, cli.AlertEngine, cli.MetricsCalc = el, ae, mc
	})
}

func newTestApp(t *testing.T, basePath string) *App {
	t.Helper()
	restoreCLI(t)
	app, err := NewApp(basePath, t.TempDir())
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// --- ResolveBasePath ---

func TestResolveBasePath_HomeEnvSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXTCORE_HOME", tmpDir)

	if got := ResolveBasePath(); got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FallsBackToUserHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CONTEXTCORE_HOME", "")
	t.Setenv("HOME", home)

	want := filepath.Join(home, ".contextcore")
	if got := ResolveBasePath(); got != want {
		t.Errorf("ResolveBasePath() = %q, want %q", got, want)
	}
}

// --- NewApp ---

func TestNewApp_Success(t *testing.T) {
	base := t.TempDir()
	app := newTestApp(t, base)

	if app.Config == nil || app.Exporter == nil || app.Gate1 == nil || app.Gate2 == nil {
		t.Fatal("NewApp() left core services unset")
	}
	if app.EventLog == nil || app.AlertEngine == nil || app.MetricsCalc == nil {
		t.Fatal("event log is on by default")
	}
	if _, err := os.Stat(filepath.Join(base, EventLogFile)); err != nil {
		t.Errorf("event log not created: %v", err)
	}
	if cli.Exporter != app.Exporter || cli.Config != app.Config || cli.Bundles == nil || cli.Events == nil {
		t.Error("cli package variables not wired")
	}
}

func TestNewApp_EventLogDisabled(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "config.yaml"), []byte("observability:\n  event_log: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t, base)

	if app.EventLog != nil || app.AlertEngine != nil || app.MetricsCalc != nil || cli.Events != nil {
		t.Error("observability should be off")
	}
	if app.Exporter == nil {
		t.Error("exporter must work without an event log")
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() without event log = %v", err)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	restoreCLI(t)
	base := t.TempDir()
	content := "export:\n  min_coverage: 150\nlog:\n  format: xml\n"
	if err := os.WriteFile(filepath.Join(base, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewApp(base, t.TempDir())
	if err == nil {
		t.Fatal("expected config validation error")
	}
	for _, want := range []string{"export.min_coverage", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestNewApp_ProjectConfigFromWorkDir(t *testing.T) {
	restoreCLI(t)
	work := t.TempDir()
	if err := os.WriteFile(filepath.Join(work, ".contextcore.yaml"), []byte("validate:\n  strict: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(t.TempDir(), work)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()
	if !app.Config.Validate.Strict {
		t.Error("project config in the working directory was not applied")
	}
}

// TestNewApp_ExportRecordsEvents runs an export through the wired services
// and reads the result back through the observability layer.
func TestNewApp_ExportRecordsEvents(t *testing.T) {
	base := t.TempDir()
	app := newTestApp(t, base)

	outDir := filepath.Join(t.TempDir(), "export")
	res, err := app.Exporter.Export(t.Context(), core.ExportRequest{
		Source:         []byte(appManifest),
		OutDir:         outDir,
		EmitProvenance: true,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.ExportID == "" {
		t.Error("export id is empty")
	}

	report, err := app.Gate1.Check(t.Context(), outDir, core.Gate1Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Status == models.GateFail {
		t.Errorf("gate1 on a fresh export = %+v", report)
	}

	events, err := app.EventLog.Read(observability.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	if got := strings.Join(types, ","); got != core.EventExportCompleted+","+core.EventGate1Completed {
		t.Errorf("event types = %s", got)
	}

	m, err := app.MetricsCalc.Calculate(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if m.Exports != 1 || m.Gate1Runs != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestEventLogAdapter_Levels(t *testing.T) {
	log, err := observability.NewJSONLEventLog(filepath.Join(t.TempDir(), EventLogFile))
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	adapter := &eventLogAdapter{log: log}

	if err := adapter.LogEvent(core.EventExportFailed, map[string]any{"project": "checkout"}); err != nil {
		t.Fatal(err)
	}
	if err := adapter.LogEvent(core.EventValidateCompleted, nil); err != nil {
		t.Fatal(err)
	}

	events, err := log.Read(observability.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Level != "WARN" || events[1].Level != "INFO" {
		t.Errorf("levels = %s, %s", events[0].Level, events[1].Level)
	}
	if events[0].Project() != "checkout" {
		t.Errorf("Project() = %q", events[0].Project())
	}
}
