package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/contextcore/internal/observability"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

func TestDashboardModel_Init(t *testing.T) {
	m := newDashboardModel("out/checkout")

	if m.activePanel != panelCoverage {
		t.Errorf("expected activePanel = %d, got %d", panelCoverage, m.activePanel)
	}
	if !m.loading {
		t.Error("expected loading = true on init")
	}
	if m.Init() == nil {
		t.Error("expected Init to return a non-nil command")
	}
}

func TestDashboardModel_PanelNavigation(t *testing.T) {
	m := newDashboardModel("out")

	tests := []struct {
		key  string
		want int
	}{
		{"tab", panelReadiness},
		{"tab", panelAlerts},
		{"tab", panelCoverage},
		{"shift+tab", panelAlerts},
	}
	for _, tt := range tests {
		var msg tea.KeyMsg
		if tt.key == "tab" {
			msg = tea.KeyMsg{Type: tea.KeyTab}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyShiftTab}
		}
		updated, _ := m.Update(msg)
		m = updated.(dashboardModel)
		if m.activePanel != tt.want {
			t.Fatalf("after %s: activePanel = %d, want %d", tt.key, m.activePanel, tt.want)
		}
	}
}

func TestDashboardModel_QuitAndRefresh(t *testing.T) {
	m := newDashboardModel("out")
	m.loading = false

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Error("q should return the quit command")
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil || !updated.(dashboardModel).loading {
		t.Error("r should start a reload")
	}
}

func TestDashboardModel_DataLoaded(t *testing.T) {
	m := newDashboardModel("out")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(dashboardModel)

	snap := &exportSnapshot{
		project:  "checkout",
		exportID: "4b1f",
		overall:  models.CoverageCounts{Required: 2, Existing: 1, Percent: 50, Gaps: []string{"checkout-api-slo"}},
		byType: []typeCoverage{
			{artifactType: "dashboard", required: 1, existing: 1, percent: 100},
			{artifactType: "slo", required: 1, existing: 0, percent: 0},
		},
		readiness: models.Readiness{
			Score:   62,
			Verdict: models.VerdictNeedsEnrichment,
			GatePredictions: []models.GatePrediction{
				{Check: models.CheckGapParity, Predicted: models.GatePass},
			},
		},
		provenance: true,
	}
	updated, _ = m.Update(dataLoadedMsg{
		snapshot: snap,
		alerts:   []alertSnapshot{{severity: "high", message: "export out was modified"}},
	})
	m = updated.(dashboardModel)

	view := m.View()
	for _, want := range []string{"checkout", "50.0%", "62/100", "needs_enrichment", "gap-parity", "[HIGH]", "export out was modified"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDashboardModel_ErrorView(t *testing.T) {
	m := newDashboardModel("out")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	updated, _ = updated.Update(dataLoadedMsg{err: errors.New("boom")})

	if view := updated.View(); !strings.Contains(view, "Error: boom") {
		t.Errorf("view = %q", view)
	}
}

func TestDashboardModel_ViewBeforeResize(t *testing.T) {
	if got := newDashboardModel("out").View(); got != "Loading..." {
		t.Errorf("View() = %q", got)
	}
}

// --- loadData ---

type mockDashboardAlerts struct {
	alerts []observability.Alert
	err    error
}

func (m *mockDashboardAlerts) Evaluate() ([]observability.Alert, error) {
	return m.alerts, m.err
}

func TestLoadData_FromExport(t *testing.T) {
	withPipeline(t)
	dir := exportCheckout(t)
	withAlerts(t, &mockDashboardAlerts{alerts: []observability.Alert{
		{Severity: observability.SeverityLow, Message: "low", TriggeredAt: time.Now()},
		{Severity: observability.SeverityHigh, Message: "high", TriggeredAt: time.Now()},
	}})

	msg := loadData(dir).(dataLoadedMsg)
	if msg.err != nil {
		t.Fatalf("loadData: %v", msg.err)
	}
	s := msg.snapshot
	if s.project != "checkout" || s.exportID == "" || !s.provenance || s.decodeFails != 0 {
		t.Errorf("snapshot = %+v", s)
	}
	if len(s.byType) == 0 || s.overall.Required == 0 {
		t.Errorf("coverage missing from snapshot: %+v", s)
	}
	for i := 1; i < len(s.byType); i++ {
		if s.byType[i-1].artifactType > s.byType[i].artifactType {
			t.Errorf("types not sorted: %v", s.byType)
		}
	}
	if len(msg.alerts) != 2 || msg.alerts[0].severity != "high" {
		t.Errorf("alerts = %+v, want high first", msg.alerts)
	}
}

func TestLoadData_Errors(t *testing.T) {
	withPipeline(t)
	withAlerts(t, nil)

	if msg := loadData(filepath.Join(t.TempDir(), "missing")).(dataLoadedMsg); msg.err == nil {
		t.Error("expected error for a missing export directory")
	}

	dir := exportCheckout(t)
	withAlerts(t, &mockDashboardAlerts{err: errors.New("log unreadable")})
	if msg := loadData(dir).(dataLoadedMsg); msg.err == nil || !strings.Contains(msg.err.Error(), "loading alerts") {
		t.Errorf("err = %v", msg.err)
	}

	Bundles = nil
	if msg := loadData(dir).(dataLoadedMsg); msg.err == nil {
		t.Error("expected error without an export reader")
	}
}

func TestSnapshotFromBundle_PartialExport(t *testing.T) {
	b := &models.ExportBundle{
		Raw:          map[string][]byte{models.FileSourceManifest: []byte("x")},
		DecodeErrors: map[string]error{models.FileCoverageReport: errors.New("bad json")},
	}
	s := snapshotFromBundle(b)
	if s.provenance || s.decodeFails != 1 || s.project != "" {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestStyleForSeverity(t *testing.T) {
	for _, sev := range []string{"high", "HIGH", "medium", "low", "other"} {
		if got := styleForSeverity(sev).Render("x"); !strings.Contains(got, "x") {
			t.Errorf("styleForSeverity(%q) lost the text: %q", sev, got)
		}
	}
	if severityRank("high") >= severityRank("medium") || severityRank("low") >= severityRank("unknown") {
		t.Error("severity ranks out of order")
	}
}
