package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Dashboard panel indices.
const (
	panelCoverage = iota
	panelReadiness
	panelAlerts
	panelCount
)

type dashboardModel struct {
	exportDir   string
	activePanel int
	width       int
	height      int

	// Data.
	snapshot *exportSnapshot
	alerts   []alertSnapshot

	// State.
	loading bool
	err     error
}

type typeCoverage struct {
	artifactType string
	required     int
	existing     int
	percent      float64
}

type exportSnapshot struct {
	project     string
	exportID    string
	overall     models.CoverageCounts
	byType      []typeCoverage
	readiness   models.Readiness
	provenance  bool
	decodeFails int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	snapshot *exportSnapshot
	alerts   []alertSnapshot
	err      error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel(exportDir string) dashboardModel {
	return dashboardModel{
		exportDir:   exportDir,
		activePanel: panelCoverage,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.load
}

func (m dashboardModel) load() tea.Msg {
	return loadData(m.exportDir)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, m.load
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.snapshot = msg.snapshot
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" contextcore " + m.exportDir + " ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	coveragePanel := m.renderCoveragePanel()
	readinessPanel := m.renderReadinessPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		coveragePanel = m.applyPanelStyle(panelCoverage, coveragePanel, colWidth-4)
		readinessPanel = m.applyPanelStyle(panelReadiness, readinessPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, coveragePanel, readinessPanel, alertsPanel)
	} else {
		panelWidth := max(availableWidth-4, 20)
		coveragePanel = m.applyPanelStyle(panelCoverage, coveragePanel, panelWidth)
		readinessPanel = m.applyPanelStyle(panelReadiness, readinessPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, coveragePanel, readinessPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderCoveragePanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Coverage"))
	b.WriteString("\n")

	s := m.snapshot
	if s == nil {
		b.WriteString("  No export loaded.")
		return b.String()
	}

	fmt.Fprintf(&b, "  %s %s\n\n", s.project, helpStyle.Render(s.exportID))
	for _, tc := range s.byType {
		style := passStyle
		if tc.existing < tc.required {
			style = warnStyle
		}
		fmt.Fprintf(&b, "  %s\n", style.Render(fmt.Sprintf("%-22s %d/%d %5.1f%%", tc.artifactType, tc.existing, tc.required, tc.percent)))
	}
	fmt.Fprintf(&b, "\n  Total: %.1f%% (%d gaps, %d waived)", s.overall.Percent, len(s.overall.Gaps), s.overall.Waived)

	return b.String()
}

func (m dashboardModel) renderReadinessPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Readiness"))
	b.WriteString("\n")

	s := m.snapshot
	if s == nil {
		b.WriteString("  No readiness data.")
		return b.String()
	}

	r := s.readiness
	fmt.Fprintf(&b, "  %d/100 %s\n\n", r.Score, styleForVerdict(r.Verdict).Render(string(r.Verdict)))
	for _, c := range r.Criteria {
		fmt.Fprintf(&b, "  %-18s %5.1f/%d\n", c.Name, c.Earned, c.Weight)
	}
	if len(r.GatePredictions) > 0 {
		b.WriteString("\n  Gate 1 predictions:\n")
		for _, p := range r.GatePredictions {
			fmt.Fprintf(&b, "  %-24s %s\n", p.Check, styleForGate(p.Predicted).Render(string(p.Predicted)))
		}
	}
	if !s.provenance {
		b.WriteString("\n  " + warnStyle.Render("no provenance.json"))
	}
	if s.decodeFails > 0 {
		b.WriteString("\n  " + failStyle.Render(fmt.Sprintf("%d unreadable file(s)", s.decodeFails)))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		fmt.Fprintf(&b, "  %s %s\n", sev, a.message)
	}

	fmt.Fprintf(&b, "\n  Total: %d alert(s)", len(m.alerts))

	return b.String()
}

// styleForSeverity reuses the gate palette: high alerts read as failures,
// medium as warnings.
func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return failStyle
	case "medium":
		return warnStyle
	case "low":
		return skippedStyle
	default:
		return lipgloss.NewStyle()
	}
}

func loadData(exportDir string) tea.Msg {
	var result dataLoadedMsg

	if Bundles == nil {
		result.err = fmt.Errorf("export reader not initialized")
		return result
	}
	bundle, err := Bundles.Read(exportDir)
	if err != nil {
		result.err = fmt.Errorf("loading export: %w", err)
		return result
	}
	result.snapshot = snapshotFromBundle(bundle)

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// Sort alerts by severity: high first, then medium, then low.
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

// snapshotFromBundle extracts what the panels show. Missing documents leave
// their part of the snapshot empty.
func snapshotFromBundle(b *models.ExportBundle) *exportSnapshot {
	s := &exportSnapshot{
		provenance:  b.Has(models.FileProvenance),
		decodeFails: len(b.DecodeErrors),
	}
	if b.Coverage != nil {
		s.project = b.Coverage.Project
		s.overall = b.Coverage.Overall
		for typ, c := range b.Coverage.ByType {
			s.byType = append(s.byType, typeCoverage{
				artifactType: string(typ),
				required:     c.Required,
				existing:     c.Existing,
				percent:      c.Percent,
			})
		}
		sort.Slice(s.byType, func(i, j int) bool { return s.byType[i].artifactType < s.byType[j].artifactType })
	}
	if b.Onboarding != nil {
		s.exportID = b.Onboarding.ExportID
		s.readiness = b.Onboarding.Readiness
		if s.project == "" {
			s.project = b.Onboarding.Project
		}
	}
	return s
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <export-dir>",
	Short: "Interactive TUI dashboard for an export directory",
	Long: `Launch an interactive terminal dashboard showing the coverage, readiness
and active alerts of an export directory.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Bundles == nil {
			return fmt.Errorf("export reader not initialized")
		}
		p := tea.NewProgram(newDashboardModel(args[0]), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
