package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Status styles shared by reports and the dashboard.
var (
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func styleForGate(s models.GateStatus) lipgloss.Style {
	switch s {
	case models.GatePass:
		return passStyle
	case models.GateWarning:
		return warnStyle
	case models.GateFail:
		return failStyle
	default:
		return lipgloss.NewStyle()
	}
}

func styleForAnswer(a models.Answer) lipgloss.Style {
	switch a {
	case models.AnswerYes:
		return passStyle
	case models.AnswerNo:
		return failStyle
	default:
		return skippedStyle
	}
}

func styleForVerdict(v models.Verdict) lipgloss.Style {
	switch v {
	case models.VerdictReady:
		return passStyle
	case models.VerdictNeedsEnrichment:
		return warnStyle
	default:
		return failStyle
	}
}

// newTable returns a light-styled table writer.
func newTable(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

// renderCoverage writes the per-type coverage table followed by the total.
func renderCoverage(w io.Writer, cov models.CoverageReport) {
	t := newTable("Type", "Required", "Existing", "Waived", "Coverage")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	types := make([]string, 0, len(cov.ByType))
	for typ := range cov.ByType {
		types = append(types, string(typ))
	}
	slices.Sort(types)
	for _, typ := range types {
		c := cov.ByType[models.ArtifactType(typ)]
		t.AppendRow(table.Row{typ, c.Required, c.Existing, c.Waived, fmt.Sprintf("%.1f%%", c.Percent)})
	}
	o := cov.Overall
	t.AppendFooter(table.Row{"total", o.Required, o.Existing, o.Waived, fmt.Sprintf("%.1f%%", o.Percent)})
	fmt.Fprintln(w, t.Render())
}

// renderRequirements writes one row per required artifact with its state.
func renderRequirements(w io.Writer, reqs []models.ArtifactRequirement, existing map[string]string) {
	t := newTable("Artifact", "Target", "Type", "Tier", "State")
	for _, r := range reqs {
		if !r.Required {
			continue
		}
		state := "gap"
		switch {
		case r.Waived:
			state = "waived"
		case existing[r.ID] != "":
			state = existing[r.ID]
		}
		t.AppendRow(table.Row{r.ID, r.Target, r.Type, r.Tier, state})
	}
	fmt.Fprintln(w, t.Render())
}

func renderReadiness(w io.Writer, r models.Readiness) {
	fmt.Fprintf(w, "Readiness: %d/100 %s\n", r.Score, styleForVerdict(r.Verdict).Render(string(r.Verdict)))
	if r.CrossReferencePenalty > 0 {
		fmt.Fprintf(w, "  cross-reference penalty: -%d\n", r.CrossReferencePenalty)
	}
}

func renderGate1(w io.Writer, report *models.Gate1Report) {
	t := newTable("Check", "Status", "Blocking", "Detail")
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 80}})
	for _, r := range report.Results {
		t.AppendRow(table.Row{r.CheckID, styleForGate(r.Status).Render(string(r.Status)), r.Blocking, r.Detail})
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "Gate 1: %s\n", styleForGate(report.Status).Render(strings.ToUpper(string(report.Status))))
}

func renderGate2(w io.Writer, report *models.Gate2Report) {
	t := newTable("Question", "Answer", "Evidence")
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	for _, q := range report.Questions {
		t.AppendRow(table.Row{q.Question, styleForAnswer(q.Answer).Render(string(q.Answer)), strings.Join(q.Evidence, "\n")})
	}
	fmt.Fprintln(w, t.Render())
	verdict := "HEALTHY"
	style := passStyle
	if !report.Healthy {
		verdict, style = "UNHEALTHY", failStyle
	}
	fmt.Fprintf(w, "Gate 2: %s\n", style.Render(verdict))
}

// writeReport prints v as JSON to w when asJSON is set and saves it to path
// when path is not empty.
func writeReport(w io.Writer, v any, asJSON bool, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting report as JSON: %w", err)
	}
	data = append(data, '\n')
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	if asJSON {
		_, err = w.Write(data)
	}
	return err
}
