package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

var planJSON bool

// planReport is the JSON form of a plan.
type planReport struct {
	Project        string                       `json:"project"`
	Criticality    models.Criticality           `json:"criticality"`
	Observability  models.ObservabilityConfig   `json:"observability"`
	Requirements   []models.ArtifactRequirement `json:"requirements"`
	Coverage       models.CoverageReport        `json:"coverage"`
	Readiness      models.Readiness             `json:"readiness"`
	MinCoverage    float64                      `json:"min_coverage"`
	MeetsThreshold bool                         `json:"meets_threshold"`
	Warnings       []string                     `json:"warnings"`
}

var planCmd = &cobra.Command{
	Use:   "plan <manifest>",
	Short: "Show required artifacts and coverage without writing anything",
	Long: `Derive the observability configuration and artifact requirements for a
manifest and score them against existing artifacts. Nothing is written; use
export to produce the export directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Exporter == nil {
			return fmt.Errorf("exporter not initialized")
		}
		req, err := manifestRequest(cmd, args[0])
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		plan, err := Exporter.Plan(ctx, req)
		if err != nil {
			return err
		}

		name := plan.Manifest.Metadata.Name
		report := planReport{
			Project:        name,
			Criticality:    plan.Manifest.Spec.Business.Criticality,
			Observability:  plan.Observability,
			Requirements:   plan.Requirements,
			Coverage:       plan.Coverage,
			Readiness:      plan.Readiness,
			MinCoverage:    req.MinCoverage,
			MeetsThreshold: core.CheckCoverageThreshold(name, plan.Coverage, req.MinCoverage) == nil,
			Warnings:       append([]string{}, plan.Validation.Warnings...),
		}
		for _, xref := range plan.Validation.CrossReferenceErrors() {
			report.Warnings = append(report.Warnings, xref.Error())
		}

		out := cmd.OutOrStdout()
		if planJSON {
			return writeReport(out, report, true, "")
		}

		fmt.Fprintf(out, "Project %s (%s)\n\n", name, report.Criticality)
		renderRequirements(out, plan.Requirements, plan.Coverage.Existing)
		renderCoverage(out, plan.Coverage)
		renderReadiness(out, plan.Readiness)
		if !report.MeetsThreshold {
			fmt.Fprintf(out, "%s coverage %.1f%% is below the required %.1f%%\n",
				failStyle.Render("export would be refused:"), plan.Coverage.Overall.Percent, req.MinCoverage)
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "%s %s\n", warnStyle.Render("warning:"), w)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Output the plan as JSON")
	addExistingFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}
