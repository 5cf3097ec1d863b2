package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
)

var (
	gate1FailOnUnhealthy   bool
	gate1RequireProvenance bool
	gate1JSON              bool
	gate1Output            string

	gate2IngestionDir string
	gate2ExecutionDir string
	gate2FailOnIssue  bool
	gate2JSON         bool
	gate2Output       string
)

var gate1Cmd = &cobra.Command{
	Use:   "gate1 <export-dir>",
	Short: "Verify an export directory before ingestion",
	Long: `Run the six pre-ingestion checks on an export directory: structural
integrity, checksum chain, provenance consistency, mapping completeness,
gap parity and design calibration. Every check is reported even after a
blocking failure. Exits 1 when any check fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Gate1 == nil {
			return fmt.Errorf("gate 1 checker not initialized")
		}
		opts := core.Gate1Options{
			FailOnUnhealthy:   gate1FailOnUnhealthy,
			RequireProvenance: gate1RequireProvenance,
		}
		if Config != nil {
			opts.FailOnUnhealthy = opts.FailOnUnhealthy || Config.Gate1.FailOnUnhealthy
			opts.RequireProvenance = opts.RequireProvenance || Config.Gate1.RequireProvenance
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		report, err := Gate1.Check(ctx, args[0], opts)
		if err != nil {
			return err
		}
		if err := writeReport(cmd.OutOrStdout(), report, gate1JSON, gate1Output); err != nil {
			return err
		}
		if !gate1JSON {
			renderGate1(cmd.OutOrStdout(), report)
		}
		return core.Gate1Err(report)
	},
}

var gate2Cmd = &cobra.Command{
	Use:   "gate2 <export-dir>",
	Short: "Ask the three post-ingestion questions",
	Long: `Check what the downstream layers made of an export: is the contract
complete, was it faithfully translated (ingestion-result.json in
--ingestion-dir) and faithfully executed (--execution-dir)? A "no" answer
short-circuits the remaining questions. Missing inputs leave a question
not evaluated, which fails only with --fail-on-issue.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Gate2 == nil {
			return fmt.Errorf("gate 2 checker not initialized")
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		report, err := Gate2.Check(ctx, args[0], core.Gate2Options{
			IngestionDir: gate2IngestionDir,
			ExecutionDir: gate2ExecutionDir,
		})
		if err != nil {
			return err
		}
		if err := writeReport(cmd.OutOrStdout(), report, gate2JSON, gate2Output); err != nil {
			return err
		}
		if !gate2JSON {
			renderGate2(cmd.OutOrStdout(), report)
		}
		strict := gate2FailOnIssue || (Config != nil && Config.Gate2.FailOnIssue)
		return core.Gate2Err(report, strict)
	},
}

func init() {
	f1 := gate1Cmd.Flags()
	f1.BoolVar(&gate1FailOnUnhealthy, "fail-on-unhealthy", false, "Treat warnings as failures")
	f1.BoolVar(&gate1RequireProvenance, "require-provenance", false, "Fail when provenance.json is missing")
	f1.BoolVar(&gate1JSON, "json", false, "Output the report as JSON")
	f1.StringVarP(&gate1Output, "output", "o", "", "Also write the JSON report to this file")
	rootCmd.AddCommand(gate1Cmd)

	f2 := gate2Cmd.Flags()
	f2.StringVar(&gate2IngestionDir, "ingestion-dir", "", "Directory holding ingestion-result.json")
	f2.StringVar(&gate2ExecutionDir, "execution-dir", "", "Directory holding execution output")
	f2.BoolVar(&gate2FailOnIssue, "fail-on-issue", false, "Also fail on questions that could not be evaluated")
	f2.BoolVar(&gate2JSON, "json", false, "Output the report as JSON")
	f2.StringVarP(&gate2Output, "output", "o", "", "Also write the JSON report to this file")
	rootCmd.AddCommand(gate2Cmd)
}
