package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

var (
	exportOut          string
	exportNoProvenance bool
	exportMinCoverage  float64
	exportExistingDir  string
	exportExistingMap  string
	exportGitCommit    string
	exportGitBranch    string
	exportGitTimestamp string
	exportGeneratedAt  string
	exportStrict       bool
)

var exportCmd = &cobra.Command{
	Use:   "export <manifest>",
	Short: "Write a verified export directory for a project manifest",
	Long: `Run the full pipeline on a project manifest: validate, derive the
observability configuration, generate artifact requirements, score coverage
against existing artifacts and write the export directory atomically.

Coverage below --min-coverage refuses the export and leaves --out untouched.
The provenance timestamp comes from --generated-at or SOURCE_DATE_EPOCH,
never from the clock, so reruns on the same input are byte-identical.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	if Exporter == nil {
		return fmt.Errorf("exporter not initialized")
	}
	if exportOut == "" {
		return fmt.Errorf("--out is required")
	}

	req, err := manifestRequest(cmd, args[0])
	if err != nil {
		return err
	}
	req.OutDir = exportOut
	req.EmitProvenance = Config.Export.EmitProvenance && !exportNoProvenance
	req.Strict = exportStrict || Config.Validate.Strict
	req.Git = models.GitInfo{Commit: exportGitCommit, Branch: exportGitBranch, Timestamp: exportGitTimestamp}
	req.GeneratedAt = exportGeneratedAt
	if req.GeneratedAt == "" {
		if req.GeneratedAt, err = core.GeneratedAtFromEpoch(os.Getenv(core.SourceDateEpochVar)); err != nil {
			return err
		}
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := Exporter.Export(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderCoverage(out, res.Coverage)
	renderReadiness(out, res.Readiness)
	fmt.Fprintf(out, "Export %s written to %s (%d files)\n", res.ExportID, res.OutDir, len(res.Files))
	return nil
}

// manifestRequest reads the manifest at path and fills the planning part of
// an export request from the shared flags and configuration.
func manifestRequest(cmd *cobra.Command, path string) (core.ExportRequest, error) {
	if Config == nil {
		Config = core.DefaultConfig()
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return core.ExportRequest{}, fmt.Errorf("reading manifest: %w", err)
	}

	req := core.ExportRequest{
		Source:         source,
		MinCoverage:    Config.Export.MinCoverage,
		ExistingDir:    exportExistingDir,
		ExistingMap:    exportExistingMap,
		EmitProvenance: Config.Export.EmitProvenance,
	}
	if cmd.Flags().Changed("min-coverage") {
		req.MinCoverage = exportMinCoverage
	}
	return req, nil
}

// addExistingFlags registers the flags that locate existing artifacts.
func addExistingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&exportMinCoverage, "min-coverage", 0, "Minimum coverage percent required (default from config)")
	cmd.Flags().StringVar(&exportExistingDir, "existing-dir", "", "Directory scanned for artifacts that already exist")
	cmd.Flags().StringVar(&exportExistingMap, "existing-map", "", "YAML file mapping artifact ids to existing paths")
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOut, "out", "", "Export directory to create or replace (required)")
	f.BoolVar(&exportNoProvenance, "no-provenance", false, "Skip writing provenance.json")
	f.StringVar(&exportGitCommit, "git-commit", "", "Source commit recorded in provenance")
	f.StringVar(&exportGitBranch, "git-branch", "", "Source branch recorded in provenance")
	f.StringVar(&exportGitTimestamp, "git-timestamp", "", "Commit timestamp (RFC 3339 UTC) recorded in provenance")
	f.StringVar(&exportGeneratedAt, "generated-at", "", "Generation timestamp (RFC 3339 UTC); defaults to SOURCE_DATE_EPOCH")
	f.BoolVar(&exportStrict, "strict", false, "Fail on cross-reference errors and warnings")
	addExistingFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
