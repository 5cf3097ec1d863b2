package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

var migrateOutput string

var migrateCmd = &cobra.Command{
	Use:   "migrate <manifest>",
	Short: "Rewrite a manifest in the current schema generation",
	Long: `Lift a manifest of any supported apiVersion to the current one and print
it, or write it to --output. A changelog entry records the migration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}

		doc, err := core.ParseDocument(raw)
		if err != nil {
			return err
		}
		if doc.GetAPIVersion() == models.CurrentAPIVersion {
			slog.Info("manifest already current", "path", args[0], "api_version", doc.GetAPIVersion())
		}

		m, err := core.ParseManifest(raw)
		if err != nil {
			return err
		}
		data, err := core.MarshalManifest(m)
		if err != nil {
			return err
		}

		if migrateOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(migrateOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing migrated manifest: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s (%s -> %s) to %s\n", m.Metadata.Name, doc.GetAPIVersion(), m.APIVersion, migrateOutput)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateOutput, "output", "o", "", "Write the migrated manifest to this file instead of stdout")
	rootCmd.AddCommand(migrateCmd)
}
