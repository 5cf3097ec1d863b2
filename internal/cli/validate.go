package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>",
	Short: "Check a manifest against the schema and its cross-references",
	Long: `Validate a project manifest. Every schema violation and every dangling
cross-reference is reported, not just the first. With --strict, advisory
warnings are treated as errors too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}

		strict := validateStrict || (Config != nil && Config.Validate.Strict)
		m, res := core.ValidateDocument(raw, strict)
		core.RecordValidation(Events, args[0], m, res)

		out := cmd.OutOrStdout()
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "%s %s\n", warnStyle.Render("warning:"), w)
		}
		if err := res.Err(); err != nil {
			return err
		}

		name := args[0]
		if m != nil {
			name = fmt.Sprintf("%s (%s)", m.Metadata.Name, m.APIVersion)
		}
		fmt.Fprintf(out, "%s %s\n", passStyle.Render("valid:"), name)
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
	rootCmd.AddCommand(validateCmd)
}
