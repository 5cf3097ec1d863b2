package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print shell completions for contextcore",
	Long: `Print the tab-completion script for contextcore commands, flags and
arguments. Manifest arguments complete to YAML files and export directory
arguments complete to directories.

Supported shells: bash, zsh, fish, powershell

  eval "$(contextcore completion bash)"
  eval "$(contextcore completion zsh)"
  contextcore completion fish | source
  contextcore completion powershell | Out-String | Invoke-Expression`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		default:
			return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", args[0])
		}
	},
}

// completeManifest completes the first argument to YAML files.
func completeManifest(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeExportDir completes the first argument to directories.
func completeExportDir(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveFilterDirs
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, validateCmd, migrateCmd, planCmd} {
		c.ValidArgsFunction = completeManifest
	}
	for _, c := range []*cobra.Command{gate1Cmd, gate2Cmd, dashboardCmd} {
		c.ValidArgsFunction = completeExportDir
	}

	// Replace Cobra's default completion command with ours.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
