package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/internal/logging"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the version recorded in export provenance.
func Version() string { return appVersion }

var (
	logLevel  string
	logFormat string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "contextcore",
	Short: "Turn project manifests into verified observability exports",
	Long: `contextcore reads a declarative project manifest, derives the observability
artifacts the project requires, scores coverage against what already exists,
and writes a self-describing export directory guarded by a checksum chain.

Two gates verify the hand-off: gate1 checks an export before ingestion,
gate2 checks what the downstream layers made of it.`,
	SilenceUsage:      true,
	PersistentPreRunE: applyGlobalFlags,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contextcore %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

// applyGlobalFlags layers the persistent flags over the loaded configuration
// and configures logging.
func applyGlobalFlags(cmd *cobra.Command, _ []string) error {
	if Config == nil {
		Config = core.DefaultConfig()
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		Config.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		Config.Log.Format = logFormat
	}
	if flags.Changed("timeout") {
		Config.Timeout = timeout
	}

	level, err := logging.ParseLevel(Config.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, Config.Log.Format, cmd.ErrOrStderr())
	return nil
}

// commandContext bounds a command by the configured timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if Config == nil || Config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, Config.Timeout)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "warn", "Diagnostic log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Diagnostic log format (text or json)")
	pf.DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the command after this long")

	rootCmd.AddCommand(versionCmd)
}
