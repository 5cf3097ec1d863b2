package cli

import (
	"errors"

	"github.com/valter-silva-au/contextcore/internal/core"
)

// Process exit codes.
const (
	ExitPass     = 0
	ExitFail     = 1
	ExitInternal = 2
)

// Execute runs the root command and maps its outcome to an exit code.
func Execute() int {
	return ExitCode(rootCmd.Execute())
}

// ExitCode classifies err: nil passes, a verdict about the input fails, and
// anything else is an internal error.
func ExitCode(err error) int {
	if err == nil {
		return ExitPass
	}

	var (
		invalid *core.ManifestInvalidError
		schema  core.SchemaErrors
		below   *core.CoverageBelowThresholdError
		gate    *core.GateFailedError
	)
	switch {
	case errors.As(err, &invalid),
		errors.As(err, &schema),
		errors.As(err, &below),
		errors.As(err, &gate):
		return ExitFail
	default:
		return ExitInternal
	}
}
