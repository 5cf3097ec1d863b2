package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/contextcore/internal"
	"github.com/valter-silva-au/contextcore/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	a, err := app.NewApp(app.ResolveBasePath(), workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing contextcore: %v\n", err)
		os.Exit(cli.ExitInternal)
	}

	code := cli.Execute()
	_ = a.Close()
	os.Exit(code)
}
