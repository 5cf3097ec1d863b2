package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/internal/storage"
)

const checkoutManifest = `apiVersion: contextcore.io/v1alpha2
kind: ProjectManifest
metadata:
  name: checkout
spec:
  project:
    id: checkout
  business:
    criticality: critical
    owner: payments-team
  requirements:
    availability: "99.95"
    latencyP99: 200ms
  targets:
    - kind: Deployment
      name: checkout-api
      namespace: payments
`

// blockedManifest has a blocked tactic without a blocked reason, which is a
// cross-reference error.
const blockedManifest = `apiVersion: contextcore.io/v1alpha2
kind: ProjectManifest
metadata:
  name: search
spec:
  project:
    id: search
  business:
    criticality: medium
    owner: search-team
  targets:
    - kind: Deployment
      name: search-api
strategy:
  objectives:
    - id: obj-latency
      description: Halve p99 latency
  tactics:
    - id: tac-cache
      description: Add a result cache
      status: blocked
      linkedObjectives: [obj-latency]
`

type recordingEvents struct {
	mu    sync.Mutex
	types []string
	data  []map[string]any
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	r.data = append(r.data, data)
	return nil
}

// withPipeline points the package-level services at real core and storage
// components and restores the previous values when the test ends.
func withPipeline(t *testing.T) *recordingEvents {
	t.Helper()
	origConfig, origExporter, origGate1, origGate2, origBundles, origEvents := Config, Exporter, Gate1, Gate2, Bundles, Events
	t.Cleanup(func() {
		Config, Exporter, Gate1, Gate2, Bundles, Events = origConfig, origExporter, origGate1, origGate2, origBundles, origEvents
	})

	events := &recordingEvents{}
	reader := storage.NewExportDirReader()
	Config = core.DefaultConfig()
	Events = events
	Bundles = reader
	Exporter = core.NewExporter(core.ExporterDeps{
		Scanner:     storage.NewArtifactScanner(storage.ScanOptions{}),
		Existing:    storage.NewExistingMapLoader(),
		Writer:      storage.NewExportDirWriter(),
		Events:      events,
		ToolVersion: "test",
	})
	Gate1 = core.NewGate1Checker(reader, events)
	Gate2 = core.NewGate2Checker(reader, storage.NewGateInputReader(storage.NewArtifactScanner(storage.ScanOptions{})), events)
	return events
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// setFlag sets a command flag for the duration of the test, marking it as
// changed the way the command line would.
func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	f := cmd.Flags().Lookup(name)
	if f == nil {
		t.Fatalf("no flag %q on %s", name, cmd.Name())
	}
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("setting --%s: %v", name, err)
	}
	t.Cleanup(func() {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// run invokes a command's RunE with its output captured.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

// exportCheckout writes a checkout export below a temp dir and returns it.
func exportCheckout(t *testing.T) string {
	t.Helper()
	outDir := filepath.Join(t.TempDir(), "export")
	setFlag(t, exportCmd, "out", outDir)
	setFlag(t, exportCmd, "generated-at", "2026-01-02T03:04:05Z")
	if _, err := run(t, exportCmd, writeManifest(t, checkoutManifest)); err != nil {
		t.Fatalf("export: %v", err)
	}
	return outDir
}
