package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/valter-silva-au/contextcore/internal/storage"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// checkoutManifest is a critical project with one namespaced target and a
// full set of requirements. It derives six required artifact types.
const checkoutManifest = `apiVersion: contextcore.io/v1alpha2
kind: ProjectManifest
metadata:
  name: checkout
spec:
  project:
    id: checkout
    name: Checkout
  business:
    criticality: critical
    owner: payments-team
    value: revenue-primary
  requirements:
    availability: "99.95"
    latencyP50: 50ms
    latencyP99: 200ms
    throughput: 500rps
    errorBudget: "0.05"
  targets:
    - kind: Deployment
      name: checkout-api
      namespace: payments
`

// checkoutRequired lists the artifact types checkoutManifest requires.
var checkoutRequired = []models.ArtifactType{
	models.ArtifactDashboard,
	models.ArtifactAlertRule,
	models.ArtifactSLO,
	models.ArtifactServiceMonitor,
	models.ArtifactLogRecordingRule,
	models.ArtifactRunbook,
}

// strategyManifest exercises every v1alpha2 section.
const strategyManifest = `apiVersion: contextcore.io/v1alpha2
kind: ProjectManifest
metadata:
  name: ledger
  labels:
    team: finance
spec:
  project:
    id: ledger
  business:
    criticality: high
    owner: finance-eng
  targets:
    - kind: StatefulSet
      name: ledger-db
      namespace: finance
    - kind: Service
      name: ledger-api
  risks:
    - id: r-1
      type: data-integrity
      priority: P1
      description: Double posting
      mitigation: Idempotency keys
  observability:
    alertChannels: ["#ledger-oncall"]
strategy:
  objectives:
    - id: obj-1
      description: Zero double postings
      keyResults:
        - metric: double_postings
          target: "0"
  tactics:
    - id: tac-1
      description: Add idempotency keys
      status: in_progress
      linkedObjectives: [obj-1]
guidance:
  focus:
    areas: [correctness]
  constraints:
    - id: c-1
      rule: No schema changes without review
      severity: blocking
      appliesTo: [ledger-db]
  questions:
    - id: q-1
      question: Shard by tenant?
      status: answered
      answer: Not yet
insights:
  - id: i-1
    type: decision
    summary: Postgres stays
    relatedObjectives: [obj-1]
    relatedTactics: [tac-1]
`

func mustParse(t *testing.T, raw string) *models.Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	return m
}

// existingFor returns an id -> path map covering the given types of target.
func existingFor(target string, types ...models.ArtifactType) map[string]string {
	out := make(map[string]string, len(types))
	for _, ty := range types {
		id := models.ArtifactID(target, ty)
		out[id] = "artifacts/" + id + ".yaml"
	}
	return out
}

// recordedEvent is one event captured by fakeEventLog.
type recordedEvent struct {
	Type string
	Data map[string]any
}

// fakeEventLog captures events in memory.
type fakeEventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEventLog) LogEvent(eventType string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (f *fakeEventLog) ofType(eventType string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// staticExisting is an ExistingMapLoader returning a fixed map.
type staticExisting map[string]string

func (s staticExisting) Load(string) (map[string]string, error) { return s, nil }

// newTestExporter wires an Exporter to the real filesystem adapters.
func newTestExporter(events EventLogger, existing ExistingMapLoader) Exporter {
	return NewExporter(ExporterDeps{
		Scanner:     storage.NewArtifactScanner(storage.ScanOptions{}),
		Existing:    existing,
		Writer:      storage.NewExportDirWriter(),
		Events:      events,
		ToolVersion: "1.2.3",
	})
}

// exportTo runs a full export of raw into a fresh directory under t.TempDir.
func exportTo(t *testing.T, raw string, existing map[string]string) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "export")
	req := ExportRequest{
		Source:         []byte(raw),
		OutDir:         out,
		EmitProvenance: true,
		GeneratedAt:    "2026-01-02T03:04:05Z",
	}
	var loader ExistingMapLoader
	if existing != nil {
		loader = staticExisting(existing)
		req.ExistingMap = "inline"
	}
	if _, err := newTestExporter(nil, loader).Export(context.Background(), req); err != nil {
		t.Fatalf("Export: %v", err)
	}
	return out
}

func readExportFile(t *testing.T, dir, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return data
}

func writeExportFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func containsAny(items []string, sub string) bool {
	for _, s := range items {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
