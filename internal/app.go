// Package internal provides the App struct that wires all components of
// contextcore together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valter-silva-au/contextcore/internal/cli"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/internal/logging"
	"github.com/valter-silva-au/contextcore/internal/observability"
	"github.com/valter-silva-au/contextcore/internal/storage"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// EventLogFile is the name of the run event log under the base path.
const EventLogFile = "events.jsonl"

// App holds all service dependencies of contextcore.
type App struct {
	BasePath string
	WorkDir  string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.PipelineConfig

	// Storage layer
	Scanner        storage.ArtifactScanner
	ExistingLoader storage.ExistingMapLoader
	Writer         storage.ExportDirWriter
	Reader         storage.ExportDirReader
	Inputs         storage.GateInputReader

	// Core services
	Exporter core.Exporter
	Gate1    core.Gate1Checker
	Gate2    core.Gate2Checker

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components. basePath is the contextcore home
// holding config.yaml and the event log; workDir is searched for a
// .contextcore.yaml project config.
func NewApp(basePath, workDir string) (*App, error) {
	app := &App{BasePath: basePath, WorkDir: workDir}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig(workDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// Flags re-initialize logging once parsed; this covers config-only runs.
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		logging.Init(level, cfg.Log.Format)
	}
	log := logging.New("app")

	// --- Storage layer ---
	app.Scanner = storage.NewArtifactScanner(storage.ScanOptions{
		MaxFiles: cfg.Scan.MaxFiles,
		MaxDepth: cfg.Scan.MaxDepth,
	})
	app.ExistingLoader = storage.NewExistingMapLoader()
	app.Writer = storage.NewExportDirWriter()
	app.Reader = storage.NewExportDirReader()
	app.Inputs = storage.NewGateInputReader(app.Scanner)

	// --- Observability ---
	if cfg.Observability.EventLog {
		eventLogPath := filepath.Join(basePath, EventLogFile)
		app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
		if err != nil {
			// Non-fatal: runs are still verified, just not recorded.
			log.Warn("event log disabled", "path", eventLogPath, "error", err)
			app.EventLog = nil
		}
	}
	var events core.EventLogger
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		thresholds.CoverageDropPercent = cfg.Observability.CoverageDropPercent
		if cfg.Observability.LookbackDays > 0 {
			thresholds.LookbackDays = cfg.Observability.LookbackDays
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		events = &eventLogAdapter{log: app.EventLog}
	}

	// --- Core services ---
	app.Exporter = core.NewExporter(core.ExporterDeps{
		Scanner:     app.Scanner,
		Existing:    app.ExistingLoader,
		Writer:      app.Writer,
		Events:      events,
		ToolVersion: cli.Version(),
	})
	app.Gate1 = core.NewGate1Checker(app.Reader, events)
	app.Gate2 = core.NewGate2Checker(app.Reader, app.Inputs, events)

	// --- Wire CLI package-level variables ---
	cli.Config = app.Config
	cli.Exporter = app.Exporter
	cli.Gate1 = app.Gate1
	cli.Gate2 = app.Gate2
	cli.Bundles = app.Reader
	cli.Events = events

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the contextcore home directory. It checks the
// CONTEXTCORE_HOME env var, then falls back to ~/.contextcore, then to
// .contextcore in the current directory when no home directory is known.
func ResolveBasePath() string {
	if home := os.Getenv("CONTEXTCORE_HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".contextcore")
	}
	return ".contextcore"
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := "INFO"
	if strings.HasSuffix(eventType, ".failed") {
		level = "WARN"
	}
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
