package cli

import (
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/internal/observability"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Pipeline services, set during app initialization in app.go.
var (
	Config   *models.PipelineConfig
	Exporter core.Exporter
	Gate1    core.Gate1Checker
	Gate2    core.Gate2Checker
	Bundles  core.BundleReader
	Events   core.EventLogger
)

// Observability service instances. All nil when the event log is disabled.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
)
