package core

import (
	"log/slog"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// EventLogger is the subset of the observability event log the pipeline
// needs. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Pipeline event types.
const (
	EventExportCompleted   = "export.completed"
	EventExportFailed      = "export.failed"
	EventValidateCompleted = "validate.completed"
	EventGate1Completed    = "gate1.completed"
	EventGate2Completed    = "gate2.completed"
)

// recordEvent writes an event if a logger is configured. Event log failures
// never fail a pipeline run.
func recordEvent(events EventLogger, eventType string, data map[string]any) {
	if events == nil {
		return
	}
	if err := events.LogEvent(eventType, data); err != nil {
		slog.Warn("recording event failed", "event", eventType, "error", err)
	}
}

// RecordValidation records the outcome of validating the manifest at source.
// m may be nil when the document failed the schema.
func RecordValidation(events EventLogger, source string, m *models.Manifest, res ValidationResult) {
	data := map[string]any{
		"source":        source,
		"valid":         res.Valid(),
		"error_count":   len(res.Errors),
		"xref_errors":   len(res.CrossReferenceErrors()),
		"warning_count": len(res.Warnings),
	}
	if m != nil {
		data["project"] = m.Metadata.Name
	}
	recordEvent(events, EventValidateCompleted, data)
}
