package observability

import (
	"fmt"
	"math"
	"time"
)

// Run event types recorded by the pipeline.
const (
	TypeExportCompleted   = "export.completed"
	TypeExportFailed      = "export.failed"
	TypeValidateCompleted = "validate.completed"
	TypeGate1Completed    = "gate1.completed"
	TypeGate2Completed    = "gate2.completed"
)

// ProjectMetrics summarises the exports of one project.
type ProjectMetrics struct {
	Exports        int     `json:"exports"`
	Failures       int     `json:"failures"`
	LatestCoverage float64 `json:"latest_coverage"`
	LatestScore    int     `json:"latest_readiness_score"`
	LatestVerdict  string  `json:"latest_verdict,omitempty"`
}

// Metrics holds run metrics derived from the event log.
type Metrics struct {
	Exports            int                       `json:"exports"`
	ExportFailures     int                       `json:"export_failures"`
	Validations        int                       `json:"validations"`
	InvalidManifests   int                       `json:"invalid_manifests"`
	Gate1Runs          int                       `json:"gate1_runs"`
	Gate1ByStatus      map[string]int            `json:"gate1_by_status"`
	ChecksumFailures   int                       `json:"checksum_failures"`
	Gate2Runs          int                       `json:"gate2_runs"`
	Gate2Healthy       int                       `json:"gate2_healthy"`
	Gate2ShortCircuits int                       `json:"gate2_short_circuits"`
	AverageCoverage    float64                   `json:"average_coverage"`
	Verdicts           map[string]int            `json:"verdicts"`
	Projects           map[string]ProjectMetrics `json:"projects"`
	EventCount         int                       `json:"event_count"`
	OldestEvent        *time.Time                `json:"oldest_event,omitempty"`
	NewestEvent        *time.Time                `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event since the given time. Per-project
// "latest" values follow log order.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		Gate1ByStatus: make(map[string]int),
		Verdicts:      make(map[string]int),
		Projects:      make(map[string]ProjectMetrics),
		EventCount:    len(events),
	}

	var coverageSum float64
	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case TypeExportCompleted:
			m.Exports++
			cov, _ := number(event.Data, "coverage_percent")
			score, _ := number(event.Data, "readiness_score")
			verdict := text(event.Data, "verdict")
			coverageSum += cov
			if verdict != "" {
				m.Verdicts[verdict]++
			}
			if p := event.Project(); p != "" {
				pm := m.Projects[p]
				pm.Exports++
				pm.LatestCoverage = cov
				pm.LatestScore = int(score)
				pm.LatestVerdict = verdict
				m.Projects[p] = pm
			}
		case TypeExportFailed:
			m.ExportFailures++
			if p := event.Project(); p != "" {
				pm := m.Projects[p]
				pm.Failures++
				m.Projects[p] = pm
			}
		case TypeValidateCompleted:
			m.Validations++
			if valid, ok := event.Data["valid"].(bool); ok && !valid {
				m.InvalidManifests++
			}
		case TypeGate1Completed:
			m.Gate1Runs++
			if status := text(event.Data, "status"); status != "" {
				m.Gate1ByStatus[status]++
			}
			if flag(event.Data, "checksum_failed") {
				m.ChecksumFailures++
			}
		case TypeGate2Completed:
			m.Gate2Runs++
			if flag(event.Data, "healthy") {
				m.Gate2Healthy++
			}
			if flag(event.Data, "short_circuited") {
				m.Gate2ShortCircuits++
			}
		}
	}

	if m.Exports > 0 {
		m.AverageCoverage = math.Round(coverageSum/float64(m.Exports)*10) / 10
	}
	return m, nil
}
