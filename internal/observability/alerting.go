package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionChecksumFailed        = "checksum_chain_failed"
	ConditionCoverageRegressed     = "coverage_regressed"
	ConditionReadinessInsufficient = "readiness_insufficient"
	ConditionGate2ShortCircuited   = "gate2_short_circuited"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	// CoverageDropPercent is how many percentage points coverage may fall
	// between consecutive exports of a project before alerting.
	CoverageDropPercent float64 `yaml:"coverage_drop_percent" json:"coverage_drop_percent"`
	LookbackDays        int     `yaml:"lookback_days" json:"lookback_days"`
}

// DefaultAlertThresholds alerts on any coverage drop within the last week.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		CoverageDropPercent: 0,
		LookbackDays:        7,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns the alerts raised by the most recent run of each export
// directory or project within the lookback window, sorted by ID. A condition
// clears once a later run no longer shows it.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	filter := EventFilter{}
	if ae.thresholds.LookbackDays > 0 {
		since := now.AddDate(0, 0, -ae.thresholds.LookbackDays)
		filter.Since = &since
	}
	events, err := ae.eventLog.Read(filter)
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkChecksumFailures(events, now)...)
	alerts = append(alerts, ae.checkCoverageRegressions(events, now)...)
	alerts = append(alerts, ae.checkInsufficientReadiness(events, now)...)
	alerts = append(alerts, ae.checkShortCircuits(events, now)...)

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts, nil
}

// latestBy keeps the last event of eventType per key.
func latestBy(events []Event, eventType, key string) map[string]Event {
	latest := make(map[string]Event)
	for _, e := range events {
		if e.Type != eventType {
			continue
		}
		if k := text(e.Data, key); k != "" {
			latest[k] = e
		}
	}
	return latest
}

func (ae *alertEngine) checkChecksumFailures(events []Event, now time.Time) []Alert {
	var alerts []Alert
	for dir, e := range latestBy(events, TypeGate1Completed, "export_dir") {
		if !flag(e.Data, "checksum_failed") {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "checksum-" + dir,
			Condition:   ConditionChecksumFailed,
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("export %s failed checksum chain verification; its files were modified after export", dir),
			TriggeredAt: now,
		})
	}
	return alerts
}

func (ae *alertEngine) checkCoverageRegressions(events []Event, now time.Time) []Alert {
	history := make(map[string][]float64)
	for _, e := range events {
		if e.Type != TypeExportCompleted || e.Project() == "" {
			continue
		}
		if cov, ok := number(e.Data, "coverage_percent"); ok {
			history[e.Project()] = append(history[e.Project()], cov)
		}
	}

	var alerts []Alert
	for project, covs := range history {
		if len(covs) < 2 {
			continue
		}
		prev, last := covs[len(covs)-2], covs[len(covs)-1]
		if prev-last <= ae.thresholds.CoverageDropPercent {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "coverage-" + project,
			Condition:   ConditionCoverageRegressed,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("coverage for %s fell from %.1f%% to %.1f%% since the previous export", project, prev, last),
			TriggeredAt: now,
		})
	}
	return alerts
}

func (ae *alertEngine) checkInsufficientReadiness(events []Event, now time.Time) []Alert {
	var alerts []Alert
	for project, e := range latestBy(events, TypeExportCompleted, "project") {
		if text(e.Data, "verdict") != "insufficient" {
			continue
		}
		score, _ := number(e.Data, "readiness_score")
		alerts = append(alerts, Alert{
			ID:          "readiness-" + project,
			Condition:   ConditionReadinessInsufficient,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("latest export of %s scored %d and is insufficient for ingestion", project, int(score)),
			TriggeredAt: now,
		})
	}
	return alerts
}

func (ae *alertEngine) checkShortCircuits(events []Event, now time.Time) []Alert {
	var alerts []Alert
	for dir, e := range latestBy(events, TypeGate2Completed, "export_dir") {
		if !flag(e.Data, "short_circuited") {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "gate2-" + dir,
			Condition:   ConditionGate2ShortCircuited,
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("gate 2 for %s stopped early; later questions were not evaluated", dir),
			TriggeredAt: now,
		})
	}
	return alerts
}
