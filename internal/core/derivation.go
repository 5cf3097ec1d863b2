package core

import (
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// EngineVersion identifies the derivation rules. Changing any table or rule
// in this file must bump it, since it is recorded in every export.
const EngineVersion = "1"

// Rule ids recorded on each artifact requirement.
const (
	RuleAlwaysRequired       = "always-required"
	RuleCriticalRunbook      = "critical-runbook"
	RuleRequirementsDeclared = "requirements-declared"
	RuleRisksDeclared        = "risks-declared"
	RuleNotApplicable        = "not-applicable"
)

type derivationRow struct {
	sampling  float64
	interval  string
	severity  models.Severity
	placement models.DashboardPlacement
}

// derivationTable maps criticality to its observability defaults.
var derivationTable = map[models.Criticality]derivationRow{
	models.CriticalityCritical: {1.0, "10s", models.SeverityP1, models.PlacementFeatured},
	models.CriticalityHigh:     {0.5, "30s", models.SeverityP2, models.PlacementFeatured},
	models.CriticalityMedium:   {0.1, "60s", models.SeverityP3, models.PlacementStandard},
	models.CriticalityLow:      {0.01, "120s", models.SeverityP4, models.PlacementStandard},
}

// artifactDependencies is the artifact dependency graph: a type depends on
// the artifacts it reads from or links to.
var artifactDependencies = map[models.ArtifactType][]models.ArtifactType{
	models.ArtifactDashboard:          {models.ArtifactSLO, models.ArtifactServiceMonitor, models.ArtifactAlertRule},
	models.ArtifactAlertRule:          {models.ArtifactServiceMonitor, models.ArtifactSLO},
	models.ArtifactSLO:                {models.ArtifactServiceMonitor},
	models.ArtifactServiceMonitor:     nil,
	models.ArtifactLogRecordingRule:   nil,
	models.ArtifactNotificationPolicy: {models.ArtifactAlertRule},
	models.ArtifactRunbook:            {models.ArtifactAlertRule, models.ArtifactDashboard, models.ArtifactNotificationPolicy, models.ArtifactSLO},
}

// artifactDescriptions is surfaced to consumers in onboarding metadata.
var artifactDescriptions = map[models.ArtifactType]string{
	models.ArtifactDashboard:          "Service dashboard covering golden signals and SLO burn",
	models.ArtifactAlertRule:          "Alerting rules derived from SLOs and scrape health",
	models.ArtifactSLO:                "Service level objective definition",
	models.ArtifactServiceMonitor:     "Metrics scrape configuration for the target",
	models.ArtifactLogRecordingRule:   "Recording rules turning logs into requirement metrics",
	models.ArtifactNotificationPolicy: "Routing of alerts to declared channels by risk",
	models.ArtifactRunbook:            "Operational runbook for on-call responders",
}

// ArtifactDependencies returns the types t depends on.
func ArtifactDependencies(t models.ArtifactType) []models.ArtifactType {
	return artifactDependencies[t]
}

// tierForDependencies maps a dependency count to a depth tier.
func tierForDependencies(n int) models.DepthTier {
	switch {
	case n == 0:
		return models.TierBrief
	case n <= 2:
		return models.TierStandard
	default:
		return models.TierComprehensive
	}
}

// ExpectedDepth is the calibrated depth of an artifact type when every one
// of its dependencies is present.
func ExpectedDepth(t models.ArtifactType) models.DepthTier {
	return tierForDependencies(len(artifactDependencies[t]))
}

// DeriveObservabilityConfig returns the configuration for a criticality,
// with any manifest overrides applied field by field. Unknown criticalities
// fall back to medium.
func DeriveObservabilityConfig(criticality models.Criticality, o models.ObservabilityOverrides) models.ObservabilityConfig {
	row, ok := derivationTable[criticality]
	if !ok {
		row = derivationTable[models.CriticalityMedium]
	}

	cfg := models.ObservabilityConfig{
		SamplingRate:       row.sampling,
		MetricsInterval:    row.interval,
		AlertSeverity:      row.severity,
		DashboardPlacement: row.placement,
	}
	if o.TraceSampling != nil {
		cfg.SamplingRate = *o.TraceSampling
	}
	if o.MetricsInterval != "" {
		cfg.MetricsInterval = o.MetricsInterval
	}
	if o.AlertSeverity != "" {
		cfg.AlertSeverity = o.AlertSeverity
	}
	if o.DashboardPlacement != "" {
		cfg.DashboardPlacement = o.DashboardPlacement
	}
	if len(o.AlertChannels) > 0 {
		cfg.AlertChannels = append([]string(nil), o.AlertChannels...)
	}
	cfg.LogLevel = o.LogLevel
	return cfg
}

// requiredRule decides whether a target of this manifest needs type t, and
// names the rule that decided it.
func requiredRule(m *models.Manifest, t models.ArtifactType) (bool, string) {
	switch t {
	case models.ArtifactDashboard, models.ArtifactAlertRule, models.ArtifactSLO, models.ArtifactServiceMonitor:
		return true, RuleAlwaysRequired
	case models.ArtifactRunbook:
		if m.Spec.Business.Criticality == models.CriticalityCritical {
			return true, RuleCriticalRunbook
		}
	case models.ArtifactLogRecordingRule:
		if !m.Spec.Requirements.IsEmpty() {
			return true, RuleRequirementsDeclared
		}
	case models.ArtifactNotificationPolicy:
		if len(m.Spec.Risks) > 0 {
			return true, RuleRisksDeclared
		}
	}
	return false, RuleNotApplicable
}

// DeriveArtifactNeeds returns one need per artifact type, in canonical
// order, for a target of the manifest. The result depends only on the
// manifest and EngineVersion.
func DeriveArtifactNeeds(m *models.Manifest, target models.Target) []models.ArtifactNeed {
	required := make(map[models.ArtifactType]bool, len(models.ArtifactTypes))
	needs := make([]models.ArtifactNeed, 0, len(models.ArtifactTypes))
	for _, t := range models.ArtifactTypes {
		ok, rule := requiredRule(m, t)
		required[t] = ok
		needs = append(needs, models.ArtifactNeed{Type: t, Required: ok, RuleID: rule})
	}

	for i := range needs {
		if tier, ok := m.Spec.Observability.ArtifactDepth[needs[i].Type]; ok {
			needs[i].Tier = tier
			continue
		}
		n := 0
		for _, dep := range artifactDependencies[needs[i].Type] {
			if required[dep] {
				n++
			}
		}
		needs[i].Tier = tierForDependencies(n)
	}
	return needs
}
