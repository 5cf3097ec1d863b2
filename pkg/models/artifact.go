package models

// ArtifactType is a kind of observability artifact a target can require.
type ArtifactType string

const (
	ArtifactDashboard          ArtifactType = "dashboard"
	ArtifactAlertRule          ArtifactType = "alert-rule"
	ArtifactSLO                ArtifactType = "slo"
	ArtifactServiceMonitor     ArtifactType = "service-monitor"
	ArtifactLogRecordingRule   ArtifactType = "log-recording-rule"
	ArtifactNotificationPolicy ArtifactType = "notification-policy"
	ArtifactRunbook            ArtifactType = "runbook"
)

// ArtifactTypes lists every artifact type in canonical output order.
var ArtifactTypes = []ArtifactType{
	ArtifactDashboard,
	ArtifactAlertRule,
	ArtifactSLO,
	ArtifactServiceMonitor,
	ArtifactLogRecordingRule,
	ArtifactNotificationPolicy,
	ArtifactRunbook,
}

// IsValidArtifactType reports whether t is a known artifact type.
func IsValidArtifactType(t ArtifactType) bool {
	for _, known := range ArtifactTypes {
		if known == t {
			return true
		}
	}
	return false
}

// DepthTier is how thorough a generated artifact is expected to be.
type DepthTier string

const (
	TierBrief         DepthTier = "brief"
	TierStandard      DepthTier = "standard"
	TierComprehensive DepthTier = "comprehensive"
)

// IsValidDepthTier reports whether t is a known depth tier.
func IsValidDepthTier(t DepthTier) bool {
	return t == TierBrief || t == TierStandard || t == TierComprehensive
}

// ArtifactID returns the canonical id of a target's artifact: {target}-{type}.
func ArtifactID(target string, t ArtifactType) string {
	return target + "-" + string(t)
}

// ArtifactNeed is the derivation engine's verdict for one artifact type of a target.
type ArtifactNeed struct {
	Type     ArtifactType
	Required bool
	Tier     DepthTier
	RuleID   string
}

// ArtifactRequirement is one (target, type) entry produced per export run.
type ArtifactRequirement struct {
	ID           string       `yaml:"id" json:"id"`
	Target       string       `yaml:"target" json:"target"`
	Type         ArtifactType `yaml:"type" json:"type"`
	Required     bool         `yaml:"required" json:"required"`
	Tier         DepthTier    `yaml:"tier" json:"tier"`
	RuleID       string       `yaml:"ruleId" json:"rule_id"`
	Waived       bool         `yaml:"waived,omitempty" json:"waived,omitempty"`
	WaiverReason string       `yaml:"waiverReason,omitempty" json:"waiver_reason,omitempty"`
}

// Counted reports whether the requirement participates in coverage math.
func (r ArtifactRequirement) Counted() bool {
	return r.Required && !r.Waived
}

// ObservabilityConfig is the configuration derived from business context.
type ObservabilityConfig struct {
	SamplingRate       float64            `yaml:"samplingRate" json:"sampling_rate"`
	MetricsInterval    string             `yaml:"metricsInterval" json:"metrics_interval"`
	AlertSeverity      Severity           `yaml:"alertSeverity" json:"alert_severity"`
	DashboardPlacement DashboardPlacement `yaml:"dashboardPlacement" json:"dashboard_placement"`
	AlertChannels      []string           `yaml:"alertChannels,omitempty" json:"alert_channels,omitempty"`
	LogLevel           string             `yaml:"logLevel,omitempty" json:"log_level,omitempty"`
}
