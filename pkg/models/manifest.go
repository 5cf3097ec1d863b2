package models

// APIVersion identifies a manifest schema generation.
type APIVersion string

const (
	APIVersionV1Alpha1 APIVersion = "contextcore.io/v1alpha1"
	APIVersionV1Alpha2 APIVersion = "contextcore.io/v1alpha2"

	// CurrentAPIVersion is the generation every older document is lifted to.
	CurrentAPIVersion = APIVersionV1Alpha2

	// ManifestKind is the only accepted value of the kind field.
	ManifestKind = "ProjectManifest"
)

// Criticality is the business criticality of a project.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// BusinessValue classifies what a project contributes to the organization.
type BusinessValue string

const (
	ValueRevenuePrimary   BusinessValue = "revenue-primary"
	ValueRevenueSecondary BusinessValue = "revenue-secondary"
	ValueCostReduction    BusinessValue = "cost-reduction"
	ValueCompliance       BusinessValue = "compliance"
	ValueEnabler          BusinessValue = "enabler"
)

// TargetKind is the kind of infrastructure unit a target points at.
type TargetKind string

const (
	TargetDeployment  TargetKind = "Deployment"
	TargetStatefulSet TargetKind = "StatefulSet"
	TargetDaemonSet   TargetKind = "DaemonSet"
	TargetService     TargetKind = "Service"
	TargetCronJob     TargetKind = "CronJob"
	TargetDatabase    TargetKind = "Database"
	TargetQueue       TargetKind = "Queue"
	TargetFunction    TargetKind = "Function"
)

// RiskType categorizes a declared risk.
type RiskType string

const (
	RiskSecurity      RiskType = "security"
	RiskCompliance    RiskType = "compliance"
	RiskDataIntegrity RiskType = "data-integrity"
	RiskAvailability  RiskType = "availability"
	RiskFinancial     RiskType = "financial"
	RiskReputational  RiskType = "reputational"
)

// Severity is a P1..P4 urgency level shared by risks and alerts.
type Severity string

const (
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
	SeverityP4 Severity = "P4"
)

// DashboardPlacement controls where generated dashboards are surfaced.
type DashboardPlacement string

const (
	PlacementFeatured DashboardPlacement = "featured"
	PlacementStandard DashboardPlacement = "standard"
)

// TacticStatus is the lifecycle state of a tactic.
type TacticStatus string

const (
	TacticPlanned    TacticStatus = "planned"
	TacticInProgress TacticStatus = "in_progress"
	TacticCompleted  TacticStatus = "completed"
	TacticCancelled  TacticStatus = "cancelled"
	TacticBlocked    TacticStatus = "blocked"
)

// ConstraintSeverity says how strictly a governance constraint binds.
type ConstraintSeverity string

const (
	ConstraintBlocking ConstraintSeverity = "blocking"
	ConstraintWarning  ConstraintSeverity = "warning"
	ConstraintAdvisory ConstraintSeverity = "advisory"
)

// QuestionStatus is the resolution state of a governance question.
type QuestionStatus string

const (
	QuestionOpen     QuestionStatus = "open"
	QuestionAnswered QuestionStatus = "answered"
	QuestionDeferred QuestionStatus = "deferred"
)

// InsightType categorizes a recorded insight.
type InsightType string

const (
	InsightDecision  InsightType = "decision"
	InsightLesson    InsightType = "lesson"
	InsightRisk      InsightType = "risk"
	InsightBlocker   InsightType = "blocker"
	InsightDiscovery InsightType = "discovery"
)

// VersionedManifest is implemented by every manifest schema generation.
// A document is decoded into exactly one generation and lifted to the
// current one by migration.
type VersionedManifest interface {
	GetAPIVersion() APIVersion
	ProjectName() string
}

// ObjectMeta identifies the manifest document.
type ObjectMeta struct {
	Name        string            `yaml:"name"`
	Namespace   string            `yaml:"namespace,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// ProjectIdentity names the project the manifest describes.
type ProjectIdentity struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// BusinessContext carries the business metadata observability is derived from.
type BusinessContext struct {
	Criticality Criticality   `yaml:"criticality"`
	Owner       string        `yaml:"owner"`
	Value       BusinessValue `yaml:"value,omitempty"`
	CostCenter  string        `yaml:"costCenter,omitempty"`
}

// Requirements are the operational targets of the project.
// Values are kept as strings so they round-trip exactly as written.
type Requirements struct {
	Availability string `yaml:"availability,omitempty"`
	LatencyP50   string `yaml:"latencyP50,omitempty"`
	LatencyP99   string `yaml:"latencyP99,omitempty"`
	Throughput   string `yaml:"throughput,omitempty"`
	ErrorBudget  string `yaml:"errorBudget,omitempty"`
}

// IsEmpty reports whether no requirement has been declared.
func (r Requirements) IsEmpty() bool {
	return r == Requirements{}
}

// Target is a named infrastructure or service reference.
type Target struct {
	Kind      TargetKind `yaml:"kind"`
	Name      string     `yaml:"name"`
	Namespace string     `yaml:"namespace,omitempty"`
}

// Risk is a declared project risk.
type Risk struct {
	ID          string   `yaml:"id"`
	Type        RiskType `yaml:"type"`
	Priority    Severity `yaml:"priority"`
	Description string   `yaml:"description"`
	Component   string   `yaml:"component,omitempty"`
	Mitigation  string   `yaml:"mitigation,omitempty"`
}

// Waiver explicitly exempts one target's artifact type from coverage.
type Waiver struct {
	Target string       `yaml:"target"`
	Type   ArtifactType `yaml:"type"`
	Reason string       `yaml:"reason"`
}

// ObservabilityOverrides lets a manifest override derived configuration.
// Nil pointers and empty strings mean "use the derived value".
type ObservabilityOverrides struct {
	TraceSampling      *float64                  `yaml:"traceSampling,omitempty"`
	MetricsInterval    string                    `yaml:"metricsInterval,omitempty"`
	AlertSeverity      Severity                  `yaml:"alertSeverity,omitempty"`
	DashboardPlacement DashboardPlacement        `yaml:"dashboardPlacement,omitempty"`
	AlertChannels      []string                  `yaml:"alertChannels,omitempty"`
	LogLevel           string                    `yaml:"logLevel,omitempty"`
	ArtifactDepth      map[ArtifactType]DepthTier `yaml:"artifactDepth,omitempty"`
	Waivers            []Waiver                  `yaml:"waivers,omitempty"`
}

// IsEmpty reports whether the manifest configures nothing observability-related.
func (o ObservabilityOverrides) IsEmpty() bool {
	return o.TraceSampling == nil && o.MetricsInterval == "" && o.AlertSeverity == "" &&
		o.DashboardPlacement == "" && len(o.AlertChannels) == 0 && o.LogLevel == "" &&
		len(o.ArtifactDepth) == 0 && len(o.Waivers) == 0
}

// ProjectSpec is the operational section shared by every schema generation.
type ProjectSpec struct {
	Project       ProjectIdentity        `yaml:"project"`
	Business      BusinessContext        `yaml:"business"`
	Requirements  Requirements           `yaml:"requirements,omitempty"`
	Targets       []Target               `yaml:"targets"`
	Risks         []Risk                 `yaml:"risks,omitempty"`
	Observability ObservabilityOverrides `yaml:"observability,omitempty"`
}

// KeyResult is a measurable outcome of an objective.
type KeyResult struct {
	Metric string `yaml:"metric"`
	Target string `yaml:"target"`
	Unit   string `yaml:"unit,omitempty"`
}

// Objective is a strategic objective.
type Objective struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	KeyResults  []KeyResult `yaml:"keyResults,omitempty"`
}

// Tactic is a concrete action linked to one or more objectives.
type Tactic struct {
	ID               string       `yaml:"id"`
	Description      string       `yaml:"description"`
	Status           TacticStatus `yaml:"status"`
	BlockedReason    string       `yaml:"blockedReason,omitempty"`
	LinkedObjectives []string     `yaml:"linkedObjectives,omitempty"`
	Owner            string       `yaml:"owner,omitempty"`
}

// Strategy groups objectives and tactics.
type Strategy struct {
	Objectives []Objective `yaml:"objectives,omitempty"`
	Tactics    []Tactic    `yaml:"tactics,omitempty"`
}

// Focus names the areas governance wants attention on.
type Focus struct {
	Areas  []string `yaml:"areas,omitempty"`
	Reason string   `yaml:"reason,omitempty"`
}

// Constraint is a governance rule.
type Constraint struct {
	ID        string             `yaml:"id"`
	Rule      string             `yaml:"rule"`
	Severity  ConstraintSeverity `yaml:"severity"`
	AppliesTo []string           `yaml:"appliesTo,omitempty"`
}

// Preference is a soft governance guideline.
type Preference struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Question is a governance question awaiting or carrying an answer.
type Question struct {
	ID       string         `yaml:"id"`
	Question string         `yaml:"question"`
	Status   QuestionStatus `yaml:"status"`
	Answer   string         `yaml:"answer,omitempty"`
}

// Guidance is the governance section.
type Guidance struct {
	Focus       Focus        `yaml:"focus,omitempty"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
	Preferences []Preference `yaml:"preferences,omitempty"`
	Questions   []Question   `yaml:"questions,omitempty"`
}

// IsEmpty reports whether no governance content is present.
func (g Guidance) IsEmpty() bool {
	return len(g.Focus.Areas) == 0 && g.Focus.Reason == "" && len(g.Constraints) == 0 &&
		len(g.Preferences) == 0 && len(g.Questions) == 0
}

// Insight records something learned while running the project.
type Insight struct {
	ID                string      `yaml:"id"`
	Type              InsightType `yaml:"type"`
	Summary           string      `yaml:"summary"`
	Confidence        float64     `yaml:"confidence,omitempty"`
	RelatedObjectives []string    `yaml:"relatedObjectives,omitempty"`
	RelatedTactics    []string    `yaml:"relatedTactics,omitempty"`
}

// ChangelogEntry records a change to the manifest document itself.
type ChangelogEntry struct {
	Version string `yaml:"version"`
	Note    string `yaml:"note"`
}

// ManifestV1Alpha1 is the first schema generation: operational sections only.
type ManifestV1Alpha1 struct {
	APIVersion APIVersion  `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   ObjectMeta  `yaml:"metadata"`
	Spec       ProjectSpec `yaml:"spec"`
}

// GetAPIVersion implements VersionedManifest.
func (m *ManifestV1Alpha1) GetAPIVersion() APIVersion { return APIVersionV1Alpha1 }

// ProjectName implements VersionedManifest.
func (m *ManifestV1Alpha1) ProjectName() string { return m.Metadata.Name }

// Manifest is the current (v1alpha2) schema generation. Every component
// downstream of parsing works on this type only.
type Manifest struct {
	APIVersion APIVersion       `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ObjectMeta       `yaml:"metadata"`
	Spec       ProjectSpec      `yaml:"spec"`
	Strategy   Strategy         `yaml:"strategy,omitempty"`
	Guidance   Guidance         `yaml:"guidance,omitempty"`
	Insights   []Insight        `yaml:"insights,omitempty"`
	Changelog  []ChangelogEntry `yaml:"changelog,omitempty"`
}

// GetAPIVersion implements VersionedManifest.
func (m *Manifest) GetAPIVersion() APIVersion { return APIVersionV1Alpha2 }

// ProjectName implements VersionedManifest.
func (m *Manifest) ProjectName() string { return m.Metadata.Name }

// TargetNames returns target names in declaration order.
func (m *Manifest) TargetNames() []string {
	names := make([]string, len(m.Spec.Targets))
	for i, t := range m.Spec.Targets {
		names[i] = t.Name
	}
	return names
}
