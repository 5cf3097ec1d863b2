package core

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// SchemaError is a single schema violation at a field path.
type SchemaError struct {
	Path    string
	Message string
}

func (e SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// SchemaErrors aggregates every schema violation found in a document.
type SchemaErrors []SchemaError

func (e SchemaErrors) Error() string {
	msgs := make([]string, len(e))
	for i, se := range e {
		msgs[i] = se.Error()
	}
	return fmt.Sprintf("manifest schema validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// schemaCollector accumulates violations while walking a document.
type schemaCollector struct {
	errs SchemaErrors
}

func (c *schemaCollector) add(path, format string, args ...any) {
	c.errs = append(c.errs, SchemaError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *schemaCollector) required(path, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(path, "is required")
	}
}

func (c *schemaCollector) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

// dnsLabelPattern matches a DNS-1123 label.
var dnsLabelPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// throughputPattern matches values such as 500rps or 1.5rpm.
var throughputPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?(rps|rpm|rph)$`)

var (
	validCriticalities = map[models.Criticality]bool{
		models.CriticalityCritical: true,
		models.CriticalityHigh:     true,
		models.CriticalityMedium:   true,
		models.CriticalityLow:      true,
	}
	validBusinessValues = map[models.BusinessValue]bool{
		models.ValueRevenuePrimary:   true,
		models.ValueRevenueSecondary: true,
		models.ValueCostReduction:    true,
		models.ValueCompliance:       true,
		models.ValueEnabler:          true,
	}
	validTargetKinds = map[models.TargetKind]bool{
		models.TargetDeployment:  true,
		models.TargetStatefulSet: true,
		models.TargetDaemonSet:   true,
		models.TargetService:     true,
		models.TargetCronJob:     true,
		models.TargetDatabase:    true,
		models.TargetQueue:       true,
		models.TargetFunction:    true,
	}
	validRiskTypes = map[models.RiskType]bool{
		models.RiskSecurity:      true,
		models.RiskCompliance:    true,
		models.RiskDataIntegrity: true,
		models.RiskAvailability:  true,
		models.RiskFinancial:     true,
		models.RiskReputational:  true,
	}
	validSeverities = map[models.Severity]bool{
		models.SeverityP1: true,
		models.SeverityP2: true,
		models.SeverityP3: true,
		models.SeverityP4: true,
	}
	validPlacements = map[models.DashboardPlacement]bool{
		models.PlacementFeatured: true,
		models.PlacementStandard: true,
	}
	validTacticStatuses = map[models.TacticStatus]bool{
		models.TacticPlanned:    true,
		models.TacticInProgress: true,
		models.TacticCompleted:  true,
		models.TacticCancelled:  true,
		models.TacticBlocked:    true,
	}
	validConstraintSeverities = map[models.ConstraintSeverity]bool{
		models.ConstraintBlocking: true,
		models.ConstraintWarning:  true,
		models.ConstraintAdvisory: true,
	}
	validQuestionStatuses = map[models.QuestionStatus]bool{
		models.QuestionOpen:     true,
		models.QuestionAnswered: true,
		models.QuestionDeferred: true,
	}
	validInsightTypes = map[models.InsightType]bool{
		models.InsightDecision:  true,
		models.InsightLesson:    true,
		models.InsightRisk:      true,
		models.InsightBlocker:   true,
		models.InsightDiscovery: true,
	}
)

// parsePercent parses "99.9" or "99.9%".
func parsePercent(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
}

// checkHeader validates the fields common to every generation's envelope.
func checkHeader(c *schemaCollector, kind string, meta models.ObjectMeta) {
	if kind != models.ManifestKind {
		c.add("kind", "must be %q, got %q", models.ManifestKind, kind)
	}
	if meta.Name == "" {
		c.add("metadata.name", "is required")
	} else if len(meta.Name) > 63 || !dnsLabelPattern.MatchString(meta.Name) {
		c.add("metadata.name", "%q is not a valid DNS-1123 label", meta.Name)
	}
}

// checkSpec validates the operational section shared by every generation.
func checkSpec(c *schemaCollector, spec *models.ProjectSpec) {
	c.required("spec.project.id", spec.Project.ID)

	b := spec.Business
	if b.Criticality == "" {
		c.add("spec.business.criticality", "is required")
	} else if !validCriticalities[b.Criticality] {
		c.add("spec.business.criticality", "%q is invalid, must be one of: critical, high, medium, low", b.Criticality)
	}
	c.required("spec.business.owner", b.Owner)
	if b.Value != "" && !validBusinessValues[b.Value] {
		c.add("spec.business.value", "%q is not a known business value", b.Value)
	}

	checkRequirements(c, spec.Requirements)

	if len(spec.Targets) == 0 {
		c.add("spec.targets", "at least one target is required")
	}
	for i, t := range spec.Targets {
		path := fmt.Sprintf("spec.targets[%d]", i)
		if !validTargetKinds[t.Kind] {
			c.add(path+".kind", "%q is not a supported target kind", t.Kind)
		}
		if t.Name == "" {
			c.add(path+".name", "is required")
		} else if !dnsLabelPattern.MatchString(t.Name) {
			c.add(path+".name", "%q is not a valid DNS-1123 label", t.Name)
		}
	}

	for i, r := range spec.Risks {
		path := fmt.Sprintf("spec.risks[%d]", i)
		c.required(path+".id", r.ID)
		if !validRiskTypes[r.Type] {
			c.add(path+".type", "%q is not a known risk type", r.Type)
		}
		if !validSeverities[r.Priority] {
			c.add(path+".priority", "%q is invalid, must be one of: P1, P2, P3, P4", r.Priority)
		}
		c.required(path+".description", r.Description)
	}

	checkOverrides(c, spec.Observability)
}

func checkRequirements(c *schemaCollector, r models.Requirements) {
	if r.Availability != "" {
		if v, err := parsePercent(r.Availability); err != nil || v <= 0 || v > 100 {
			c.add("spec.requirements.availability", "%q must be a percentage in (0, 100]", r.Availability)
		}
	}
	if r.ErrorBudget != "" {
		if v, err := parsePercent(r.ErrorBudget); err != nil || v < 0 || v > 100 {
			c.add("spec.requirements.errorBudget", "%q must be a percentage in [0, 100]", r.ErrorBudget)
		}
	}
	latencies := []struct{ path, value string }{
		{"spec.requirements.latencyP50", r.LatencyP50},
		{"spec.requirements.latencyP99", r.LatencyP99},
	}
	for _, l := range latencies {
		if l.value == "" {
			continue
		}
		if v, err := time.ParseDuration(l.value); err != nil || v <= 0 {
			c.add(l.path, "%q must be a positive duration such as 200ms", l.value)
		}
	}
	if r.Throughput != "" && !throughputPattern.MatchString(r.Throughput) {
		c.add("spec.requirements.throughput", "%q must look like 500rps", r.Throughput)
	}
}

func checkOverrides(c *schemaCollector, o models.ObservabilityOverrides) {
	if o.TraceSampling != nil && (*o.TraceSampling < 0 || *o.TraceSampling > 1) {
		c.add("spec.observability.traceSampling", "%v must be between 0 and 1", *o.TraceSampling)
	}
	if o.MetricsInterval != "" {
		if v, err := time.ParseDuration(o.MetricsInterval); err != nil || v <= 0 {
			c.add("spec.observability.metricsInterval", "%q must be a positive duration", o.MetricsInterval)
		}
	}
	if o.AlertSeverity != "" && !validSeverities[o.AlertSeverity] {
		c.add("spec.observability.alertSeverity", "%q is invalid, must be one of: P1, P2, P3, P4", o.AlertSeverity)
	}
	if o.DashboardPlacement != "" && !validPlacements[o.DashboardPlacement] {
		c.add("spec.observability.dashboardPlacement", "%q is invalid, must be one of: featured, standard", o.DashboardPlacement)
	}
	for _, t := range sortedArtifactTypes(o.ArtifactDepth) {
		tier := o.ArtifactDepth[t]
		path := "spec.observability.artifactDepth." + string(t)
		if !models.IsValidArtifactType(t) {
			c.add(path, "%q is not a known artifact type", t)
		}
		if !models.IsValidDepthTier(tier) {
			c.add(path, "%q is invalid, must be one of: brief, standard, comprehensive", tier)
		}
	}
	for i, w := range o.Waivers {
		path := fmt.Sprintf("spec.observability.waivers[%d]", i)
		c.required(path+".target", w.Target)
		if !models.IsValidArtifactType(w.Type) {
			c.add(path+".type", "%q is not a known artifact type", w.Type)
		}
		c.required(path+".reason", w.Reason)
	}
}

// sortedArtifactTypes returns the keys of a per-type map in lexical order.
func sortedArtifactTypes[V any](m map[models.ArtifactType]V) []models.ArtifactType {
	keys := make([]models.ArtifactType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// checkStrategy validates the strategic, governance and insight sections
// introduced in v1alpha2. Reference resolution is left to the cross-reference
// pass.
func checkStrategy(c *schemaCollector, m *models.Manifest) {
	for i, o := range m.Strategy.Objectives {
		path := fmt.Sprintf("strategy.objectives[%d]", i)
		c.required(path+".id", o.ID)
		c.required(path+".description", o.Description)
		for j, kr := range o.KeyResults {
			c.required(fmt.Sprintf("%s.keyResults[%d].metric", path, j), kr.Metric)
			c.required(fmt.Sprintf("%s.keyResults[%d].target", path, j), kr.Target)
		}
	}
	for i, t := range m.Strategy.Tactics {
		path := fmt.Sprintf("strategy.tactics[%d]", i)
		c.required(path+".id", t.ID)
		c.required(path+".description", t.Description)
		if !validTacticStatuses[t.Status] {
			c.add(path+".status", "%q is invalid, must be one of: planned, in_progress, completed, cancelled, blocked", t.Status)
		}
	}

	for i, con := range m.Guidance.Constraints {
		path := fmt.Sprintf("guidance.constraints[%d]", i)
		c.required(path+".id", con.ID)
		c.required(path+".rule", con.Rule)
		if !validConstraintSeverities[con.Severity] {
			c.add(path+".severity", "%q is invalid, must be one of: blocking, warning, advisory", con.Severity)
		}
	}
	for i, p := range m.Guidance.Preferences {
		c.required(fmt.Sprintf("guidance.preferences[%d].id", i), p.ID)
	}
	for i, q := range m.Guidance.Questions {
		path := fmt.Sprintf("guidance.questions[%d]", i)
		c.required(path+".id", q.ID)
		c.required(path+".question", q.Question)
		if !validQuestionStatuses[q.Status] {
			c.add(path+".status", "%q is invalid, must be one of: open, answered, deferred", q.Status)
		}
	}

	for i, in := range m.Insights {
		path := fmt.Sprintf("insights[%d]", i)
		c.required(path+".id", in.ID)
		c.required(path+".summary", in.Summary)
		if !validInsightTypes[in.Type] {
			c.add(path+".type", "%q is not a known insight type", in.Type)
		}
		if in.Confidence < 0 || in.Confidence > 1 {
			c.add(path+".confidence", "%v must be between 0 and 1", in.Confidence)
		}
	}
}

// checkV1Alpha1 is the schema of the first generation.
func checkV1Alpha1(doc *models.ManifestV1Alpha1) error {
	c := &schemaCollector{}
	checkHeader(c, doc.Kind, doc.Metadata)
	checkSpec(c, &doc.Spec)
	return c.err()
}

// checkV1Alpha2 is the schema of the current generation.
func checkV1Alpha2(doc *models.Manifest) error {
	c := &schemaCollector{}
	checkHeader(c, doc.Kind, doc.Metadata)
	checkSpec(c, &doc.Spec)
	checkStrategy(c, doc)
	return c.err()
}
