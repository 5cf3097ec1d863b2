package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"

	"github.com/valter-silva-au/contextcore/internal/logging"
	"github.com/valter-silva-au/contextcore/pkg/models"
	"gopkg.in/yaml.v3"
)

// ExportRequest describes one export run. Source holds the raw manifest
// bytes; they are copied into the export unchanged.
type ExportRequest struct {
	Source         []byte
	OutDir         string
	EmitProvenance bool
	MinCoverage    float64
	ExistingDir    string
	ExistingMap    string
	Strict         bool
	Git            models.GitInfo
	GeneratedAt    string
}

// Plan is everything the pipeline derives from a manifest before anything
// is written.
type Plan struct {
	Manifest      *models.Manifest
	Validation    ValidationResult
	Observability models.ObservabilityConfig
	Requirements  []models.ArtifactRequirement
	Coverage      models.CoverageReport
	Readiness     models.Readiness
}

// ExportResult is the outcome of a successful export.
type ExportResult struct {
	Plan
	OutDir     string
	ExportID   string
	Files      []string
	Provenance *models.ProvenanceRecord
}

// Exporter runs the manifest to export-directory pipeline.
type Exporter interface {
	Plan(ctx context.Context, req ExportRequest) (*Plan, error)
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}

// ExporterDeps are the collaborators an Exporter needs. Scanner, Existing
// and Events may be nil.
type ExporterDeps struct {
	Scanner     ArtifactScanner
	Existing    ExistingMapLoader
	Writer      ExportWriter
	Events      EventLogger
	ToolVersion string
}

type exporter struct {
	deps ExporterDeps
}

// NewExporter creates an Exporter.
func NewExporter(deps ExporterDeps) Exporter {
	return &exporter{deps: deps}
}

func (e *exporter) tool() models.ToolInfo {
	v := e.deps.ToolVersion
	if v == "" {
		v = "dev"
	}
	return models.ToolInfo{Name: ToolName, Version: v, EngineVersion: EngineVersion}
}

// Plan parses, validates, derives and scores a manifest without writing
// anything. Schema errors are fatal. Cross-reference errors only lower the
// readiness score unless Strict is set.
func (e *exporter) Plan(ctx context.Context, req ExportRequest) (*Plan, error) {
	m, validation := ValidateDocument(req.Source, req.Strict)
	if m == nil {
		return nil, validation.Err()
	}
	if req.Strict && !validation.Valid() {
		return nil, validation.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("planning aborted: %w", err)
	}

	log := logging.New("exporter")
	for _, xref := range validation.CrossReferenceErrors() {
		log.Warn("cross-reference error", "project", m.Metadata.Name, "error", xref)
	}

	reqs := GenerateRequirements(m)
	existing, err := e.collectExisting(ctx, reqs, req)
	if err != nil {
		return nil, err
	}
	coverage := ScoreCoverage(reqs, existing)

	plan := &Plan{
		Manifest:      m,
		Validation:    validation,
		Observability: DeriveObservabilityConfig(m.Spec.Business.Criticality, m.Spec.Observability),
		Requirements:  reqs,
		Coverage:      coverage,
	}
	plan.Readiness = AssessReadiness(ReadinessInput{
		Manifest:          m,
		Validation:        validation,
		Requirements:      reqs,
		Coverage:          coverage,
		ProvenanceEnabled: req.EmitProvenance,
		Git:               req.Git,
	})
	return plan, nil
}

// collectExisting merges the explicit map with the directory scan; the map
// wins when both name the same artifact.
func (e *exporter) collectExisting(ctx context.Context, reqs []models.ArtifactRequirement, req ExportRequest) (map[string]string, error) {
	var fromMap, fromScan map[string]string

	if req.ExistingMap != "" {
		if e.deps.Existing == nil {
			return nil, fmt.Errorf("existing artifact map given but no loader configured")
		}
		loaded, err := e.deps.Existing.Load(req.ExistingMap)
		if err != nil {
			return nil, err
		}
		fromMap = loaded
	}

	if req.ExistingDir != "" {
		if e.deps.Scanner == nil {
			return nil, fmt.Errorf("existing artifact directory given but no scanner configured")
		}
		files, err := e.deps.Scanner.Scan(ctx, req.ExistingDir)
		if err != nil {
			return nil, fmt.Errorf("scanning existing artifacts: %w", err)
		}
		fromScan = IndexExisting(reqs, files)
	}

	return MergeExisting(fromMap, fromScan), nil
}

// Export runs the full pipeline and atomically promotes the export
// directory. On any failure, including coverage below the threshold,
// nothing is promoted.
func (e *exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	res, err := e.export(ctx, req)
	if err != nil {
		data := map[string]any{"out_dir": req.OutDir, "error": err.Error()}
		if res != nil {
			data["project"] = res.Manifest.Metadata.Name
			data["coverage_percent"] = res.Coverage.Overall.Percent
		}
		recordEvent(e.deps.Events, EventExportFailed, data)
		return nil, err
	}

	recordEvent(e.deps.Events, EventExportCompleted, map[string]any{
		"project":          res.Manifest.Metadata.Name,
		"out_dir":          res.OutDir,
		"export_id":        res.ExportID,
		"required":         res.Coverage.Overall.Required,
		"existing":         res.Coverage.Overall.Existing,
		"waived":           res.Coverage.Overall.Waived,
		"gap_count":        res.Coverage.GapCount(),
		"coverage_percent": res.Coverage.Overall.Percent,
		"readiness_score":  res.Readiness.Score,
		"verdict":          string(res.Readiness.Verdict),
	})
	logging.New("exporter").Info("export promoted",
		"project", res.Manifest.Metadata.Name,
		"out_dir", res.OutDir,
		"coverage", res.Coverage.Overall.Percent,
		"verdict", res.Readiness.Verdict,
	)
	return res, nil
}

// export returns a partially filled result alongside an error once planning
// succeeded, so failures can still be attributed to a project.
func (e *exporter) export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if req.OutDir == "" {
		return nil, fmt.Errorf("export: output directory is required")
	}
	if e.deps.Writer == nil {
		return nil, fmt.Errorf("export: no writer configured")
	}

	plan, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{Plan: *plan, OutDir: req.OutDir}

	if err := CheckCoverageThreshold(plan.Manifest.Metadata.Name, plan.Coverage, req.MinCoverage); err != nil {
		return res, err
	}

	files, rec, err := RenderExport(plan, req, e.tool())
	if err != nil {
		return res, err
	}
	res.Provenance = rec
	res.ExportID = ExportID(ChainDigests(chainInputFromFiles(files))[2])
	res.Files = sortedNames(files)

	if err := e.deps.Writer.Write(ctx, req.OutDir, files); err != nil {
		return res, fmt.Errorf("writing export: %w", err)
	}
	return res, nil
}

func chainInputFromFiles(files map[string][]byte) ChainInput {
	return ChainInput{
		Source:           files[models.FileSourceManifest],
		ArtifactManifest: files[models.FileArtifactManifest],
		DerivedResource:  files[models.FileProjectContext],
	}
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderExport renders every export document. Output depends only on the
// plan, the request and the tool identity, never on the clock.
func RenderExport(plan *Plan, req ExportRequest, tool models.ToolInfo) (map[string][]byte, *models.ProvenanceRecord, error) {
	m := plan.Manifest
	files := map[string][]byte{
		models.FileSourceManifest: req.Source,
	}

	am := models.ArtifactManifest{
		APIVersion:    models.ExportAPIVersion,
		Kind:          models.ArtifactManifestKind,
		Project:       m.Metadata.Name,
		EngineVersion: EngineVersion,
		Criticality:   m.Spec.Business.Criticality,
		Observability: plan.Observability,
		Targets:       m.Spec.Targets,
		Artifacts:     plan.Requirements,
	}
	amBytes, err := encodeYAML(am)
	if err != nil {
		return nil, nil, fmt.Errorf("rendering %s: %w", models.FileArtifactManifest, err)
	}
	files[models.FileArtifactManifest] = amBytes

	sourceDigest := ChainDigests(ChainInput{Source: req.Source})[0]
	pcBytes, err := encodeYAML(projectContext(plan, sourceDigest))
	if err != nil {
		return nil, nil, fmt.Errorf("rendering %s: %w", models.FileProjectContext, err)
	}
	files[models.FileProjectContext] = pcBytes

	chain := chainInputFromFiles(files)
	exportID := ExportID(ChainDigests(chain)[2])

	covBytes, err := encodeJSON(models.CoverageDocument{
		SchemaVersion:  models.ExportSchemaVersion,
		Project:        m.Metadata.Name,
		MinCoverage:    req.MinCoverage,
		CoverageReport: plan.Coverage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rendering %s: %w", models.FileCoverageReport, err)
	}
	files[models.FileCoverageReport] = covBytes

	var rec *models.ProvenanceRecord
	if req.EmitProvenance {
		r := EmitProvenance(chain, req.Git, tool, req.GeneratedAt)
		rec = &r
		provBytes, err := encodeJSON(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("rendering %s: %w", models.FileProvenance, err)
		}
		files[models.FileProvenance] = provBytes
	}

	names := append(sortedNames(files), models.FileOnboardingMetadata)
	sort.Strings(names)
	obBytes, err := encodeJSON(onboardingMetadata(plan, exportID, tool, names))
	if err != nil {
		return nil, nil, fmt.Errorf("rendering %s: %w", models.FileOnboardingMetadata, err)
	}
	files[models.FileOnboardingMetadata] = obBytes

	return files, rec, nil
}

func projectContext(plan *Plan, sourceDigest string) models.ProjectContext {
	m := plan.Manifest

	labels := maps.Clone(m.Metadata.Labels)
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[models.LabelCriticality] = string(m.Spec.Business.Criticality)
	if m.Spec.Business.Owner != "" {
		labels[models.LabelOwner] = m.Spec.Business.Owner
	}
	if m.Spec.Business.Value != "" {
		labels[models.LabelBusinessValue] = string(m.Spec.Business.Value)
	}
	annotations := maps.Clone(m.Metadata.Annotations)
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[models.AnnotationSourceDigest] = sourceDigest

	var objectives []string
	for _, o := range m.Strategy.Objectives {
		objectives = append(objectives, o.ID)
	}

	return models.ProjectContext{
		APIVersion: models.ExportAPIVersion,
		Kind:       models.ProjectContextKind,
		Metadata: models.ObjectMeta{
			Name:        m.Metadata.Name,
			Namespace:   m.Metadata.Namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: models.ProjectContextSpec{
			Project:       m.Spec.Project,
			Business:      m.Spec.Business,
			Requirements:  m.Spec.Requirements,
			Targets:       m.Spec.Targets,
			Risks:         m.Spec.Risks,
			Observability: plan.Observability,
			Objectives:    objectives,
		},
	}
}

func onboardingMetadata(plan *Plan, exportID string, tool models.ToolInfo, files []string) models.OnboardingMetadata {
	m := plan.Manifest

	types := make(map[models.ArtifactType]models.ArtifactTypeSchema, len(models.ArtifactTypes))
	for _, t := range models.ArtifactTypes {
		deps := append([]models.ArtifactType{}, ArtifactDependencies(t)...)
		types[t] = models.ArtifactTypeSchema{
			Description:   artifactDescriptions[t],
			ExpectedDepth: ExpectedDepth(t),
			DependsOn:     deps,
			RequiredCount: plan.Coverage.ByType[t].Required,
		}
	}

	gov := models.GovernanceExcerpt{FocusAreas: m.Guidance.Focus.Areas}
	for _, c := range m.Guidance.Constraints {
		gov.Constraints = append(gov.Constraints, models.ConstraintExcerpt{
			ID: c.ID, Rule: c.Rule, Severity: c.Severity, AppliesTo: c.AppliesTo,
		})
	}
	for _, q := range m.Guidance.Questions {
		if q.Status == models.QuestionOpen {
			gov.OpenQuestions = append(gov.OpenQuestions, q.ID+": "+q.Question)
		}
	}
	for _, o := range m.Strategy.Objectives {
		n := 0
		for _, t := range m.Strategy.Tactics {
			for _, ref := range t.LinkedObjectives {
				if ref == o.ID {
					n++
					break
				}
			}
		}
		gov.Objectives = append(gov.Objectives, models.ObjectiveExcerpt{ID: o.ID, Description: o.Description, TacticCount: n})
	}

	cov := plan.Coverage.Overall
	return models.OnboardingMetadata{
		SchemaVersion: models.ExportSchemaVersion,
		Project:       m.Metadata.Name,
		ExportID:      exportID,
		Tool:          tool,
		Files:         files,
		ArtifactTypes: types,
		Coverage: models.CoverageSummary{
			Percent:  cov.Percent,
			Required: cov.Required,
			Existing: cov.Existing,
			Waived:   cov.Waived,
			GapCount: len(cov.Gaps),
		},
		Readiness:  plan.Readiness,
		Governance: gov,
	}
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
