package models

// Export directory layout.
const (
	FileSourceManifest     = "source-manifest.yaml"
	FileArtifactManifest   = "artifact-manifest.yaml"
	FileProjectContext     = "project-context.yaml"
	FileCoverageReport     = "coverage-report.json"
	FileOnboardingMetadata = "onboarding-metadata.json"
	FileProvenance         = "provenance.json"
)

// RequiredExportFiles are the files every export directory must contain.
// provenance.json is optional and checked separately.
var RequiredExportFiles = []string{
	FileSourceManifest,
	FileArtifactManifest,
	FileProjectContext,
	FileCoverageReport,
	FileOnboardingMetadata,
}

// Document identifiers written into export files.
const (
	ExportAPIVersion       = "contextcore.io/v1"
	ArtifactManifestKind   = "ArtifactManifest"
	ProjectContextKind     = "ProjectContext"
	ExportSchemaVersion    = "1.0"
	LabelCriticality       = "contextcore.io/criticality"
	LabelOwner             = "contextcore.io/owner"
	LabelBusinessValue     = "contextcore.io/business-value"
	AnnotationSourceDigest = "contextcore.io/source-digest"
)

// ArtifactManifest is the ordered list of required artifacts plus the
// derived observability configuration, as written to artifact-manifest.yaml.
type ArtifactManifest struct {
	APIVersion    string                `yaml:"apiVersion"`
	Kind          string                `yaml:"kind"`
	Project       string                `yaml:"project"`
	EngineVersion string                `yaml:"engineVersion"`
	Criticality   Criticality           `yaml:"criticality"`
	Observability ObservabilityConfig   `yaml:"observability"`
	Targets       []Target              `yaml:"targets"`
	Artifacts     []ArtifactRequirement `yaml:"artifacts"`
}

// ProjectContextSpec is the body of the derived ProjectContext resource.
type ProjectContextSpec struct {
	Project       ProjectIdentity     `yaml:"project"`
	Business      BusinessContext     `yaml:"business"`
	Requirements  Requirements        `yaml:"requirements,omitempty"`
	Targets       []Target            `yaml:"targets"`
	Risks         []Risk              `yaml:"risks,omitempty"`
	Observability ObservabilityConfig `yaml:"observability"`
	Objectives    []string            `yaml:"objectives,omitempty"`
}

// ProjectContext is the derived resource document written to
// project-context.yaml.
type ProjectContext struct {
	APIVersion string             `yaml:"apiVersion"`
	Kind       string             `yaml:"kind"`
	Metadata   ObjectMeta         `yaml:"metadata"`
	Spec       ProjectContextSpec `yaml:"spec"`
}

// CoverageDocument is the content of coverage-report.json.
type CoverageDocument struct {
	SchemaVersion string  `json:"schema_version"`
	Project       string  `json:"project"`
	MinCoverage   float64 `json:"min_coverage"`
	CoverageReport
}

// ArtifactTypeSchema describes one artifact type for downstream consumers.
type ArtifactTypeSchema struct {
	Description   string         `json:"description"`
	ExpectedDepth DepthTier      `json:"expected_depth"`
	DependsOn     []ArtifactType `json:"depends_on"`
	RequiredCount int            `json:"required_count"`
}

// CoverageSummary is the coverage excerpt carried in onboarding metadata.
type CoverageSummary struct {
	Percent  float64 `json:"percent"`
	Required int     `json:"required"`
	Existing int     `json:"existing"`
	Waived   int     `json:"waived"`
	GapCount int     `json:"gap_count"`
}

// ConstraintExcerpt is a governance constraint surfaced to consumers.
type ConstraintExcerpt struct {
	ID        string             `json:"id"`
	Rule      string             `json:"rule"`
	Severity  ConstraintSeverity `json:"severity"`
	AppliesTo []string           `json:"applies_to,omitempty"`
}

// ObjectiveExcerpt is a strategic objective surfaced to consumers.
type ObjectiveExcerpt struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	TacticCount int    `json:"tactic_count"`
}

// GovernanceExcerpt carries the governance context a consumer must respect.
type GovernanceExcerpt struct {
	FocusAreas    []string            `json:"focus_areas,omitempty"`
	Constraints   []ConstraintExcerpt `json:"constraints,omitempty"`
	OpenQuestions []string            `json:"open_questions,omitempty"`
	Objectives    []ObjectiveExcerpt  `json:"objectives,omitempty"`
}

// OnboardingMetadata is the content of onboarding-metadata.json.
type OnboardingMetadata struct {
	SchemaVersion string                              `json:"schema_version"`
	Project       string                              `json:"project"`
	ExportID      string                              `json:"export_id"`
	Tool          ToolInfo                            `json:"tool"`
	Files         []string                            `json:"files"`
	ArtifactTypes map[ArtifactType]ArtifactTypeSchema `json:"artifact_types"`
	Coverage      CoverageSummary                     `json:"coverage"`
	Readiness     Readiness                           `json:"readiness"`
	Governance    GovernanceExcerpt                   `json:"governance"`
}

// ExportBundle is an export directory loaded back from disk. Raw holds the
// exact on-disk bytes of each file that exists; decode failures are kept per
// file so structural checks can report them all.
type ExportBundle struct {
	Dir              string
	Raw              map[string][]byte
	DecodeErrors     map[string]error
	Source           *Manifest
	ArtifactManifest *ArtifactManifest
	ProjectContext   *ProjectContext
	Coverage         *CoverageDocument
	Onboarding       *OnboardingMetadata
	Provenance       *ProvenanceRecord
}

// Has reports whether the named file was present on disk.
func (b *ExportBundle) Has(name string) bool {
	_, ok := b.Raw[name]
	return ok
}
