package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valter-silva-au/contextcore/internal/logging"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Gate 1 failure classes.
var (
	ErrStructuralIncompleteness = errors.New("export directory is structurally incomplete")
	ErrChecksumMismatch         = errors.New("checksum chain mismatch")
	ErrProvenanceMissing        = errors.New("provenance record missing")
	ErrProvenanceInconsistent   = errors.New("provenance record inconsistent")
	ErrMappingIncomplete        = errors.New("artifact mapping incomplete")
	ErrGapParity                = errors.New("gap counts disagree")
	ErrDesignCalibration        = errors.New("artifact depth off calibration")
)

// checkErrors maps each check id to the error class its failure reports.
var checkErrors = map[string]error{
	models.CheckStructuralIntegrity:   ErrStructuralIncompleteness,
	models.CheckChecksumChain:         ErrChecksumMismatch,
	models.CheckProvenanceConsistency: ErrProvenanceInconsistent,
	models.CheckMappingCompleteness:   ErrMappingIncomplete,
	models.CheckGapParity:             ErrGapParity,
	models.CheckDesignCalibration:     ErrDesignCalibration,
}

// Gate1Options tunes Gate 1.
type Gate1Options struct {
	// FailOnUnhealthy upgrades every warning to a failure.
	FailOnUnhealthy bool
	// RequireProvenance makes a missing provenance record a failure.
	RequireProvenance bool
}

// Gate1Checker runs the pre-ingestion integrity checks on an export directory.
type Gate1Checker interface {
	Check(ctx context.Context, exportDir string, opts Gate1Options) (*models.Gate1Report, error)
}

// gateCheck is one Gate 1 check.
type gateCheck interface {
	ID() string
	Blocking() bool
	Run(in *gateInput) models.GateResult
}

// gateInput is the loaded export shared by all checks.
type gateInput struct {
	bundle *models.ExportBundle
	opts   Gate1Options
}

type gate1Checker struct {
	reader BundleReader
	events EventLogger
	checks []gateCheck
}

// NewGate1Checker creates a Gate1Checker that loads exports with reader.
func NewGate1Checker(reader BundleReader, events EventLogger) Gate1Checker {
	return &gate1Checker{
		reader: reader,
		events: events,
		checks: []gateCheck{
			structuralIntegrity{},
			checksumChain{},
			provenanceConsistency{},
			mappingCompleteness{},
			gapParity{},
			designCalibration{},
		},
	}
}

// Check runs every check in order. A blocking failure does not stop later
// checks; every check is always reported.
func (g *gate1Checker) Check(ctx context.Context, exportDir string, opts Gate1Options) (*models.Gate1Report, error) {
	log := logging.New("gate1")

	bundle, err := g.reader.Read(exportDir)
	if err != nil {
		log.Warn("export directory unreadable", "dir", exportDir, "error", err)
		bundle = &models.ExportBundle{
			Dir:          exportDir,
			Raw:          map[string][]byte{},
			DecodeErrors: map[string]error{"": err},
		}
	}
	in := &gateInput{bundle: bundle, opts: opts}

	report := &models.Gate1Report{
		ExportDir:       exportDir,
		Status:          models.GatePass,
		FailOnUnhealthy: opts.FailOnUnhealthy,
	}
	for _, c := range g.checks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("gate 1 aborted before %s: %w", c.ID(), err)
		}
		res := c.Run(in)
		res.CheckID = c.ID()
		res.Blocking = c.Blocking()
		if opts.FailOnUnhealthy && res.Status == models.GateWarning {
			res.Status = models.GateFail
			res.Detail += " (warning upgraded by fail-on-unhealthy)"
		}
		if res.Status.Rank() > report.Status.Rank() {
			report.Status = res.Status
		}
		log.Debug("check finished", "check", res.CheckID, "status", res.Status)
		report.Results = append(report.Results, res)
	}

	var failed []string
	for _, r := range report.Results {
		if r.Status == models.GateFail {
			failed = append(failed, r.CheckID)
		}
	}
	project := ""
	if bundle.Source != nil {
		project = bundle.Source.Metadata.Name
	}
	recordEvent(g.events, EventGate1Completed, map[string]any{
		"export_dir":      exportDir,
		"project":         project,
		"status":          string(report.Status),
		"failed_checks":   failed,
		"checksum_failed": resultStatus(report.Results, models.CheckChecksumChain) == models.GateFail,
	})
	return report, nil
}

func resultStatus(results []models.GateResult, id string) models.GateStatus {
	for _, r := range results {
		if r.CheckID == id {
			return r.Status
		}
	}
	return ""
}

// GateFailedError reports the checks that failed in a gate run.
type GateFailedError struct {
	Gate   string
	Failed []string
	errs   []error
}

func (e *GateFailedError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Gate, strings.Join(e.Failed, ", "))
}

// Unwrap exposes the failure classes to errors.Is.
func (e *GateFailedError) Unwrap() []error { return e.errs }

// Gate1Err returns nil if no check failed, else a *GateFailedError that
// matches the failure class of every failed check under errors.Is.
func Gate1Err(r *models.Gate1Report) error {
	fe := &GateFailedError{Gate: "gate 1"}
	for _, res := range r.Results {
		if res.Status != models.GateFail {
			continue
		}
		fe.Failed = append(fe.Failed, res.CheckID)
		cls := checkErrors[res.CheckID]
		if strings.HasPrefix(res.Detail, detailNoProvenance) {
			cls = ErrProvenanceMissing
		}
		fe.errs = append(fe.errs, fmt.Errorf("%w: %s", cls, res.Detail))
	}
	if len(fe.Failed) == 0 {
		return nil
	}
	return fe
}

// detailNoProvenance prefixes every result caused by an absent record.
const detailNoProvenance = models.FileProvenance + " is missing"

func pass(detail string, evidence ...string) models.GateResult {
	return models.GateResult{Status: models.GatePass, Detail: detail, Evidence: evidence}
}

func warn(detail string, evidence ...string) models.GateResult {
	return models.GateResult{Status: models.GateWarning, Detail: detail, Evidence: evidence}
}

func fail(detail string, evidence ...string) models.GateResult {
	return models.GateResult{Status: models.GateFail, Detail: detail, Evidence: evidence}
}

// structuralIntegrity requires every export file to be present and
// parseable, including the copied source manifest.
type structuralIntegrity struct{}

func (structuralIntegrity) ID() string     { return models.CheckStructuralIntegrity }
func (structuralIntegrity) Blocking() bool { return true }

func (structuralIntegrity) Run(in *gateInput) models.GateResult {
	b := in.bundle
	var problems []string

	if err, ok := b.DecodeErrors[""]; ok {
		problems = append(problems, err.Error())
	}
	for _, name := range models.RequiredExportFiles {
		if !b.Has(name) {
			problems = append(problems, name+" is missing")
			continue
		}
		if err, ok := b.DecodeErrors[name]; ok {
			problems = append(problems, fmt.Sprintf("%s does not parse: %v", name, err))
		}
	}
	if err, ok := b.DecodeErrors[models.FileProvenance]; ok {
		problems = append(problems, fmt.Sprintf("%s does not parse: %v", models.FileProvenance, err))
	}

	if raw, ok := b.Raw[models.FileSourceManifest]; ok {
		m, err := ParseManifest(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s does not parse: %v", models.FileSourceManifest, err))
		} else {
			b.Source = m
		}
	}

	if len(problems) > 0 {
		return fail(fmt.Sprintf("%d structural problems", len(problems)), problems...)
	}
	return pass(fmt.Sprintf("%d required files present and parseable", len(models.RequiredExportFiles)))
}

// checksumChain recomputes the chain from on-disk bytes.
type checksumChain struct{}

func (checksumChain) ID() string     { return models.CheckChecksumChain }
func (checksumChain) Blocking() bool { return true }

func (checksumChain) Run(in *gateInput) models.GateResult {
	b := in.bundle
	if !b.Has(models.FileProvenance) {
		if in.opts.RequireProvenance {
			return fail(detailNoProvenance + " and provenance is required")
		}
		return warn(detailNoProvenance + "; checksum chain not verified")
	}
	if b.Provenance == nil {
		return fail(models.FileProvenance + " does not parse; checksum chain not verified")
	}

	var missing []string
	for _, name := range []string{models.FileSourceManifest, models.FileArtifactManifest, models.FileProjectContext} {
		if !b.Has(name) {
			missing = append(missing, name+" is missing")
		}
	}
	if len(missing) > 0 {
		return fail("cannot recompute checksum chain", missing...)
	}

	mismatches := VerifyChain(b.Provenance, ChainInput{
		Source:           b.Raw[models.FileSourceManifest],
		ArtifactManifest: b.Raw[models.FileArtifactManifest],
		DerivedResource:  b.Raw[models.FileProjectContext],
	})
	if len(mismatches) > 0 {
		evidence := make([]string, len(mismatches))
		for i, mm := range mismatches {
			evidence[i] = fmt.Sprintf("%s: recorded %s, recomputed %s", mm.Name, mm.Recorded, mm.Recomputed)
		}
		return fail(fmt.Sprintf("%d of 3 chain links do not match", len(mismatches)), evidence...)
	}

	head := b.Provenance.Chain[len(b.Provenance.Chain)-1]
	return pass("checksum chain verified", fmt.Sprintf("%s: %s", head.Name, head.Digest))
}

// provenanceConsistency checks the provenance record's own metadata.
type provenanceConsistency struct{}

func (provenanceConsistency) ID() string     { return models.CheckProvenanceConsistency }
func (provenanceConsistency) Blocking() bool { return true }

func (provenanceConsistency) Run(in *gateInput) models.GateResult {
	b := in.bundle
	if !b.Has(models.FileProvenance) {
		if in.opts.RequireProvenance {
			return fail(detailNoProvenance + " and provenance is required")
		}
		return warn(detailNoProvenance + "; nothing to check")
	}
	if b.Provenance == nil {
		return fail(models.FileProvenance + " does not parse")
	}

	issues := ProvenanceIssues(b.Provenance)
	if b.Onboarding != nil && b.Onboarding.ExportID != b.Provenance.ExportID {
		issues = append(issues, fmt.Sprintf("onboarding export id %s differs from provenance export id %s",
			b.Onboarding.ExportID, b.Provenance.ExportID))
	}
	if len(issues) > 0 {
		return fail(fmt.Sprintf("%d provenance issues", len(issues)), issues...)
	}
	if b.Provenance.Git.Commit == "" {
		return pass("provenance consistent; no git commit recorded")
	}
	return pass("provenance consistent", "commit "+b.Provenance.Git.Commit)
}

// mappingIssues compares manifest targets with exported artifacts.
func mappingIssues(m *models.Manifest, am *models.ArtifactManifest) []string {
	var issues []string

	declared := make(map[string]bool, len(m.Spec.Targets))
	for _, t := range m.Spec.Targets {
		declared[t.Name] = true
	}
	required := make(map[string]int)
	for _, a := range am.Artifacts {
		if !declared[a.Target] {
			issues = append(issues, fmt.Sprintf("artifact %s references unknown target %q", a.ID, a.Target))
		}
		if !models.IsValidArtifactType(a.Type) {
			issues = append(issues, fmt.Sprintf("artifact %s has unknown type %q", a.ID, a.Type))
		}
		if a.ID != models.ArtifactID(a.Target, a.Type) {
			issues = append(issues, fmt.Sprintf("artifact id %q does not match %s", a.ID, models.ArtifactID(a.Target, a.Type)))
		}
		if a.Required {
			required[a.Target]++
		}
	}
	for _, t := range m.Spec.Targets {
		if required[t.Name] == 0 {
			issues = append(issues, fmt.Sprintf("target %q has no required artifact", t.Name))
		}
	}
	return issues
}

// mappingCompleteness requires every target to map to required artifacts
// and every artifact to map to a declared target.
type mappingCompleteness struct{}

func (mappingCompleteness) ID() string     { return models.CheckMappingCompleteness }
func (mappingCompleteness) Blocking() bool { return true }

func (mappingCompleteness) Run(in *gateInput) models.GateResult {
	b := in.bundle
	if b.Source == nil || b.ArtifactManifest == nil {
		return fail("cannot evaluate: source manifest or artifact manifest unavailable")
	}
	if issues := mappingIssues(b.Source, b.ArtifactManifest); len(issues) > 0 {
		return fail(fmt.Sprintf("%d mapping issues", len(issues)), issues...)
	}
	return pass(fmt.Sprintf("%d targets mapped to %d artifacts", len(b.Source.Spec.Targets), len(b.ArtifactManifest.Artifacts)))
}

// gapParity requires three independently obtained gap counts to agree.
type gapParity struct{}

func (gapParity) ID() string     { return models.CheckGapParity }
func (gapParity) Blocking() bool { return true }

func (gapParity) Run(in *gateInput) models.GateResult {
	b := in.bundle
	if b.Coverage == nil || b.ArtifactManifest == nil || b.Onboarding == nil {
		return fail("cannot evaluate: coverage report, artifact manifest or onboarding metadata unavailable")
	}

	reported := len(b.Coverage.Overall.Gaps)
	derived := 0
	for _, a := range b.ArtifactManifest.Artifacts {
		if !a.Counted() {
			continue
		}
		if _, ok := b.Coverage.Existing[a.ID]; !ok {
			derived++
		}
	}
	summary := b.Onboarding.Coverage.GapCount

	evidence := []string{
		fmt.Sprintf("coverage report: %d", reported),
		fmt.Sprintf("artifact manifest minus existing: %d", derived),
		fmt.Sprintf("onboarding summary: %d", summary),
	}
	if reported != derived || derived != summary {
		return fail("gap counts disagree", evidence...)
	}
	return pass(fmt.Sprintf("%d gaps in all three sources", reported), evidence...)
}

// designCalibration compares artifact tiers with the expected-depth table.
type designCalibration struct{}

func (designCalibration) ID() string     { return models.CheckDesignCalibration }
func (designCalibration) Blocking() bool { return false }

func (designCalibration) Run(in *gateInput) models.GateResult {
	b := in.bundle
	if b.ArtifactManifest == nil {
		return warn("cannot evaluate: artifact manifest unavailable")
	}
	var off []string
	for _, a := range b.ArtifactManifest.Artifacts {
		if !a.Required {
			continue
		}
		if want := ExpectedDepth(a.Type); a.Tier != want {
			off = append(off, fmt.Sprintf("%s is %s, expected %s", a.ID, a.Tier, want))
		}
	}
	if len(off) > 0 {
		return warn(fmt.Sprintf("%d artifacts off calibration", len(off)), off...)
	}
	return pass("all required artifacts match expected depth")
}
