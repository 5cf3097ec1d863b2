package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// CrossReferenceError reports an id that is duplicated, dangling or
// otherwise inconsistent with the rest of the manifest.
type CrossReferenceError struct {
	Path    string
	Subject string
	Message string
}

func (e *CrossReferenceError) Error() string {
	return e.Path + ": " + e.Message
}

// ValidationResult is the outcome of validating a manifest. Errors holds
// SchemaError and *CrossReferenceError values; Warnings are advisory unless
// strict mode promoted them.
type ValidationResult struct {
	Errors   []error
	Warnings []string
}

// Valid reports whether no error was found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// CrossReferenceErrors returns only the cross-reference errors.
func (r ValidationResult) CrossReferenceErrors() []*CrossReferenceError {
	var out []*CrossReferenceError
	for _, err := range r.Errors {
		var xref *CrossReferenceError
		if errors.As(err, &xref) {
			out = append(out, xref)
		}
	}
	return out
}

// Err aggregates every error into one, or returns nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		msgs[i] = err.Error()
	}
	return &ManifestInvalidError{
		Errors: r.Errors,
		msg:    fmt.Sprintf("manifest validation failed:\n  - %s", strings.Join(msgs, "\n  - ")),
	}
}

// ManifestInvalidError is returned when a manifest fails validation.
type ManifestInvalidError struct {
	Errors []error
	msg    string
}

func (e *ManifestInvalidError) Error() string { return e.msg }

// Unwrap exposes the individual validation errors to errors.As.
func (e *ManifestInvalidError) Unwrap() []error { return e.Errors }

// ValidateDocument parses raw YAML and validates it. A document that fails
// the schema yields a nil manifest and its schema errors in the result.
func ValidateDocument(raw []byte, strict bool) (*models.Manifest, ValidationResult) {
	m, err := ParseManifest(raw)
	if err != nil {
		var res ValidationResult
		var schemaErrs SchemaErrors
		if errors.As(err, &schemaErrs) {
			for _, se := range schemaErrs {
				res.Errors = append(res.Errors, se)
			}
		} else {
			res.Errors = append(res.Errors, err)
		}
		return nil, res
	}
	return m, ValidateManifest(m, strict)
}

// ValidateManifest runs the schema pass and then the cross-reference pass.
// In strict mode every warning is promoted to an error.
func ValidateManifest(m *models.Manifest, strict bool) ValidationResult {
	var res ValidationResult

	var schemaErrs SchemaErrors
	if err := checkV1Alpha2(m); errors.As(err, &schemaErrs) {
		for _, se := range schemaErrs {
			res.Errors = append(res.Errors, se)
		}
	}

	for _, xref := range crossReferences(m) {
		res.Errors = append(res.Errors, xref)
	}
	res.Warnings = advisories(m)

	if strict {
		for _, w := range res.Warnings {
			res.Errors = append(res.Errors, fmt.Errorf("strict: %s", w))
		}
	}
	return res
}

// idSet records first-seen ids and reports duplicates.
type idSet struct {
	seen map[string]bool
	errs *[]*CrossReferenceError
	kind string
}

func newIDSet(kind string, errs *[]*CrossReferenceError) *idSet {
	return &idSet{seen: make(map[string]bool), errs: errs, kind: kind}
}

func (s *idSet) add(path, id string) {
	if id == "" {
		return
	}
	if s.seen[id] {
		*s.errs = append(*s.errs, &CrossReferenceError{
			Path:    path,
			Subject: id,
			Message: fmt.Sprintf("duplicate %s id %q", s.kind, id),
		})
		return
	}
	s.seen[id] = true
}

func (s *idSet) has(id string) bool { return s.seen[id] }

func crossReferences(m *models.Manifest) []*CrossReferenceError {
	var errs []*CrossReferenceError

	targets := newIDSet("target", &errs)
	for i, t := range m.Spec.Targets {
		targets.add(fmt.Sprintf("spec.targets[%d].name", i), t.Name)
	}
	risks := newIDSet("risk", &errs)
	for i, r := range m.Spec.Risks {
		risks.add(fmt.Sprintf("spec.risks[%d].id", i), r.ID)
	}

	waived := make(map[string]bool)
	for i, w := range m.Spec.Observability.Waivers {
		path := fmt.Sprintf("spec.observability.waivers[%d]", i)
		if w.Target != "" && !targets.has(w.Target) {
			errs = append(errs, &CrossReferenceError{
				Path:    path + ".target",
				Subject: w.Target,
				Message: fmt.Sprintf("waiver references unknown target %q", w.Target),
			})
		}
		id := models.ArtifactID(w.Target, w.Type)
		if waived[id] {
			errs = append(errs, &CrossReferenceError{
				Path:    path,
				Subject: id,
				Message: fmt.Sprintf("duplicate waiver for %q", id),
			})
		}
		waived[id] = true
	}

	objectives := newIDSet("objective", &errs)
	for i, o := range m.Strategy.Objectives {
		objectives.add(fmt.Sprintf("strategy.objectives[%d].id", i), o.ID)
	}
	tactics := newIDSet("tactic", &errs)
	for i, t := range m.Strategy.Tactics {
		path := fmt.Sprintf("strategy.tactics[%d]", i)
		tactics.add(path+".id", t.ID)
		if t.Status == models.TacticBlocked && strings.TrimSpace(t.BlockedReason) == "" {
			errs = append(errs, &CrossReferenceError{
				Path:    path + ".blockedReason",
				Subject: t.ID,
				Message: fmt.Sprintf("tactic %q is blocked but has no blockedReason", t.ID),
			})
		}
		for j, ref := range t.LinkedObjectives {
			if !objectives.has(ref) {
				errs = append(errs, &CrossReferenceError{
					Path:    fmt.Sprintf("%s.linkedObjectives[%d]", path, j),
					Subject: t.ID,
					Message: fmt.Sprintf("tactic %q links unknown objective %q", t.ID, ref),
				})
			}
		}
	}

	constraints := newIDSet("constraint", &errs)
	for i, c := range m.Guidance.Constraints {
		path := fmt.Sprintf("guidance.constraints[%d]", i)
		constraints.add(path+".id", c.ID)
		for j, ref := range c.AppliesTo {
			if !targets.has(ref) && !models.IsValidArtifactType(models.ArtifactType(ref)) {
				errs = append(errs, &CrossReferenceError{
					Path:    fmt.Sprintf("%s.appliesTo[%d]", path, j),
					Subject: c.ID,
					Message: fmt.Sprintf("constraint %q applies to %q, which is neither a target nor an artifact type", c.ID, ref),
				})
			}
		}
	}
	preferences := newIDSet("preference", &errs)
	for i, p := range m.Guidance.Preferences {
		preferences.add(fmt.Sprintf("guidance.preferences[%d].id", i), p.ID)
	}
	questions := newIDSet("question", &errs)
	for i, q := range m.Guidance.Questions {
		questions.add(fmt.Sprintf("guidance.questions[%d].id", i), q.ID)
	}

	insights := newIDSet("insight", &errs)
	for i, in := range m.Insights {
		path := fmt.Sprintf("insights[%d]", i)
		insights.add(path+".id", in.ID)
		for j, ref := range in.RelatedObjectives {
			if !objectives.has(ref) {
				errs = append(errs, &CrossReferenceError{
					Path:    fmt.Sprintf("%s.relatedObjectives[%d]", path, j),
					Subject: in.ID,
					Message: fmt.Sprintf("insight %q references unknown objective %q", in.ID, ref),
				})
			}
		}
		for j, ref := range in.RelatedTactics {
			if !tactics.has(ref) {
				errs = append(errs, &CrossReferenceError{
					Path:    fmt.Sprintf("%s.relatedTactics[%d]", path, j),
					Subject: in.ID,
					Message: fmt.Sprintf("insight %q references unknown tactic %q", in.ID, ref),
				})
			}
		}
	}

	return errs
}

// advisories returns non-fatal findings in document order.
func advisories(m *models.Manifest) []string {
	var warnings []string

	for i, r := range m.Spec.Risks {
		if strings.TrimSpace(r.Mitigation) == "" {
			warnings = append(warnings, fmt.Sprintf("spec.risks[%d]: risk %q has no mitigation", i, r.ID))
		}
	}

	declared := make(map[string]bool, len(m.Spec.Targets))
	for _, t := range m.Spec.Targets {
		declared[t.Name] = true
	}
	for i, w := range m.Spec.Observability.Waivers {
		if declared[w.Target] && !artifactRequired(m, w.Target, w.Type) {
			warnings = append(warnings, fmt.Sprintf(
				"spec.observability.waivers[%d]: %s is not required, waiver has no effect",
				i, models.ArtifactID(w.Target, w.Type),
			))
		}
	}

	linked := make(map[string]bool)
	for _, t := range m.Strategy.Tactics {
		for _, ref := range t.LinkedObjectives {
			linked[ref] = true
		}
	}
	for i, o := range m.Strategy.Objectives {
		if !linked[o.ID] {
			warnings = append(warnings, fmt.Sprintf("strategy.objectives[%d]: objective %q has no tactic", i, o.ID))
		}
	}

	for i, q := range m.Guidance.Questions {
		if q.Status == models.QuestionOpen {
			warnings = append(warnings, fmt.Sprintf("guidance.questions[%d]: question %q is still open", i, q.ID))
		}
	}

	return warnings
}

// artifactRequired reports whether the named target requires artifact type t.
func artifactRequired(m *models.Manifest, target string, t models.ArtifactType) bool {
	for _, tgt := range m.Spec.Targets {
		if tgt.Name != target {
			continue
		}
		for _, need := range DeriveArtifactNeeds(m, tgt) {
			if need.Type == t {
				return need.Required
			}
		}
	}
	return false
}
