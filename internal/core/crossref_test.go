package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

const blockedTacticManifest = `apiVersion: contextcore.io/v1alpha2
kind: ProjectManifest
metadata:
  name: search
spec:
  project:
    id: search
  business:
    criticality: medium
    owner: search-team
  targets:
    - kind: Deployment
      name: search-api
strategy:
  objectives:
    - id: obj-latency
      description: Halve p99 latency
  tactics:
    - id: tac-cache
      description: Add a result cache
      status: blocked
      linkedObjectives: [obj-latency]
`

// --- Blocked tactics ---

func TestValidateDocument_BlockedTacticWithoutReason(t *testing.T) {
	m, res := ValidateDocument([]byte(blockedTacticManifest), false)
	if m == nil {
		t.Fatalf("manifest failed the schema pass: %v", res.Errors)
	}

	xrefs := res.CrossReferenceErrors()
	if len(xrefs) != 1 {
		t.Fatalf("got %d cross-reference errors, want 1: %v", len(xrefs), res.Errors)
	}
	if xrefs[0].Subject != "tac-cache" {
		t.Errorf("Subject = %q, want %q", xrefs[0].Subject, "tac-cache")
	}
	if !strings.Contains(xrefs[0].Error(), "tac-cache") {
		t.Errorf("error %q does not name the tactic", xrefs[0])
	}
	if len(res.Errors) != 1 {
		t.Errorf("got %d errors in total, want 1: %v", len(res.Errors), res.Errors)
	}

	err := res.Err()
	var invalid *ManifestInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("Err() = %v, want *ManifestInvalidError", err)
	}
	var xref *CrossReferenceError
	if !errors.As(err, &xref) {
		t.Error("Err() does not unwrap to *CrossReferenceError")
	}
}

func TestValidateDocument_BlockedTacticWithReasonIsValid(t *testing.T) {
	raw := strings.Replace(blockedTacticManifest, "status: blocked\n",
		"status: blocked\n      blockedReason: waiting on the cache cluster\n", 1)

	_, res := ValidateDocument([]byte(raw), false)
	if !res.Valid() {
		t.Errorf("expected valid manifest, got %v", res.Errors)
	}
}

// --- Cross references ---

func TestValidateManifest_CrossReferences(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(m *models.Manifest)
		wantSubject string
		wantMessage string
	}{
		{
			name: "duplicate target",
			mutate: func(m *models.Manifest) {
				m.Spec.Targets = append(m.Spec.Targets, m.Spec.Targets[0])
			},
			wantSubject: "ledger-db",
			wantMessage: "duplicate target",
		},
		{
			name: "tactic links unknown objective",
			mutate: func(m *models.Manifest) {
				m.Strategy.Tactics[0].LinkedObjectives = []string{"obj-9"}
			},
			wantSubject: "tac-1",
			wantMessage: `unknown objective "obj-9"`,
		},
		{
			name: "waiver for unknown target",
			mutate: func(m *models.Manifest) {
				m.Spec.Observability.Waivers = []models.Waiver{{Target: "ghost", Type: models.ArtifactDashboard, Reason: "n/a"}}
			},
			wantSubject: "ghost",
			wantMessage: "unknown target",
		},
		{
			name: "constraint applies to nothing",
			mutate: func(m *models.Manifest) {
				m.Guidance.Constraints[0].AppliesTo = []string{"mainframe"}
			},
			wantSubject: "c-1",
			wantMessage: "neither a target nor an artifact type",
		},
		{
			name: "insight references unknown tactic",
			mutate: func(m *models.Manifest) {
				m.Insights[0].RelatedTactics = []string{"tac-9"}
			},
			wantSubject: "i-1",
			wantMessage: `unknown tactic "tac-9"`,
		},
		{
			name: "duplicate objective",
			mutate: func(m *models.Manifest) {
				m.Strategy.Objectives = append(m.Strategy.Objectives, m.Strategy.Objectives[0])
			},
			wantSubject: "obj-1",
			wantMessage: "duplicate objective",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustParse(t, strategyManifest)
			tt.mutate(m)

			xrefs := ValidateManifest(m, false).CrossReferenceErrors()
			if len(xrefs) != 1 {
				t.Fatalf("got %d cross-reference errors, want 1: %v", len(xrefs), xrefs)
			}
			if xrefs[0].Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", xrefs[0].Subject, tt.wantSubject)
			}
			if !strings.Contains(xrefs[0].Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", xrefs[0].Message, tt.wantMessage)
			}
		})
	}
}

func TestValidateManifest_ConstraintMayNameArtifactType(t *testing.T) {
	m := mustParse(t, strategyManifest)
	m.Guidance.Constraints[0].AppliesTo = []string{"runbook", "ledger-api"}

	if res := ValidateManifest(m, false); !res.Valid() {
		t.Errorf("expected valid manifest, got %v", res.Errors)
	}
}

// --- Advisories and strict mode ---

func TestValidateManifest_Advisories(t *testing.T) {
	m := mustParse(t, strategyManifest)
	m.Spec.Risks[0].Mitigation = ""
	m.Strategy.Objectives = append(m.Strategy.Objectives, models.Objective{ID: "obj-2", Description: "Audit trail"})
	m.Guidance.Questions[0].Status = models.QuestionOpen

	res := ValidateManifest(m, false)
	if !res.Valid() {
		t.Fatalf("advisories must not be errors: %v", res.Errors)
	}
	for _, want := range []string{"has no mitigation", `objective "obj-2" has no tactic`, "still open"} {
		if !containsAny(res.Warnings, want) {
			t.Errorf("warnings %v do not mention %q", res.Warnings, want)
		}
	}
}

func TestValidateManifest_WaiverOnOptionalArtifactWarns(t *testing.T) {
	m := mustParse(t, checkoutManifest)
	m.Spec.Observability.Waivers = []models.Waiver{{
		Target: "checkout-api", Type: models.ArtifactNotificationPolicy, Reason: "no risks yet",
	}}

	res := ValidateManifest(m, false)
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if !containsAny(res.Warnings, "waiver has no effect") {
		t.Errorf("warnings %v do not flag the ineffective waiver", res.Warnings)
	}
}

func TestValidateManifest_StrictPromotesWarnings(t *testing.T) {
	m := mustParse(t, strategyManifest)
	m.Spec.Risks[0].Mitigation = ""

	if res := ValidateManifest(m, false); !res.Valid() {
		t.Fatalf("non-strict run must be valid: %v", res.Errors)
	}
	res := ValidateManifest(m, true)
	if res.Valid() {
		t.Fatal("strict run must turn the warning into an error")
	}
	if !strings.HasPrefix(res.Errors[0].Error(), "strict: ") {
		t.Errorf("Errors[0] = %q, want strict prefix", res.Errors[0])
	}
}

func TestValidateDocument_SchemaFailureReturnsNilManifest(t *testing.T) {
	raw := strings.Replace(checkoutManifest, "criticality: critical", "criticality: extreme", 1)

	m, res := ValidateDocument([]byte(raw), false)
	if m != nil {
		t.Error("expected nil manifest for a schema failure")
	}
	if res.Valid() {
		t.Fatal("expected errors")
	}
	var se SchemaError
	if !errors.As(res.Errors[0], &se) {
		t.Errorf("Errors[0] = %T, want SchemaError", res.Errors[0])
	}
	if len(res.CrossReferenceErrors()) != 0 {
		t.Error("cross-reference pass must not run after a schema failure")
	}
}

func TestRecordValidation(t *testing.T) {
	events := &fakeEventLog{}
	m, res := ValidateDocument([]byte(blockedTacticManifest), false)

	RecordValidation(events, "manifest.yaml", m, res)

	ev := events.ofType(EventValidateCompleted)
	if len(ev) != 1 {
		t.Fatalf("got %d validate events, want 1", len(ev))
	}
	if ev[0].Data["valid"] != false || ev[0].Data["xref_errors"] != 1 || ev[0].Data["project"] != m.Metadata.Name {
		t.Errorf("event data = %+v", ev[0].Data)
	}

	RecordValidation(nil, "manifest.yaml", m, res)
}
