package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/valter-silva-au/contextcore/internal/logging"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Gate2Options names the directories downstream layers wrote to. Either
// may be empty, in which case the questions depending on it are not
// evaluated.
type Gate2Options struct {
	IngestionDir string
	ExecutionDir string
}

// Gate2Checker answers the three post-ingestion questions.
type Gate2Checker interface {
	Check(ctx context.Context, exportDir string, opts Gate2Options) (*models.Gate2Report, error)
}

type gate2Checker struct {
	reader BundleReader
	inputs GateInputReader
	events EventLogger
}

// NewGate2Checker creates a Gate2Checker.
func NewGate2Checker(reader BundleReader, inputs GateInputReader, events EventLogger) Gate2Checker {
	return &gate2Checker{reader: reader, inputs: inputs, events: events}
}

var gate2Questions = map[string]string{
	models.QuestionContractComplete:     "Is the exported contract complete?",
	models.QuestionFaithfullyTranslated: "Was the contract faithfully translated into a plan?",
	models.QuestionFaithfullyExecuted:   "Was the plan faithfully executed?",
}

func answer(id string, a models.Answer, evidence ...string) models.QuestionResult {
	return models.QuestionResult{ID: id, Question: gate2Questions[id], Answer: a, Evidence: evidence}
}

// skipped marks a question not evaluated because an earlier one was not
// answered yes.
func skipped(id string, prev models.QuestionResult) models.QuestionResult {
	return answer(id, models.AnswerNotEvaluated,
		fmt.Sprintf("skipped: %s answered %s", prev.ID, prev.Answer))
}

// Check evaluates the questions strictly in order. A question is only
// evaluated when the one before it answered yes; otherwise it and every
// later question are not_evaluated.
func (g *gate2Checker) Check(ctx context.Context, exportDir string, opts Gate2Options) (*models.Gate2Report, error) {
	report := &models.Gate2Report{
		ExportDir:    exportDir,
		IngestionDir: opts.IngestionDir,
		ExecutionDir: opts.ExecutionDir,
	}

	q1, am := g.contractComplete(exportDir)
	report.Questions = append(report.Questions, q1)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate 2 aborted: %w", err)
	}
	var q2 models.QuestionResult
	var taskCount int
	if q1.Answer != models.AnswerYes {
		q2 = skipped(models.QuestionFaithfullyTranslated, q1)
	} else {
		q2, taskCount = g.faithfullyTranslated(ctx, am, opts.IngestionDir)
	}
	report.Questions = append(report.Questions, q2)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate 2 aborted: %w", err)
	}
	var q3 models.QuestionResult
	if q2.Answer != models.AnswerYes {
		q3 = skipped(models.QuestionFaithfullyExecuted, q2)
	} else {
		q3 = g.faithfullyExecuted(ctx, taskCount, opts.ExecutionDir)
	}
	report.Questions = append(report.Questions, q3)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate 2 aborted: %w", err)
	}

	report.Healthy = true
	shortCircuited := false
	for i, q := range report.Questions {
		if q.Answer == models.AnswerNo {
			report.Healthy = false
			if i < len(report.Questions)-1 {
				shortCircuited = true
			}
		}
	}

	logging.New("gate2").Debug("questions answered", "q1", q1.Answer, "q2", q2.Answer, "q3", q3.Answer)
	project := ""
	if am != nil {
		project = am.Project
	}
	recordEvent(g.events, EventGate2Completed, map[string]any{
		"export_dir":      exportDir,
		"project":         project,
		"healthy":         report.Healthy,
		"short_circuited": shortCircuited,
		"answers":         []string{string(q1.Answer), string(q2.Answer), string(q3.Answer)},
	})
	return report, nil
}

// contractComplete is yes when the export loads and every target maps to
// required artifacts.
func (g *gate2Checker) contractComplete(exportDir string) (models.QuestionResult, *models.ArtifactManifest) {
	id := models.QuestionContractComplete
	b, err := g.reader.Read(exportDir)
	if err != nil {
		return answer(id, models.AnswerNo, err.Error()), nil
	}
	if b.ArtifactManifest == nil {
		reason := models.FileArtifactManifest + " is missing"
		if derr, ok := b.DecodeErrors[models.FileArtifactManifest]; ok {
			reason = fmt.Sprintf("%s does not parse: %v", models.FileArtifactManifest, derr)
		}
		return answer(id, models.AnswerNo, reason), nil
	}
	raw, ok := b.Raw[models.FileSourceManifest]
	if !ok {
		return answer(id, models.AnswerNo, models.FileSourceManifest+" is missing"), b.ArtifactManifest
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return answer(id, models.AnswerNo, fmt.Sprintf("%s does not parse: %v", models.FileSourceManifest, err)), b.ArtifactManifest
	}
	if issues := mappingIssues(m, b.ArtifactManifest); len(issues) > 0 {
		return answer(id, models.AnswerNo, issues...), b.ArtifactManifest
	}
	return answer(id, models.AnswerYes,
		fmt.Sprintf("%d targets, %d artifacts", len(m.Spec.Targets), len(b.ArtifactManifest.Artifacts))), b.ArtifactManifest
}

// faithfullyTranslated compares the ingested features with the exported
// required, non-waived artifacts. It returns the plan's task count for the
// next question.
func (g *gate2Checker) faithfullyTranslated(ctx context.Context, am *models.ArtifactManifest, dir string) (models.QuestionResult, int) {
	id := models.QuestionFaithfullyTranslated
	ing, err := g.inputs.ReadIngestion(ctx, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return answer(id, models.AnswerNotEvaluated, "no ingestion result: "+err.Error()), 0
	}
	if err != nil {
		return answer(id, models.AnswerNo, err.Error()), 0
	}

	expected := make(map[string]bool)
	expectedByType := make(map[models.ArtifactType]int)
	for _, a := range am.Artifacts {
		if a.Counted() {
			expected[models.ArtifactID(a.Target, a.Type)] = true
			expectedByType[a.Type]++
		}
	}
	got := make(map[string]bool)
	gotByType := make(map[models.ArtifactType]int)
	var evidence []string
	for _, f := range ing.Features {
		key := models.ArtifactID(f.Target, f.Type)
		if got[key] {
			evidence = append(evidence, "duplicate feature for "+key)
			continue
		}
		got[key] = true
		gotByType[f.Type]++
		if !expected[key] {
			evidence = append(evidence, "unexpected feature "+key)
		}
	}
	for _, a := range am.Artifacts {
		key := models.ArtifactID(a.Target, a.Type)
		if a.Counted() && !got[key] {
			evidence = append(evidence, "missing feature "+key)
		}
	}
	mismatched := len(evidence) > 0
	for _, t := range models.ArtifactTypes {
		if expectedByType[t] > 0 || gotByType[t] > 0 {
			evidence = append(evidence, fmt.Sprintf("%s: expected %d, ingested %d", t, expectedByType[t], gotByType[t]))
		}
	}

	taskCount := len(ing.Features)
	if ing.Plan.TaskCount != nil {
		taskCount = *ing.Plan.TaskCount
	}
	if mismatched {
		return answer(id, models.AnswerNo, evidence...), taskCount
	}
	return answer(id, models.AnswerYes, evidence...), taskCount
}

// faithfullyExecuted compares produced units with the planned task count.
func (g *gate2Checker) faithfullyExecuted(ctx context.Context, taskCount int, dir string) models.QuestionResult {
	id := models.QuestionFaithfullyExecuted
	sum, err := g.inputs.ReadExecution(ctx, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return answer(id, models.AnswerNotEvaluated, "no execution output: "+err.Error())
	}
	if err != nil {
		return answer(id, models.AnswerNo, err.Error())
	}
	evidence := fmt.Sprintf("%d units from %s, %d planned tasks", sum.Units, sum.Source, taskCount)
	if sum.Units != taskCount {
		return answer(id, models.AnswerNo, evidence)
	}
	return answer(id, models.AnswerYes, evidence)
}

// Gate2Err returns a *GateFailedError naming every question answered no.
// With strict set, not_evaluated answers fail too.
func Gate2Err(r *models.Gate2Report, strict bool) error {
	fe := &GateFailedError{Gate: "gate 2"}
	for _, q := range r.Questions {
		if q.Answer == models.AnswerNo || (strict && q.Answer == models.AnswerNotEvaluated) {
			fe.Failed = append(fe.Failed, q.ID)
			fe.errs = append(fe.errs, fmt.Errorf("%s answered %s", q.ID, q.Answer))
		}
	}
	if len(fe.Failed) == 0 {
		return nil
	}
	return fe
}
