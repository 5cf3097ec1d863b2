// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the export pipeline and its gates as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/contextcore/internal/core"
	"github.com/valter-silva-au/contextcore/internal/observability"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// ServerDeps are the services a Server exposes. Metrics and Alerts may be
// nil when observability is disabled; Config nil means defaults.
type ServerDeps struct {
	Exporter core.Exporter
	Gate1    core.Gate1Checker
	Gate2    core.Gate2Checker
	Events   core.EventLogger
	Metrics  observability.MetricsCalculator
	Alerts   observability.AlertEngine
	Config   *models.PipelineConfig
	Version  string
}

// Server wraps pipeline services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	deps   ServerDeps
}

// NewServer creates a new MCP server over the given services.
func NewServer(deps ServerDeps) *Server {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	if deps.Config == nil {
		deps.Config = core.DefaultConfig()
	}

	s := &Server{deps: deps}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "contextcore", Version: deps.Version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type validateInput struct {
	Path    string `json:"path,omitempty" jsonschema:"path to the project manifest YAML file"`
	Content string `json:"content,omitempty" jsonschema:"inline manifest YAML, used when path is empty"`
	Strict  bool   `json:"strict,omitempty" jsonschema:"treat warnings as errors"`
}

type validateOutput struct {
	Valid    bool     `json:"valid"`
	Project  string   `json:"project,omitempty"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type planInput struct {
	Path        string   `json:"path,omitempty" jsonschema:"path to the project manifest YAML file"`
	Content     string   `json:"content,omitempty" jsonschema:"inline manifest YAML, used when path is empty"`
	ExistingDir string   `json:"existing_dir,omitempty" jsonschema:"directory scanned for artifacts that already exist"`
	ExistingMap string   `json:"existing_map,omitempty" jsonschema:"YAML file mapping artifact ids to existing paths"`
	MinCoverage *float64 `json:"min_coverage,omitempty" jsonschema:"coverage threshold in percent; defaults to the configured value"`
}

type requirementOutput struct {
	ID       string `json:"id"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	Tier     string `json:"tier"`
	RuleID   string `json:"rule_id"`
	Waived   bool   `json:"waived,omitempty"`
	Existing string `json:"existing,omitempty"`
}

type planOutput struct {
	Project         string              `json:"project"`
	Criticality     string              `json:"criticality"`
	Requirements    []requirementOutput `json:"requirements"`
	CoveragePercent float64             `json:"coverage_percent"`
	Gaps            []string            `json:"gaps"`
	MinCoverage     float64             `json:"min_coverage"`
	MeetsThreshold  bool                `json:"meets_threshold"`
	ReadinessScore  int                 `json:"readiness_score"`
	Verdict         string              `json:"verdict"`
	Warnings        []string            `json:"warnings"`
}

type exportInput struct {
	Path         string   `json:"path,omitempty" jsonschema:"path to the project manifest YAML file"`
	Content      string   `json:"content,omitempty" jsonschema:"inline manifest YAML, used when path is empty"`
	ExistingDir  string   `json:"existing_dir,omitempty" jsonschema:"directory scanned for artifacts that already exist"`
	ExistingMap  string   `json:"existing_map,omitempty" jsonschema:"YAML file mapping artifact ids to existing paths"`
	MinCoverage  *float64 `json:"min_coverage,omitempty" jsonschema:"coverage threshold in percent; defaults to the configured value"`
	OutDir       string   `json:"out_dir" jsonschema:"export directory to create or replace"`
	NoProvenance bool     `json:"no_provenance,omitempty" jsonschema:"skip writing provenance.json"`
	Strict       bool     `json:"strict,omitempty" jsonschema:"fail on cross-reference errors and warnings"`
	GeneratedAt  string   `json:"generated_at,omitempty" jsonschema:"RFC 3339 UTC generation timestamp recorded in provenance"`
	GitCommit    string   `json:"git_commit,omitempty"`
	GitBranch    string   `json:"git_branch,omitempty"`
	GitTimestamp string   `json:"git_timestamp,omitempty"`
}

type exportOutput struct {
	ExportID        string   `json:"export_id"`
	OutDir          string   `json:"out_dir"`
	Files           []string `json:"files"`
	CoveragePercent float64  `json:"coverage_percent"`
	GapCount        int      `json:"gap_count"`
	ReadinessScore  int      `json:"readiness_score"`
	Verdict         string   `json:"verdict"`
}

type gate1Input struct {
	ExportDir         string `json:"export_dir" jsonschema:"export directory to check"`
	FailOnUnhealthy   *bool  `json:"fail_on_unhealthy,omitempty" jsonschema:"treat warnings as failures"`
	RequireProvenance *bool  `json:"require_provenance,omitempty" jsonschema:"fail when provenance.json is missing"`
}

type checkOutput struct {
	CheckID  string   `json:"check_id"`
	Status   string   `json:"status"`
	Blocking bool     `json:"blocking"`
	Detail   string   `json:"detail"`
	Evidence []string `json:"evidence,omitempty"`
}

type gate1Output struct {
	Status  string        `json:"status"`
	Passed  bool          `json:"passed"`
	Results []checkOutput `json:"results"`
}

type gate2Input struct {
	ExportDir    string `json:"export_dir" jsonschema:"export directory the ingestion consumed"`
	IngestionDir string `json:"ingestion_dir,omitempty" jsonschema:"directory holding ingestion-result.json"`
	ExecutionDir string `json:"execution_dir,omitempty" jsonschema:"directory holding execution output"`
	Strict       *bool  `json:"strict,omitempty" jsonschema:"also fail on questions that could not be evaluated"`
}

type questionOutput struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Evidence []string `json:"evidence,omitempty"`
}

type gate2Output struct {
	Healthy   bool             `json:"healthy"`
	Passed    bool             `json:"passed"`
	Questions []questionOutput `json:"questions"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type projectMetricsOutput struct {
	Project        string  `json:"project"`
	Exports        int     `json:"exports"`
	Failures       int     `json:"failures"`
	LatestCoverage float64 `json:"latest_coverage"`
	LatestVerdict  string  `json:"latest_verdict,omitempty"`
}

type metricsOutput struct {
	Exports            int                    `json:"exports"`
	ExportFailures     int                    `json:"export_failures"`
	Validations        int                    `json:"validations"`
	Gate1Runs          int                    `json:"gate1_runs"`
	ChecksumFailures   int                    `json:"checksum_failures"`
	Gate2Runs          int                    `json:"gate2_runs"`
	Gate2ShortCircuits int                    `json:"gate2_short_circuits"`
	AverageCoverage    float64                `json:"average_coverage"`
	Projects           []projectMetricsOutput `json:"projects"`
	EventCount         int                    `json:"event_count"`
	OldestEvent        string                 `json:"oldest_event,omitempty"`
	NewestEvent        string                 `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "validate_manifest",
		Description: "Validate a project manifest against the schema and its cross-references. Returns every error and warning.",
	}, s.handleValidate)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "plan_artifacts",
		Description: "Derive the required observability artifacts for a manifest and score coverage against existing artifacts. Writes nothing.",
	}, s.handlePlan)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "export_manifest",
		Description: "Run the full export pipeline and atomically write the export directory, including the provenance checksum chain.",
	}, s.handleExport)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "run_gate1",
		Description: "Run the pre-ingestion integrity checks (structure, checksum chain, provenance, mapping, gap parity, calibration) on an export directory.",
	}, s.handleGate1)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "run_gate2",
		Description: "Answer the three post-ingestion questions: is the contract complete, faithfully translated and faithfully executed.",
	}, s.handleGate2)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get run metrics from the event log: exports, coverage, gate outcomes and per-project summaries.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (checksum failures, coverage regressions, insufficient readiness, gate 2 short-circuits).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleValidate(_ context.Context, _ *gomcp.CallToolRequest, input validateInput) (*gomcp.CallToolResult, validateOutput, error) {
	source, name, err := loadManifest(input.Path, input.Content)
	if err != nil {
		return errorResult(err.Error()), validateOutput{}, nil
	}

	m, res := core.ValidateDocument(source, input.Strict)
	core.RecordValidation(s.deps.Events, name, m, res)

	out := validateOutput{
		Valid:    res.Valid(),
		Errors:   make([]string, len(res.Errors)),
		Warnings: append([]string{}, res.Warnings...),
	}
	for i, e := range res.Errors {
		out.Errors[i] = e.Error()
	}
	if m != nil {
		out.Project = m.Metadata.Name
	}
	return nil, out, nil
}

func (s *Server) handlePlan(ctx context.Context, _ *gomcp.CallToolRequest, input planInput) (*gomcp.CallToolResult, planOutput, error) {
	if s.deps.Exporter == nil {
		return errorResult("exporter not available"), planOutput{}, nil
	}
	source, _, err := loadManifest(input.Path, input.Content)
	if err != nil {
		return errorResult(err.Error()), planOutput{}, nil
	}

	req := s.request(source, input.ExistingDir, input.ExistingMap, input.MinCoverage)
	plan, err := s.deps.Exporter.Plan(ctx, req)
	if err != nil {
		return errorResult(fmt.Sprintf("planning: %s", err)), planOutput{}, nil
	}

	out := planOutput{
		Project:         plan.Manifest.Metadata.Name,
		Criticality:     string(plan.Manifest.Spec.Business.Criticality),
		Requirements:    make([]requirementOutput, 0, len(plan.Requirements)),
		CoveragePercent: plan.Coverage.Overall.Percent,
		Gaps:            append([]string{}, plan.Coverage.Overall.Gaps...),
		MinCoverage:     req.MinCoverage,
		MeetsThreshold:  core.CheckCoverageThreshold(plan.Manifest.Metadata.Name, plan.Coverage, req.MinCoverage) == nil,
		ReadinessScore:  plan.Readiness.Score,
		Verdict:         string(plan.Readiness.Verdict),
		Warnings:        append([]string{}, plan.Validation.Warnings...),
	}
	for _, xref := range plan.Validation.CrossReferenceErrors() {
		out.Warnings = append(out.Warnings, xref.Error())
	}
	for _, r := range plan.Requirements {
		if !r.Required {
			continue
		}
		out.Requirements = append(out.Requirements, requirementOutput{
			ID:       r.ID,
			Target:   r.Target,
			Type:     string(r.Type),
			Tier:     string(r.Tier),
			RuleID:   r.RuleID,
			Waived:   r.Waived,
			Existing: plan.Coverage.Existing[r.ID],
		})
	}
	return nil, out, nil
}

func (s *Server) handleExport(ctx context.Context, _ *gomcp.CallToolRequest, input exportInput) (*gomcp.CallToolResult, exportOutput, error) {
	if s.deps.Exporter == nil {
		return errorResult("exporter not available"), exportOutput{}, nil
	}
	if input.OutDir == "" {
		return errorResult("out_dir is required"), exportOutput{}, nil
	}
	source, _, err := loadManifest(input.Path, input.Content)
	if err != nil {
		return errorResult(err.Error()), exportOutput{}, nil
	}

	req := s.request(source, input.ExistingDir, input.ExistingMap, input.MinCoverage)
	req.OutDir = input.OutDir
	req.EmitProvenance = s.deps.Config.Export.EmitProvenance && !input.NoProvenance
	req.Strict = input.Strict || s.deps.Config.Validate.Strict
	req.GeneratedAt = input.GeneratedAt
	if req.GeneratedAt == "" {
		if req.GeneratedAt, err = core.GeneratedAtFromEpoch(os.Getenv(core.SourceDateEpochVar)); err != nil {
			return errorResult(err.Error()), exportOutput{}, nil
		}
	}
	req.Git = models.GitInfo{Commit: input.GitCommit, Branch: input.GitBranch, Timestamp: input.GitTimestamp}

	res, err := s.deps.Exporter.Export(ctx, req)
	if err != nil {
		var below *core.CoverageBelowThresholdError
		if errors.As(err, &below) {
			return errorResult(fmt.Sprintf("export refused: %s", below)), exportOutput{}, nil
		}
		return errorResult(fmt.Sprintf("exporting: %s", err)), exportOutput{}, nil
	}

	return nil, exportOutput{
		ExportID:        res.ExportID,
		OutDir:          res.OutDir,
		Files:           res.Files,
		CoveragePercent: res.Coverage.Overall.Percent,
		GapCount:        res.Coverage.GapCount(),
		ReadinessScore:  res.Readiness.Score,
		Verdict:         string(res.Readiness.Verdict),
	}, nil
}

func (s *Server) handleGate1(ctx context.Context, _ *gomcp.CallToolRequest, input gate1Input) (*gomcp.CallToolResult, gate1Output, error) {
	if s.deps.Gate1 == nil {
		return errorResult("gate 1 checker not available"), gate1Output{}, nil
	}
	if input.ExportDir == "" {
		return errorResult("export_dir is required"), gate1Output{}, nil
	}

	opts := core.Gate1Options{
		FailOnUnhealthy:   boolOr(input.FailOnUnhealthy, s.deps.Config.Gate1.FailOnUnhealthy),
		RequireProvenance: boolOr(input.RequireProvenance, s.deps.Config.Gate1.RequireProvenance),
	}
	report, err := s.deps.Gate1.Check(ctx, input.ExportDir, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("running gate 1: %s", err)), gate1Output{}, nil
	}

	out := gate1Output{
		Status:  string(report.Status),
		Passed:  core.Gate1Err(report) == nil,
		Results: make([]checkOutput, len(report.Results)),
	}
	for i, r := range report.Results {
		out.Results[i] = checkOutput{
			CheckID:  r.CheckID,
			Status:   string(r.Status),
			Blocking: r.Blocking,
			Detail:   r.Detail,
			Evidence: r.Evidence,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGate2(ctx context.Context, _ *gomcp.CallToolRequest, input gate2Input) (*gomcp.CallToolResult, gate2Output, error) {
	if s.deps.Gate2 == nil {
		return errorResult("gate 2 checker not available"), gate2Output{}, nil
	}
	if input.ExportDir == "" {
		return errorResult("export_dir is required"), gate2Output{}, nil
	}

	report, err := s.deps.Gate2.Check(ctx, input.ExportDir, core.Gate2Options{
		IngestionDir: input.IngestionDir,
		ExecutionDir: input.ExecutionDir,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("running gate 2: %s", err)), gate2Output{}, nil
	}

	strict := boolOr(input.Strict, s.deps.Config.Gate2.FailOnIssue)
	out := gate2Output{
		Healthy:   report.Healthy,
		Passed:    core.Gate2Err(report, strict) == nil,
		Questions: make([]questionOutput, len(report.Questions)),
	}
	for i, q := range report.Questions {
		out.Questions[i] = questionOutput{
			ID:       q.ID,
			Question: q.Question,
			Answer:   string(q.Answer),
			Evidence: q.Evidence,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.deps.Metrics == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), metricsOutput{}, nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), metricsOutput{}, nil
	}

	metrics, err := s.deps.Metrics.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), metricsOutput{}, nil
	}

	out := metricsOutput{
		Exports:            metrics.Exports,
		ExportFailures:     metrics.ExportFailures,
		Validations:        metrics.Validations,
		Gate1Runs:          metrics.Gate1Runs,
		ChecksumFailures:   metrics.ChecksumFailures,
		Gate2Runs:          metrics.Gate2Runs,
		Gate2ShortCircuits: metrics.Gate2ShortCircuits,
		AverageCoverage:    metrics.AverageCoverage,
		Projects:           []projectMetricsOutput{},
		EventCount:         metrics.EventCount,
	}
	for _, name := range slices.Sorted(maps.Keys(metrics.Projects)) {
		pm := metrics.Projects[name]
		out.Projects = append(out.Projects, projectMetricsOutput{
			Project:        name,
			Exports:        pm.Exports,
			Failures:       pm.Failures,
			LatestCoverage: pm.LatestCoverage,
			LatestVerdict:  pm.LatestVerdict,
		})
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.deps.Alerts == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.deps.Alerts.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

// loadManifest returns the manifest bytes and a name for them.
func loadManifest(path, content string) ([]byte, string, error) {
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading manifest: %w", err)
		}
		return data, path, nil
	case content != "":
		return []byte(content), "<inline>", nil
	default:
		return nil, "", errors.New("path or content is required")
	}
}

// request builds the planning part of an export request from tool input
// and configured defaults.
func (s *Server) request(source []byte, existingDir, existingMap string, minCoverage *float64) core.ExportRequest {
	threshold := s.deps.Config.Export.MinCoverage
	if minCoverage != nil {
		threshold = *minCoverage
	}
	return core.ExportRequest{
		Source:         source,
		MinCoverage:    threshold,
		ExistingDir:    existingDir,
		ExistingMap:    existingMap,
		EmitProvenance: s.deps.Config.Export.EmitProvenance,
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
