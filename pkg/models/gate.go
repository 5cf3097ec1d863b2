package models

// GateStatus is the outcome of one gate check.
type GateStatus string

const (
	GatePass    GateStatus = "pass"
	GateWarning GateStatus = "warning"
	GateFail    GateStatus = "fail"
)

// Rank orders statuses from best to worst.
func (s GateStatus) Rank() int {
	switch s {
	case GatePass:
		return 0
	case GateWarning:
		return 1
	default:
		return 2
	}
}

// Gate 1 check ids in execution order.
const (
	CheckStructuralIntegrity   = "structural-integrity"
	CheckChecksumChain         = "checksum-chain"
	CheckProvenanceConsistency = "provenance-consistency"
	CheckMappingCompleteness   = "mapping-completeness"
	CheckGapParity             = "gap-parity"
	CheckDesignCalibration     = "design-calibration"
)

// Gate1Checks lists Gate 1 check ids in execution order.
var Gate1Checks = []string{
	CheckStructuralIntegrity,
	CheckChecksumChain,
	CheckProvenanceConsistency,
	CheckMappingCompleteness,
	CheckGapParity,
	CheckDesignCalibration,
}

// GateResult is the result of one gate check.
type GateResult struct {
	CheckID  string     `json:"check_id"`
	Status   GateStatus `json:"status"`
	Blocking bool       `json:"blocking"`
	Detail   string     `json:"detail"`
	Evidence []string   `json:"evidence,omitempty"`
}

// Gate1Report aggregates every Gate 1 check.
type Gate1Report struct {
	ExportDir       string       `json:"export_dir"`
	Status          GateStatus   `json:"status"`
	FailOnUnhealthy bool         `json:"fail_on_unhealthy"`
	Results         []GateResult `json:"results"`
}

// Answer is a Gate 2 question outcome.
type Answer string

const (
	AnswerYes          Answer = "yes"
	AnswerNo           Answer = "no"
	AnswerNotEvaluated Answer = "not_evaluated"
)

// Gate 2 question ids in evaluation order.
const (
	QuestionContractComplete     = "contract-complete"
	QuestionFaithfullyTranslated = "faithfully-translated"
	QuestionFaithfullyExecuted   = "faithfully-executed"
)

// QuestionResult is the answer to one Gate 2 question.
type QuestionResult struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   Answer   `json:"answer"`
	Evidence []string `json:"evidence,omitempty"`
}

// Gate2Report aggregates the three Gate 2 questions.
type Gate2Report struct {
	ExportDir    string           `json:"export_dir"`
	IngestionDir string           `json:"ingestion_dir,omitempty"`
	ExecutionDir string           `json:"execution_dir,omitempty"`
	Healthy      bool             `json:"healthy"`
	Questions    []QuestionResult `json:"questions"`
}

// IngestedFeature is one feature an ingestion layer parsed from an export.
type IngestedFeature struct {
	ID     string       `json:"id"`
	Target string       `json:"target"`
	Type   ArtifactType `json:"type"`
}

// IngestionResult is the document an ingestion layer writes for Gate 2.
type IngestionResult struct {
	Features []IngestedFeature `json:"features"`
	Plan     struct {
		TaskCount *int `json:"task_count,omitempty"`
	} `json:"plan"`
}

// ExecutionUnit is one unit an execution layer produced.
type ExecutionUnit struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// ExecutionResult is the document an execution layer writes for Gate 2.
type ExecutionResult struct {
	Units []ExecutionUnit `json:"units"`
}

// ExecutionSummary is what Gate 2 needs from an execution directory: the
// number of produced units and where that count came from.
type ExecutionSummary struct {
	Units  int
	Source string
}

// Gate 2 input file names.
const (
	FileIngestionResult = "ingestion-result.json"
	FileExecutionResult = "execution-result.json"
)
