package models

// StepType identifies one of the four units of work a workflow can perform.
type StepType string

const (
	StepFetchEmails        StepType = "FETCH_EMAILS"
	StepSummarizeEmails    StepType = "SUMMARIZE_EMAILS"
	StepForwardEmails      StepType = "FORWARD_EMAILS"
	StepSendBatchSummaries StepType = "SEND_BATCH_SUMMARIES"
)

// StepStatus is mutated only by the workflow runner, monotonically through a
// run: PENDING -> IN_PROGRESS -> COMPLETED or ERROR.
type StepStatus string

const (
	StepStatusPending    StepStatus = "PENDING"
	StepStatusInProgress StepStatus = "IN_PROGRESS"
	StepStatusCompleted  StepStatus = "COMPLETED"
	StepStatusError      StepStatus = "ERROR"
)

// WorkflowStep is one typed unit of work within a workflow. Parameters is the
// persisted configuration bag; it is decoded into a typed parameter struct
// before execution (see step_params.go).
type WorkflowStep struct {
	ID         string         `json:"id"`
	Type       StepType       `json:"type" validate:"required"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     StepStatus     `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}
