// Package models defines the core domain models for workflow automation and
// geofence alerting.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "DRAFT"     // Created, never executed
	WorkflowStatusRunning   WorkflowStatus = "RUNNING"   // A run is in flight
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED" // One-shot run finished
	WorkflowStatusError     WorkflowStatus = "ERROR"     // Run aborted with a fatal error
	WorkflowStatusScheduled WorkflowStatus = "SCHEDULED" // Recurring, next run armed
)

// ExpirationOption governs whether a due run is still allowed to execute.
type ExpirationOption string

const (
	ExpirationUntilDisabled ExpirationOption = "UNTIL_DISABLED"
	ExpirationOneMonth      ExpirationOption = "ONE_MONTH"
	ExpirationFixedDate     ExpirationOption = "FIXED_DATE"
)

// DestinationType selects the delivery channel for forwarded content.
type DestinationType string

const (
	DestinationGmail    DestinationType = "gmail"
	DestinationDeeplink DestinationType = "deeplink"
)

// TelegramStatus tracks the deep-link pairing handshake for a workflow.
type TelegramStatus string

const (
	TelegramNotConnected TelegramStatus = "not_connected"
	TelegramWaiting      TelegramStatus = "waiting"
	TelegramConnected    TelegramStatus = "connected"
)

// TelegramLink holds the result of the out-of-band deep-link pairing protocol.
type TelegramLink struct {
	ChatID   string         `json:"chat_id,omitempty"`
	Username string         `json:"username,omitempty"`
	Status   TelegramStatus `json:"status"`
	Token    string         `json:"token,omitempty"`
}

// Workflow is the unit of automation: a named, persisted sequence of typed
// steps with its own schedule and destination. Step order is fixed at
// creation; editing changes parameters, not structure.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"steps"`
	Status      WorkflowStatus `json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	// Interval is the repeat period in milliseconds. 0 means one-shot.
	Interval       int64  `json:"interval"`
	CronExpression string `json:"cron_expression,omitempty"`

	NextExecutionTime *time.Time `json:"next_execution_time,omitempty"`
	IsScheduled       bool       `json:"is_scheduled"`
	IsActive          bool       `json:"is_active"`
	IsContinuous      bool       `json:"is_continuous"`

	// StepDelay is the pause between successive steps, in milliseconds.
	StepDelay int64 `json:"step_delay,omitempty"`

	ExpirationOption     ExpirationOption `json:"expiration_option"`
	CustomExpirationDate *time.Time       `json:"custom_expiration_date,omitempty"`

	DestinationType   DestinationType `json:"destination_type,omitempty"`
	DestinationEmail  string          `json:"destination_email,omitempty"`
	DestinationChatID string          `json:"destination_chat_id,omitempty"`

	Telegram TelegramLink `json:"telegram"`

	// ExecutionError carries the last run-level failure for the UI. Cleared
	// at the start of every accepted run.
	ExecutionError string `json:"execution_error,omitempty"`
}

// NewWorkflow creates a workflow with the default four-step email pipeline.
func NewWorkflow(name, description string) *Workflow {
	now := time.Now().UTC()

	return &Workflow{
		ID:               uuid.New().String(),
		Name:             name,
		Description:      description,
		Status:           WorkflowStatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpirationOption: ExpirationUntilDisabled,
		Telegram:         TelegramLink{Status: TelegramNotConnected},
		Steps: []WorkflowStep{
			{ID: uuid.New().String(), Type: StepFetchEmails, Status: StepStatusPending, Parameters: map[string]any{
				"label":       "INBOX",
				"max_results": 10,
			}},
			{ID: uuid.New().String(), Type: StepSummarizeEmails, Status: StepStatusPending, Parameters: map[string]any{
				"enabled": true,
			}},
			{ID: uuid.New().String(), Type: StepForwardEmails, Status: StepStatusPending, Parameters: map[string]any{}},
			{ID: uuid.New().String(), Type: StepSendBatchSummaries, Status: StepStatusPending, Parameters: map[string]any{}},
		},
	}
}

// IsRecurring reports whether the workflow should be re-armed after a run.
func (w *Workflow) IsRecurring() bool {
	return w.IsContinuous || w.Interval > 0 || w.CronExpression != ""
}

// IsExpired reports whether the workflow's expiration policy forbids further
// runs as of now.
func (w *Workflow) IsExpired(now time.Time) bool {
	switch w.ExpirationOption {
	case ExpirationOneMonth:
		return now.After(w.CreatedAt.AddDate(0, 1, 0))
	case ExpirationFixedDate:
		return w.CustomExpirationDate != nil && now.After(*w.CustomExpirationDate)
	case ExpirationUntilDisabled:
		return false
	default:
		return false
	}
}

// NextRun computes the next execution deadline from now. A cron expression
// takes precedence over the fixed interval.
func (w *Workflow) NextRun(now time.Time) (time.Time, error) {
	if w.CronExpression != "" {
		schedule, err := cron.ParseStandard(w.CronExpression)
		if err != nil {
			return time.Time{}, err
		}

		return schedule.Next(now), nil
	}

	return now.Add(time.Duration(w.Interval) * time.Millisecond), nil
}

// ResetSteps returns every step to PENDING and clears per-run results.
func (w *Workflow) ResetSteps() {
	for i := range w.Steps {
		w.Steps[i].Status = StepStatusPending
		w.Steps[i].Result = nil
		w.Steps[i].Error = ""
	}
}

// StepDelayDuration returns the configured inter-step pause.
func (w *Workflow) StepDelayDuration() time.Duration {
	return time.Duration(w.StepDelay) * time.Millisecond
}
