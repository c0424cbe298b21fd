package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow_DefaultTemplate(t *testing.T) {
	workflow := NewWorkflow("Morning digest", "Summarize inbox every morning")

	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, WorkflowStatusDraft, workflow.Status)
	assert.Equal(t, ExpirationUntilDisabled, workflow.ExpirationOption)
	assert.Equal(t, TelegramNotConnected, workflow.Telegram.Status)

	require.Len(t, workflow.Steps, 4)
	assert.Equal(t, StepFetchEmails, workflow.Steps[0].Type)
	assert.Equal(t, StepSummarizeEmails, workflow.Steps[1].Type)
	assert.Equal(t, StepForwardEmails, workflow.Steps[2].Type)
	assert.Equal(t, StepSendBatchSummaries, workflow.Steps[3].Type)

	for _, step := range workflow.Steps {
		assert.Equal(t, StepStatusPending, step.Status)
		assert.NotEmpty(t, step.ID)
	}
}

func TestWorkflow_IsExpired(t *testing.T) {
	created := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	fixedDate := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		option   ExpirationOption
		custom   *time.Time
		now      time.Time
		expected bool
	}{
		{
			name:     "until disabled never expires",
			option:   ExpirationUntilDisabled,
			now:      created.AddDate(10, 0, 0),
			expected: false,
		},
		{
			name:     "one month before deadline",
			option:   ExpirationOneMonth,
			now:      created.AddDate(0, 1, 0).Add(-time.Hour),
			expected: false,
		},
		{
			name:     "one month after deadline",
			option:   ExpirationOneMonth,
			now:      created.AddDate(0, 1, 0).Add(time.Hour),
			expected: true,
		},
		{
			name:     "fixed date before deadline",
			option:   ExpirationFixedDate,
			custom:   &fixedDate,
			now:      fixedDate.Add(-time.Minute),
			expected: false,
		},
		{
			name:     "fixed date after deadline",
			option:   ExpirationFixedDate,
			custom:   &fixedDate,
			now:      fixedDate.Add(time.Minute),
			expected: true,
		},
		{
			name:     "fixed date without a date never expires",
			option:   ExpirationFixedDate,
			now:      created.AddDate(10, 0, 0),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := &Workflow{
				CreatedAt:            created,
				ExpirationOption:     tt.option,
				CustomExpirationDate: tt.custom,
			}

			assert.Equal(t, tt.expected, workflow.IsExpired(tt.now))
		})
	}
}

func TestWorkflow_NextRun(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	t.Run("interval", func(t *testing.T) {
		workflow := &Workflow{Interval: 60_000}

		next, err := workflow.NextRun(now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Minute), next)
	})

	t.Run("cron takes precedence over interval", func(t *testing.T) {
		workflow := &Workflow{Interval: 60_000, CronExpression: "0 10 * * *"}

		next, err := workflow.NextRun(now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), next)
	})

	t.Run("bad cron expression", func(t *testing.T) {
		workflow := &Workflow{CronExpression: "not a cron"}

		_, err := workflow.NextRun(now)
		assert.Error(t, err)
	})
}

func TestWorkflow_IsRecurring(t *testing.T) {
	assert.False(t, (&Workflow{}).IsRecurring())
	assert.True(t, (&Workflow{Interval: 1000}).IsRecurring())
	assert.True(t, (&Workflow{IsContinuous: true}).IsRecurring())
	assert.True(t, (&Workflow{CronExpression: "* * * * *"}).IsRecurring())
}

func TestWorkflow_ResetSteps(t *testing.T) {
	workflow := NewWorkflow("test", "")
	workflow.Steps[0].Status = StepStatusCompleted
	workflow.Steps[0].Result = map[string]any{"count": 3}
	workflow.Steps[1].Status = StepStatusError
	workflow.Steps[1].Error = "boom"

	workflow.ResetSteps()

	for _, step := range workflow.Steps {
		assert.Equal(t, StepStatusPending, step.Status)
		assert.Nil(t, step.Result)
		assert.Empty(t, step.Error)
	}
}
