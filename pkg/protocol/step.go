// Package protocol defines the contracts between the workflow runner and
// step implementations.
package protocol

import (
	"context"
	"log/slog"

	"github.com/geomail/geomail/pkg/account"
	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/summarize"
)

// RunContext carries the owning workflow, the collaborator handles shared by
// every step of a run, and the pipeline state earlier steps produced for
// later ones.
type RunContext struct {
	Workflow *models.Workflow
	Account  *account.Account

	Mail       mail.Client
	Summarizer summarize.Summarizer
	Notifiers  *notify.Dispatcher

	// Fetched is populated by FETCH_EMAILS and consumed downstream.
	Fetched []mail.Message

	// Summaries maps message id to its digest, populated by
	// SUMMARIZE_EMAILS.
	Summaries map[string]string
}

// Step is one executable unit of work. Implementations return an error for
// per-step failures; the runner converts it into the step's ERROR state and
// continues the pipeline.
type Step interface {
	Execute(ctx context.Context, run *RunContext, logger *slog.Logger) (any, error)
}

// StepFactory builds steps from a persisted parameter bag.
type StepFactory interface {
	Create(config map[string]any) (Step, error)
	ID() string
	Name() string
	Description() string

	// Schema returns the JSON schema the parameter bag is validated
	// against before Create runs.
	Schema() map[string]any
}
