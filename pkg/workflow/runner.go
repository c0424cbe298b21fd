// Package workflow contains the execution coordinator: the runner drives a
// workflow's steps sequentially, persisting state before and after each step
// so a crashed process leaves an exact record of how far the run got.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/geomail/geomail/pkg/account"
	"github.com/geomail/geomail/pkg/eventbus"
	"github.com/geomail/geomail/pkg/events"
	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/otelhelper"
	"github.com/geomail/geomail/pkg/protocol"
	"github.com/geomail/geomail/pkg/registry"
	"github.com/geomail/geomail/pkg/summarize"
)

// ErrAlreadyRunning means the workflow id is held by an in-flight run. The
// new attempt is dropped, not queued.
var ErrAlreadyRunning = errors.New("workflow is already running")

// ErrWorkflowExpired means the workflow's expiration policy forbids the run.
var ErrWorkflowExpired = errors.New("workflow has expired")

// Runner executes workflows. Steps run strictly sequentially within a run;
// separate workflows may run concurrently, serialized per id by the guard.
type Runner struct {
	repository *Repository
	registry   *registry.Registry
	accounts   account.Provider
	mail       mail.Client
	summarizer summarize.Summarizer
	notifiers  *notify.Dispatcher
	guard      Guard
	armer      Armer
	bus        eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger

	// now is injectable for deterministic scheduling tests.
	now func() time.Time
}

type RunnerConfig struct {
	Repository *Repository
	Registry   *registry.Registry
	Accounts   account.Provider
	Mail       mail.Client
	Summarizer summarize.Summarizer
	Notifiers  *notify.Dispatcher
	Guard      Guard
	Armer      Armer
	Bus        eventbus.EventPublisher
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

func NewRunner(cfg RunnerConfig) *Runner {
	guard := cfg.Guard
	if guard == nil {
		guard = NewMemoryGuard()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("workflow")
	}

	return &Runner{
		repository: cfg.Repository,
		registry:   cfg.Registry,
		accounts:   cfg.Accounts,
		mail:       cfg.Mail,
		summarizer: cfg.Summarizer,
		notifiers:  cfg.Notifiers,
		guard:      guard,
		armer:      cfg.Armer,
		bus:        cfg.Bus,
		tracer:     tracer,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// SetClock overrides the runner's time source. Tests only.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Execute runs the workflow end to end. Rejections (already running,
// expired, no account) leave the persisted record untouched. Per-step
// failures are recorded on the step and the run continues; only failures
// outside the step loop force the workflow into ERROR.
func (r *Runner) Execute(ctx context.Context, workflowID string) error {
	logger := r.logger.With("module", "workflow_runner", "workflow_id", workflowID)

	workflow, err := r.repository.FetchByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if !r.guard.TryAcquire(workflowID) {
		logger.InfoContext(ctx, "Dropping execution attempt, workflow already running")

		return ErrAlreadyRunning
	}
	defer r.guard.Release(workflowID)

	if workflow.IsExpired(r.now()) {
		logger.InfoContext(ctx, "Rejecting execution of expired workflow")

		return ErrWorkflowExpired
	}

	acct, err := r.accounts.Account(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Rejecting execution, no authenticated account", "error", err)

		return fmt.Errorf("cannot execute workflow %s: %w", workflowID, err)
	}

	executionID := uuid.New().String()
	logger = logger.With("execution_id", executionID)
	startedAt := r.now()

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	workflow.Status = models.WorkflowStatusRunning
	workflow.ExecutionError = ""
	executedAt := startedAt
	workflow.ExecutedAt = &executedAt
	workflow.ResetSteps()

	if err := r.repository.Save(ctx, workflow); err != nil {
		return fmt.Errorf("failed to persist workflow %s at run start: %w", workflowID, err)
	}

	logger.InfoContext(ctx, "Starting workflow execution", "workflow_name", workflow.Name)
	r.publish(ctx, workflowID, events.WorkflowStarted{
		BaseEvent:    r.baseEvent(events.WorkflowStartedEvent, workflowID),
		ExecutionID:  executionID,
		WorkflowName: workflow.Name,
	})

	run := &protocol.RunContext{
		Workflow:   workflow,
		Account:    acct,
		Mail:       r.mail,
		Summarizer: r.summarizer,
		Notifiers:  r.notifiers,
		Summaries:  make(map[string]string),
	}

	if err := r.runSteps(ctx, workflow, run, executionID, logger); err != nil {
		otelhelper.SetError(span, err)

		return r.fail(ctx, workflow, executionID, startedAt, err, logger)
	}

	if err := r.finish(ctx, workflow, logger); err != nil {
		otelhelper.SetError(span, err)

		return r.fail(ctx, workflow, executionID, startedAt, err, logger)
	}

	r.publish(ctx, workflowID, events.WorkflowFinished{
		BaseEvent:   r.baseEvent(events.WorkflowFinishedEvent, workflowID),
		ExecutionID: executionID,
		Status:      workflow.Status,
		Duration:    r.now().Sub(startedAt),
	})
	logger.InfoContext(ctx, "Workflow execution finished",
		"status", string(workflow.Status),
		"duration", r.now().Sub(startedAt).String())

	return nil
}

// runSteps advances every step IN_PROGRESS -> {COMPLETED|ERROR}, persisting
// before and after each one. A step failure is captured on the step and the
// loop continues; only persistence failures abort.
func (r *Runner) runSteps(ctx context.Context, workflow *models.Workflow, run *protocol.RunContext, executionID string, logger *slog.Logger) error {
	for i := range workflow.Steps {
		step := &workflow.Steps[i]
		stepLogger := logger.With("step_id", step.ID, "step_type", string(step.Type))
		stepStart := r.now()

		step.Status = models.StepStatusInProgress
		if err := r.repository.Save(ctx, workflow); err != nil {
			return fmt.Errorf("failed to persist step %s as in progress: %w", step.ID, err)
		}

		result, err := r.executeStep(ctx, step, run, stepLogger)
		if err != nil {
			step.Status = models.StepStatusError
			step.Error = err.Error()
			stepLogger.WarnContext(ctx, "Step failed", "error", err)
		} else {
			step.Status = models.StepStatusCompleted
			step.Result = result
			stepLogger.InfoContext(ctx, "Step completed")
		}

		if err := r.repository.Save(ctx, workflow); err != nil {
			return fmt.Errorf("failed to persist step %s outcome: %w", step.ID, err)
		}

		r.publish(ctx, workflow.ID, events.StepCompleted{
			BaseEvent:   r.baseEvent(events.StepCompletedEvent, workflow.ID),
			ExecutionID: executionID,
			StepID:      step.ID,
			StepType:    step.Type,
			Status:      step.Status,
			Error:       step.Error,
			DurationMs:  r.now().Sub(stepStart).Milliseconds(),
		})

		if delay := workflow.StepDelayDuration(); delay > 0 && i < len(workflow.Steps)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil
}

// executeStep builds and runs one step. Construction failures are converted
// to step failures here so nothing escapes past this boundary.
func (r *Runner) executeStep(ctx context.Context, step *models.WorkflowStep, run *protocol.RunContext, logger *slog.Logger) (any, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepTypeKey, string(step.Type)),
	)
	defer span.End()

	impl, err := r.registry.CreateStep(string(step.Type), step.Parameters)
	if err != nil {
		err = fmt.Errorf("failed to create step: %w", err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	result, err := impl.Execute(ctx, run, logger)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return result, err
}

// finish applies the run disposition: recurring workflows are re-armed as
// SCHEDULED, one-shot workflows settle as COMPLETED.
func (r *Runner) finish(ctx context.Context, workflow *models.Workflow, logger *slog.Logger) error {
	now := r.now()

	if workflow.IsRecurring() && !workflow.IsExpired(now) {
		next, err := workflow.NextRun(now)
		if err != nil {
			return fmt.Errorf("failed to compute next run: %w", err)
		}

		workflow.Status = models.WorkflowStatusScheduled
		workflow.NextExecutionTime = &next
		workflow.IsScheduled = true
		workflow.IsActive = true

		if err := r.repository.Save(ctx, workflow); err != nil {
			return fmt.Errorf("failed to persist scheduled disposition: %w", err)
		}

		if r.armer != nil {
			if err := r.armer.Arm(ctx, workflow); err != nil {
				logger.WarnContext(ctx, "Failed to arm next run", "error", err)
			}
		}

		return nil
	}

	workflow.Status = models.WorkflowStatusCompleted
	workflow.IsScheduled = false
	workflow.IsActive = false
	workflow.NextExecutionTime = nil

	return r.repository.Save(ctx, workflow)
}

// fail records a run-level fatal error. Already-persisted step progress is
// left as it stands.
func (r *Runner) fail(ctx context.Context, workflow *models.Workflow, executionID string, startedAt time.Time, cause error, logger *slog.Logger) error {
	workflow.Status = models.WorkflowStatusError
	workflow.ExecutionError = cause.Error()
	workflow.IsScheduled = false
	workflow.IsActive = false

	if err := r.repository.Save(ctx, workflow); err != nil {
		logger.ErrorContext(ctx, "Failed to persist failed workflow", "error", err)
	}

	r.publish(ctx, workflow.ID, events.WorkflowFailed{
		BaseEvent:   r.baseEvent(events.WorkflowFailedEvent, workflow.ID),
		ExecutionID: executionID,
		Error:       cause.Error(),
		Duration:    r.now().Sub(startedAt),
	})
	logger.ErrorContext(ctx, "Workflow execution failed", "error", cause)

	return cause
}

func (r *Runner) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  r.now(),
		WorkflowID: workflowID,
	}
}

// publish is best effort: a bus failure never affects the run outcome.
func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	if err := r.bus.Publish(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", string(event.GetType()),
			"error", err)
	}
}
