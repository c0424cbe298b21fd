// Package scheduler arms wake timers for recurring workflows and publishes
// a due event when a deadline elapses. One poller replaces per-workflow
// platform alarms; deadlines survive restarts because they are persisted on
// the workflow record.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/geomail/geomail/pkg/eventbus"
	"github.com/geomail/geomail/pkg/events"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/workflow"
)

// DefaultPollInterval is how often persisted deadlines are checked.
const DefaultPollInterval = 1 * time.Second

type Scheduler struct {
	repository *workflow.Repository
	bus        eventbus.EventPublisher
	logger     *slog.Logger
	interval   time.Duration

	// now is injectable for deterministic tests.
	now func() time.Time
}

func NewScheduler(repository *workflow.Repository, bus eventbus.EventPublisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repository: repository,
		bus:        bus,
		logger:     logger.With("module", "scheduler"),
		interval:   DefaultPollInterval,
		now:        time.Now,
	}
}

// SetClock overrides the scheduler's time source. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetPollInterval overrides the deadline check period.
func (s *Scheduler) SetPollInterval(interval time.Duration) {
	s.interval = interval
}

// Arm registers the workflow's next deadline and persists the scheduled
// tuple. An already-future deadline is kept; a missing or elapsed one is
// recomputed from now.
func (s *Scheduler) Arm(ctx context.Context, wf *models.Workflow) error {
	now := s.now()

	if wf.NextExecutionTime == nil || !wf.NextExecutionTime.After(now) {
		next, err := wf.NextRun(now)
		if err != nil {
			return err
		}

		wf.NextExecutionTime = &next
	}

	wf.IsScheduled = true
	wf.IsActive = true
	wf.Status = models.WorkflowStatusScheduled

	if err := s.repository.Save(ctx, wf); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Armed workflow",
		"workflow_id", wf.ID,
		"next_execution_time", wf.NextExecutionTime.Format(time.RFC3339))

	return nil
}

// Cancel unregisters any pending deadline for the workflow.
func (s *Scheduler) Cancel(ctx context.Context, workflowID string) error {
	wf, err := s.repository.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	wf.IsScheduled = false
	wf.NextExecutionTime = nil

	if err := s.repository.Save(ctx, wf); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Cancelled workflow schedule", "workflow_id", workflowID)

	return nil
}

// Start runs the poll loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "Scheduler started", "poll_interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduler stopped")

			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick checks every persisted deadline once and publishes a due event for
// each elapsed one. The deadline is disarmed before publishing so a slow
// consumer cannot receive the same due event twice; a failed publish re-arms
// it for the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	workflows, err := s.repository.FetchAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list workflows for deadline check", "error", err)

		return
	}

	now := s.now()

	for _, wf := range workflows {
		if !wf.IsScheduled || wf.NextExecutionTime == nil || wf.NextExecutionTime.After(now) {
			continue
		}

		if wf.IsExpired(now) {
			s.deactivate(ctx, wf)

			continue
		}

		wf.IsScheduled = false
		if err := s.repository.Save(ctx, wf); err != nil {
			s.logger.ErrorContext(ctx, "Failed to disarm due workflow",
				"workflow_id", wf.ID,
				"error", err)

			continue
		}

		event := events.WorkflowDue{
			BaseEvent: events.BaseEvent{
				ID:         uuid.New().String(),
				Type:       events.WorkflowDueEvent,
				Timestamp:  now,
				WorkflowID: wf.ID,
			},
		}

		if err := s.bus.Publish(ctx, wf.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish due event",
				"workflow_id", wf.ID,
				"error", err)

			// Re-arm so the next tick retries instead of leaving the
			// workflow dormant until a restart rescan.
			wf.IsScheduled = true
			if err := s.repository.Save(ctx, wf); err != nil {
				s.logger.ErrorContext(ctx, "Failed to re-arm after publish failure",
					"workflow_id", wf.ID,
					"error", err)
			}

			continue
		}

		s.logger.InfoContext(ctx, "Workflow due", "workflow_id", wf.ID)
	}
}

// BootRescan re-arms every persisted recurring workflow after a restart. A
// still-future deadline is kept; an elapsed one is recomputed from now.
// Expired workflows are deactivated instead.
func (s *Scheduler) BootRescan(ctx context.Context) error {
	workflows, err := s.repository.FetchAll(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	rearmed := 0

	for _, wf := range workflows {
		if !wf.IsActive || !wf.IsRecurring() {
			continue
		}

		if wf.IsExpired(now) {
			s.deactivate(ctx, wf)

			continue
		}

		if err := s.Arm(ctx, wf); err != nil {
			s.logger.ErrorContext(ctx, "Failed to re-arm workflow on boot",
				"workflow_id", wf.ID,
				"error", err)

			continue
		}

		rearmed++
	}

	s.logger.InfoContext(ctx, "Boot rescan finished", "rearmed", rearmed)

	return nil
}

func (s *Scheduler) deactivate(ctx context.Context, wf *models.Workflow) {
	wf.IsScheduled = false
	wf.IsActive = false
	wf.NextExecutionTime = nil

	if err := s.repository.Save(ctx, wf); err != nil {
		s.logger.ErrorContext(ctx, "Failed to deactivate expired workflow",
			"workflow_id", wf.ID,
			"error", err)

		return
	}

	s.logger.InfoContext(ctx, "Deactivated expired workflow", "workflow_id", wf.ID)
}
