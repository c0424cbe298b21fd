package workflow

import (
	"context"
	"log/slog"

	"github.com/geomail/geomail/pkg/models"
)

// InterruptedRunError marks steps whose true outcome was lost when the
// process died mid-run.
const InterruptedRunError = "interrupted by restart"

// Reconciler settles workflows the previous process left mid-run. A step
// persisted as IN_PROGRESS has unknown outcome; it is marked ERROR rather
// than re-run so a restart never repeats a possibly-completed send.
type Reconciler struct {
	repository *Repository
	logger     *slog.Logger
}

func NewReconciler(repository *Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repository: repository,
		logger:     logger.With("module", "workflow_reconciler"),
	}
}

// Reconcile scans every persisted workflow and converts interrupted runs to
// ERROR. It returns the number of workflows it settled.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	workflows, err := r.repository.FetchAll(ctx)
	if err != nil {
		return 0, err
	}

	settled := 0

	for _, workflow := range workflows {
		if !r.interrupted(workflow) {
			continue
		}

		for i := range workflow.Steps {
			if workflow.Steps[i].Status == models.StepStatusInProgress {
				workflow.Steps[i].Status = models.StepStatusError
				workflow.Steps[i].Error = InterruptedRunError
			}
		}

		workflow.Status = models.WorkflowStatusError
		workflow.ExecutionError = InterruptedRunError

		if err := r.repository.Save(ctx, workflow); err != nil {
			r.logger.ErrorContext(ctx, "Failed to settle interrupted workflow",
				"workflow_id", workflow.ID,
				"error", err)

			continue
		}

		r.logger.InfoContext(ctx, "Settled interrupted workflow", "workflow_id", workflow.ID)

		settled++
	}

	return settled, nil
}

func (r *Reconciler) interrupted(workflow *models.Workflow) bool {
	if workflow.Status == models.WorkflowStatusRunning {
		return true
	}

	for _, step := range workflow.Steps {
		if step.Status == models.StepStatusInProgress {
			return true
		}
	}

	return false
}
