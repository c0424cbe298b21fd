package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence"
)

// Repository wraps the persistence layer with the create and update rules
// the API and runner share.
type Repository struct {
	persistence persistence.Persistence
}

func NewRepository(p persistence.Persistence) *Repository {
	return &Repository{persistence: p}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowRepository().GetByID(ctx, id)
}

func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	if workflow.Telegram.Status == "" {
		workflow.Telegram.Status = models.TelegramNotConnected
	}

	if workflow.ExpirationOption == "" {
		workflow.ExpirationOption = models.ExpirationUntilDisabled
	}

	if err := r.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := r.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Save(ctx context.Context, workflow *models.Workflow) error {
	return r.persistence.WorkflowRepository().Save(ctx, workflow)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.persistence.WorkflowRepository().GetByID(ctx, id); err != nil {
		return err
	}

	return r.persistence.WorkflowRepository().Delete(ctx, id)
}

// FetchActive returns workflows eligible for scheduling.
func (r *Repository) FetchActive(ctx context.Context) ([]*models.Workflow, error) {
	all, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.IsActive {
			active = append(active, workflow)
		}
	}

	return active, nil
}
