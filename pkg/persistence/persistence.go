// Package persistence provides the data storage abstraction layer for
// workflows, geofence alerts, and volatile coordination state.
package persistence

import (
	"context"
	"time"

	"github.com/geomail/geomail/pkg/models"
)

// Persistence bundles the repositories a backend provides.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	AlertRepository() AlertRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository manages durable workflow records, one record per id.
type WorkflowRepository interface {
	// List returns every readable workflow. Individually corrupt records are
	// logged and skipped, never surfaced as an error.
	List(ctx context.Context) ([]*models.Workflow, error)

	// GetByID returns the workflow or ErrWorkflowNotFound.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// Save upserts a single workflow record.
	Save(ctx context.Context, workflow *models.Workflow) error

	// Delete removes a workflow. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}

// AlertRepository manages persisted geofence alerts.
type AlertRepository interface {
	List(ctx context.Context) ([]*models.GeofenceAlert, error)
	GetByID(ctx context.Context, id string) (*models.GeofenceAlert, error)
	Save(ctx context.Context, alert *models.GeofenceAlert) error
	Delete(ctx context.Context, id string) error
}

// PairingStateStore holds telegram pairing progress that must survive
// restarts: the bot update feed offset and per-workflow chat bindings.
type PairingStateStore interface {
	// UpdateOffset returns the last processed bot update id, 0 if none.
	UpdateOffset(ctx context.Context) (int64, error)
	SetUpdateOffset(ctx context.Context, offset int64) error
}

// CooldownStore tracks notification suppression windows per key.
type CooldownStore interface {
	// TryAcquire atomically begins a suppression window for key. It returns
	// false while a previous window is still open.
	TryAcquire(ctx context.Context, key string, window time.Duration) (bool, error)
}
