// Package memory provides an in-memory persistence backend used by tests and
// single-process setups.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence"
)

// Persistence keeps every record in process memory.
type Persistence struct {
	workflowRepo *WorkflowRepository
	alertRepo    *AlertRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflowRepo: &WorkflowRepository{workflows: make(map[string]*models.Workflow)},
		alertRepo:    &AlertRepository{alerts: make(map[string]*models.GeofenceAlert)},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) AlertRepository() persistence.AlertRepository {
	return p.alertRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

// WorkflowRepository is a map-backed workflow store.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

func (wr *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(wr.workflows))
	for _, workflow := range wr.workflows {
		copied := *workflow
		copied.Steps = append([]models.WorkflowStep(nil), workflow.Steps...)
		workflows = append(workflows, &copied)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	workflow, ok := wr.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	copied := *workflow
	copied.Steps = append([]models.WorkflowStep(nil), workflow.Steps...)

	return &copied, nil
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	copied := *workflow
	copied.Steps = append([]models.WorkflowStep(nil), workflow.Steps...)
	wr.workflows[workflow.ID] = &copied

	return nil
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	delete(wr.workflows, id)

	return nil
}

// AlertRepository is a map-backed geofence alert store.
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*models.GeofenceAlert
}

func (ar *AlertRepository) List(_ context.Context) ([]*models.GeofenceAlert, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	alerts := make([]*models.GeofenceAlert, 0, len(ar.alerts))
	for _, alert := range ar.alerts {
		copied := *alert
		alerts = append(alerts, &copied)
	}

	return alerts, nil
}

func (ar *AlertRepository) GetByID(_ context.Context, id string) (*models.GeofenceAlert, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	alert, ok := ar.alerts[id]
	if !ok {
		return nil, persistence.ErrAlertNotFound
	}

	copied := *alert

	return &copied, nil
}

func (ar *AlertRepository) Save(_ context.Context, alert *models.GeofenceAlert) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}

	alert.UpdatedAt = now

	copied := *alert
	ar.alerts[alert.ID] = &copied

	return nil
}

func (ar *AlertRepository) Delete(_ context.Context, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	delete(ar.alerts, id)

	return nil
}

// PairingStateStore keeps the bot update offset in memory.
type PairingStateStore struct {
	mu     sync.Mutex
	offset int64
}

func NewPairingStateStore() *PairingStateStore {
	return &PairingStateStore{}
}

func (s *PairingStateStore) UpdateOffset(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.offset, nil
}

func (s *PairingStateStore) SetUpdateOffset(_ context.Context, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offset = offset

	return nil
}

// CooldownStore tracks suppression windows in memory.
type CooldownStore struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewCooldownStore() *CooldownStore {
	return &CooldownStore{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

// NewCooldownStoreWithClock allows tests to control time.
func NewCooldownStoreWithClock(now func() time.Time) *CooldownStore {
	return &CooldownStore{
		until: make(map[string]time.Time),
		now:   now,
	}
}

func (s *CooldownStore) TryAcquire(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if deadline, ok := s.until[key]; ok && now.Before(deadline) {
		return false, nil
	}

	s.until[key] = now.Add(window)

	return true, nil
}
