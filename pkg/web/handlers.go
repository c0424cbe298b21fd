// Package web provides the REST API for workflow and geofence alert
// management.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/geomail/geomail/pkg/eventbus"
	"github.com/geomail/geomail/pkg/events"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence"
	"github.com/geomail/geomail/pkg/registry"
	"github.com/geomail/geomail/pkg/telegram"
	"github.com/geomail/geomail/pkg/workflow"
)

type APIHandlers struct {
	workflows *workflow.Repository
	alerts    persistence.AlertRepository
	armer     workflow.Armer
	pairing   *telegram.Pairing
	bus       eventbus.EventPublisher
	registry  *registry.Registry
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	workflows *workflow.Repository,
	alerts persistence.AlertRepository,
	armer workflow.Armer,
	pairing *telegram.Pairing,
	bus eventbus.EventPublisher,
	reg *registry.Registry,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		alerts:    alerts,
		armer:     armer,
		pairing:   pairing,
		bus:       bus,
		registry:  reg,
		validator: validate,
		logger:    logger.With("module", "api_handlers"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflows.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"steps":      h.registry.AvailableSteps(),
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf := models.NewWorkflow(req.Name, req.Description)
	wf.Interval = req.Interval
	wf.CronExpression = req.CronExpression
	wf.IsContinuous = req.IsContinuous
	wf.StepDelay = req.StepDelay
	wf.DestinationType = req.DestinationType
	wf.DestinationEmail = req.DestinationEmail
	wf.DestinationChatID = req.DestinationChatID

	if req.ExpirationOption != "" {
		wf.ExpirationOption = req.ExpirationOption
	}

	wf.CustomExpirationDate = req.CustomExpirationDate

	created, err := h.workflows.Create(c.Context(), wf)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	// The runner persists step progress while a run is live; an edit now
	// would clobber it. Callers retry once the run settles.
	if existing.Status == models.WorkflowStatusRunning {
		return conflict(c, "Workflow is currently running; retry after the run finishes")
	}

	applyWorkflowUpdate(existing, &req)

	updated, err := h.workflows.Update(c.Context(), id, existing)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.armer.Cancel(c.Context(), id); err != nil && !persistence.IsWorkflowNotFound(err) {
		h.logger.Warn("Failed to cancel schedule before delete", "workflow_id", id, "error", err)
	}

	if err := h.workflows.Delete(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow publishes a manual due event. The runner applies the same
// re-entrancy guard as scheduled runs, so a concurrent run drops this one.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if wf.IsExpired(time.Now()) {
		return handleDomainError(c, workflow.ErrWorkflowExpired)
	}

	event := events.WorkflowDue{
		BaseEvent: h.baseEvent(events.WorkflowDueEvent, id),
		Manual:    true,
	}

	if err := h.bus.Publish(c.Context(), id, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"workflow_id": id, "status": "triggered"})
}

func (h *APIHandlers) EnableWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if !wf.IsRecurring() {
		return badRequest(c, "workflow has no interval or cron expression to schedule")
	}

	if wf.IsExpired(time.Now()) {
		return handleDomainError(c, workflow.ErrWorkflowExpired)
	}

	if err := h.armer.Arm(c.Context(), wf); err != nil {
		return internalError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) DisableWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.armer.Cancel(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	wf, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	wf.IsActive = false
	if err := h.workflows.Save(c.Context(), wf); err != nil {
		return internalError(c, err)
	}

	return c.JSON(wf)
}

// BeginPairing mints a deep link and starts the background poll loop that
// waits for the /start handshake.
func (h *APIHandlers) BeginPairing(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	deepLink, err := h.pairing.Begin(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	h.publishPairingEvent(c.Context(), id, events.PairingRequested{
		BaseEvent: h.baseEvent(events.PairingRequestedEvent, id),
		DeepLink:  deepLink,
	})

	go func() {
		err := h.pairing.Poll(context.Background(), id, func(ctx context.Context, workflowID, chatID, username string) {
			h.publishPairingEvent(ctx, workflowID, events.PairingConnected{
				BaseEvent: h.baseEvent(events.PairingConnectedEvent, workflowID),
				ChatID:    chatID,
				Username:  username,
			})
		})
		if err != nil {
			h.logger.Warn("Pairing poll ended with error", "workflow_id", id, "error", err)
		}
	}()

	return c.JSON(PairingResponse{DeepLink: deepLink, Status: models.TelegramWaiting})
}

func (h *APIHandlers) PairingStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(wf.Telegram)
}

func (h *APIHandlers) DisconnectPairing(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.pairing.Disconnect(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetAlerts(c fiber.Ctx) error {
	alerts, err := h.alerts.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"alerts": alerts})
}

func (h *APIHandlers) GetAlert(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Alert ID is required")
	}

	alert, err := h.alerts.GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(alert)
}

func (h *APIHandlers) CreateAlert(c fiber.Ctx) error {
	var req CreateAlertRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	alert := models.NewGeofenceAlert(req.Name, req.Latitude, req.Longitude, req.RadiusM)
	alert.Transitions = req.Transitions
	alert.Cooldown = req.Cooldown
	alert.Channel = req.Channel
	alert.DestinationEmail = req.DestinationEmail
	alert.DestinationChatID = req.DestinationChatID

	if err := h.alerts.Save(c.Context(), alert); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(alert)
}

func (h *APIHandlers) UpdateAlert(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Alert ID is required")
	}

	var req UpdateAlertRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	alert, err := h.alerts.GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	applyAlertUpdate(alert, &req)
	alert.UpdatedAt = time.Now().UTC()

	if err := h.alerts.Save(c.Context(), alert); err != nil {
		return internalError(c, err)
	}

	return c.JSON(alert)
}

func (h *APIHandlers) DeleteAlert(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Alert ID is required")
	}

	if _, err := h.alerts.GetByID(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	if err := h.alerts.Delete(c.Context(), id); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerAlert simulates a boundary crossing for testing a configured
// alert. The transition is published on the bus; the agent's fanout applies
// the cooldown and delivers the notification.
func (h *APIHandlers) TriggerAlert(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Alert ID is required")
	}

	var req TriggerAlertRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	alert, err := h.alerts.GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if !alert.Enabled {
		return conflict(c, "geofence alert is disabled")
	}

	event := events.GeofenceTransition{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.GeofenceTransitionEvent,
			Timestamp: time.Now().UTC(),
		},
		AlertID:    alert.ID,
		Transition: req.Transition,
		Latitude:   alert.Latitude,
		Longitude:  alert.Longitude,
		RadiusM:    alert.RadiusM,
		Manual:     true,
	}

	if err := h.bus.Publish(c.Context(), alert.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"alert_id": id, "status": "triggered"})
}

func (h *APIHandlers) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// publishPairingEvent is best effort: pairing completes whether or not the
// bus accepts the event.
func (h *APIHandlers) publishPairingEvent(ctx context.Context, workflowID string, event eventbus.Event) {
	if err := h.bus.Publish(ctx, workflowID, event); err != nil {
		h.logger.Warn("Failed to publish pairing event", "workflow_id", workflowID, "error", err)
	}
}

func applyWorkflowUpdate(wf *models.Workflow, req *UpdateWorkflowRequest) {
	if req.Name != nil {
		wf.Name = *req.Name
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.Interval != nil {
		wf.Interval = *req.Interval
	}

	if req.CronExpression != nil {
		wf.CronExpression = *req.CronExpression
	}

	if req.IsContinuous != nil {
		wf.IsContinuous = *req.IsContinuous
	}

	if req.StepDelay != nil {
		wf.StepDelay = *req.StepDelay
	}

	if req.ExpirationOption != nil {
		wf.ExpirationOption = *req.ExpirationOption
	}

	if req.CustomExpirationDate != nil {
		wf.CustomExpirationDate = req.CustomExpirationDate
	}

	if req.DestinationType != nil {
		wf.DestinationType = *req.DestinationType
	}

	if req.DestinationEmail != nil {
		wf.DestinationEmail = *req.DestinationEmail
	}

	if req.DestinationChatID != nil {
		wf.DestinationChatID = *req.DestinationChatID
	}

	for stepID, params := range req.StepParameters {
		for i := range wf.Steps {
			if wf.Steps[i].ID == stepID {
				wf.Steps[i].Parameters = params
			}
		}
	}
}

func applyAlertUpdate(alert *models.GeofenceAlert, req *UpdateAlertRequest) {
	if req.Name != nil {
		alert.Name = *req.Name
	}

	if req.Latitude != nil {
		alert.Latitude = *req.Latitude
	}

	if req.Longitude != nil {
		alert.Longitude = *req.Longitude
	}

	if req.RadiusM != nil {
		alert.RadiusM = *req.RadiusM
	}

	if req.Transitions != nil {
		alert.Transitions = req.Transitions
	}

	if req.Cooldown != nil {
		alert.Cooldown = *req.Cooldown
	}

	if req.Enabled != nil {
		alert.Enabled = *req.Enabled
	}

	if req.Channel != nil {
		alert.Channel = *req.Channel
	}

	if req.DestinationEmail != nil {
		alert.DestinationEmail = *req.DestinationEmail
	}

	if req.DestinationChatID != nil {
		alert.DestinationChatID = *req.DestinationChatID
	}
}
