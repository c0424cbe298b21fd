// Package events defines event types and structures for workflow lifecycle
// and geofence notifications.
package events

import (
	"time"

	"github.com/geomail/geomail/pkg/models"
)

type EventType string

// Topic carries every event on the bus.
const Topic = "geomail.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Scheduling and workflow lifecycle events.
	WorkflowDueEvent      EventType = "workflow.due"
	WorkflowStartedEvent  EventType = "workflow.started"
	StepCompletedEvent    EventType = "workflow.step.completed"
	WorkflowFinishedEvent EventType = "workflow.finished"
	WorkflowFailedEvent   EventType = "workflow.failed"

	// Telegram pairing events.
	PairingRequestedEvent EventType = "pairing.requested"
	PairingConnectedEvent EventType = "pairing.connected"

	// Geofence events.
	GeofenceTransitionEvent EventType = "geofence.transition"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WorkflowDue is published when a scheduled deadline elapses or a manual
// trigger requests an immediate run.
type WorkflowDue struct {
	BaseEvent

	Manual bool `json:"manual"`
}

func (w WorkflowDue) GetType() EventType {
	return WorkflowDueEvent
}

type WorkflowStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowName string `json:"workflow_name"`
}

func (w WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	StepID      string            `json:"step_id"`
	StepType    models.StepType   `json:"step_type"`
	Status      models.StepStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
}

func (s StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type WorkflowFinished struct {
	BaseEvent

	ExecutionID string                `json:"execution_id"`
	Status      models.WorkflowStatus `json:"status"`
	Duration    time.Duration         `json:"duration"`
}

func (w WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type WorkflowFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type PairingRequested struct {
	BaseEvent

	Token    string `json:"token"`
	DeepLink string `json:"deep_link"`
}

func (p PairingRequested) GetType() EventType {
	return PairingRequestedEvent
}

type PairingConnected struct {
	BaseEvent

	ChatID   string `json:"chat_id"`
	Username string `json:"username,omitempty"`
}

func (p PairingConnected) GetType() EventType {
	return PairingConnectedEvent
}

// GeofenceTransition is published when a device crosses an alert boundary,
// or when a manual trigger simulates one.
type GeofenceTransition struct {
	BaseEvent

	AlertID    string                `json:"alert_id"`
	Transition models.TransitionType `json:"transition"`
	Latitude   float64               `json:"latitude"`
	Longitude  float64               `json:"longitude"`
	RadiusM    float64               `json:"radius_m"`
	Manual     bool                  `json:"manual"`
}

func (g GeofenceTransition) GetType() EventType {
	return GeofenceTransitionEvent
}
