package web

import (
	"time"

	"github.com/geomail/geomail/pkg/models"
)

// CreateWorkflowRequest creates a workflow with the default step pipeline.
// Step structure is fixed; requests configure parameters and scheduling.
type CreateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`

	Interval       int64  `json:"interval"        validate:"min=0"`
	CronExpression string `json:"cron_expression"`
	IsContinuous   bool   `json:"is_continuous"`
	StepDelay      int64  `json:"step_delay"      validate:"min=0"`

	ExpirationOption     models.ExpirationOption `json:"expiration_option"`
	CustomExpirationDate *time.Time              `json:"custom_expiration_date"`

	DestinationType   models.DestinationType `json:"destination_type"`
	DestinationEmail  string                 `json:"destination_email"  validate:"omitempty,email"`
	DestinationChatID string                 `json:"destination_chat_id"`
}

// UpdateWorkflowRequest applies a partial update. Nil fields are untouched.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`

	Interval       *int64  `json:"interval"        validate:"omitempty,min=0"`
	CronExpression *string `json:"cron_expression"`
	IsContinuous   *bool   `json:"is_continuous"`
	StepDelay      *int64  `json:"step_delay"      validate:"omitempty,min=0"`

	ExpirationOption     *models.ExpirationOption `json:"expiration_option"`
	CustomExpirationDate *time.Time               `json:"custom_expiration_date"`

	DestinationType   *models.DestinationType `json:"destination_type"`
	DestinationEmail  *string                 `json:"destination_email"  validate:"omitempty,email"`
	DestinationChatID *string                 `json:"destination_chat_id"`

	// StepParameters replaces the parameter bag of the step with the given
	// id. Structure stays fixed; only parameters change.
	StepParameters map[string]map[string]any `json:"step_parameters"`
}

// CreateAlertRequest creates a geofence alert.
type CreateAlertRequest struct {
	Name      string  `json:"name"      validate:"required,min=3,max=100"`
	Latitude  float64 `json:"latitude"  validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	RadiusM   float64 `json:"radius_m"  validate:"gt=0"`

	Transitions []models.TransitionType `json:"transitions"`
	Cooldown    int64                   `json:"cooldown" validate:"min=0"`

	Channel           models.DestinationType `json:"channel"`
	DestinationEmail  string                 `json:"destination_email"  validate:"omitempty,email"`
	DestinationChatID string                 `json:"destination_chat_id"`
}

// UpdateAlertRequest applies a partial update to an alert.
type UpdateAlertRequest struct {
	Name      *string  `json:"name"      validate:"omitempty,min=3,max=100"`
	Latitude  *float64 `json:"latitude"  validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	RadiusM   *float64 `json:"radius_m"  validate:"omitempty,gt=0"`

	Transitions []models.TransitionType `json:"transitions"`
	Cooldown    *int64                  `json:"cooldown" validate:"omitempty,min=0"`
	Enabled     *bool                   `json:"enabled"`

	Channel           *models.DestinationType `json:"channel"`
	DestinationEmail  *string                 `json:"destination_email"  validate:"omitempty,email"`
	DestinationChatID *string                 `json:"destination_chat_id"`
}

// TriggerAlertRequest simulates a boundary crossing.
type TriggerAlertRequest struct {
	Transition models.TransitionType `json:"transition" validate:"required,oneof=ENTER EXIT"`
}

// PairingResponse is returned when a deep-link pairing begins.
type PairingResponse struct {
	DeepLink string                `json:"deep_link"`
	Status   models.TelegramStatus `json:"status"`
}
