package forwardemails

import (
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/protocol"
)

// Factory creates FORWARD_EMAILS steps.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config), nil
}

func (f *Factory) ID() string {
	return string(models.StepForwardEmails)
}

func (f *Factory) Name() string {
	return "Forward Emails"
}

func (f *Factory) Description() string {
	return "Relays fetched messages to a gmail or telegram destination."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"destination": map[string]any{
				"type":        "string",
				"description": "Explicit destination; falls back to the workflow destination when empty.",
			},
			"destination_type": map[string]any{
				"type": "string",
				"enum": []any{"gmail", "deeplink"},
			},
			"include_summary": map[string]any{
				"type":        "boolean",
				"description": "Prepend the message summary when one was produced.",
				"default":     false,
			},
		},
		"additionalProperties": true,
	}
}
