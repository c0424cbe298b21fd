package fetchemails

import (
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/protocol"
)

// Factory creates FETCH_EMAILS steps.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config), nil
}

func (f *Factory) ID() string {
	return string(models.StepFetchEmails)
}

func (f *Factory) Name() string {
	return "Fetch Emails"
}

func (f *Factory) Description() string {
	return "Retrieves recent messages from a mailbox label for downstream steps."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{
				"type":        "string",
				"description": "Mailbox label to read from.",
				"default":     "INBOX",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of messages to retrieve.",
				"default":     10,
				"minimum":     1,
			},
		},
		"additionalProperties": true,
	}
}
