package batchsummaries

import (
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/protocol"
)

// Factory creates SEND_BATCH_SUMMARIES steps.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config), nil
}

func (f *Factory) ID() string {
	return string(models.StepSendBatchSummaries)
}

func (f *Factory) Name() string {
	return "Send Batch Summaries"
}

func (f *Factory) Description() string {
	return "Filters fetched messages, summarizes them, and delivers one aggregated digest."
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
			"sender_filter": map[string]any{
				"type":        "string",
				"description": "Keep only messages whose sender contains this text.",
			},
			"subject_filter": map[string]any{
				"type":        "string",
				"description": "Keep only messages whose subject contains this text.",
			},
			"max_summaries": map[string]any{
				"type":        "integer",
				"description": "Upper bound on messages included in the digest.",
				"default":     5,
				"minimum":     1,
			},
			"inter_call_delay": map[string]any{
				"type":        "integer",
				"description": "Milliseconds to wait between summarization calls; 0 disables pacing.",
				"default":     500,
				"minimum":     0,
			},
		},
		"additionalProperties": true,
	}
}
