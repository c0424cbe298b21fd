// Package summarizeemails implements the SUMMARIZE_EMAILS workflow step.
package summarizeemails

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/protocol"
	"github.com/geomail/geomail/pkg/summarize"
)

// Step condenses every fetched message through the AI collaborator. A
// disabled step succeeds trivially so the rest of the pipeline still runs.
type Step struct {
	Enabled bool
	Model   string
}

// NewStep creates the step from persisted parameters.
func NewStep(config map[string]any) *Step {
	params := models.DecodeSummarizeEmailsParams(config)

	return &Step{
		Enabled: params.Enabled,
		Model:   params.Model,
	}
}

func (s *Step) Execute(ctx context.Context, run *protocol.RunContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "summarize_emails_step")

	if !s.Enabled {
		logger.InfoContext(ctx, "Summarization disabled, skipping")

		return map[string]any{"skipped": "summarization disabled"}, nil
	}

	if err := run.Summarizer.Initialize(ctx, s.Model); err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}

	if run.Summaries == nil {
		run.Summaries = make(map[string]string)
	}

	summarized := 0

	for _, message := range run.Fetched {
		content := message.Body
		if content == "" {
			content = message.Subject
		}

		// Bound content to the model context before prompting.
		content = summarize.Truncate(content, s.Model)

		summary, err := run.Summarizer.Summarize(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize message %s: %w", message.ID, err)
		}

		run.Summaries[message.ID] = summary
		summarized++
	}

	logger.InfoContext(ctx, "Summarized emails", "count", summarized)

	return map[string]any{"summarized": summarized}, nil
}
