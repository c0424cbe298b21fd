// Package forwardemails implements the FORWARD_EMAILS workflow step.
package forwardemails

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/protocol"
)

// Step relays each fetched message to the resolved destination, one delivery
// per message. A failed delivery aborts the step.
type Step struct {
	Destination     string
	DestinationType models.DestinationType
	IncludeSummary  bool
}

// NewStep creates the step from persisted parameters.
func NewStep(config map[string]any) *Step {
	params := models.DecodeForwardEmailsParams(config)

	return &Step{
		Destination:     params.Destination,
		DestinationType: params.DestinationType,
		IncludeSummary:  params.IncludeSummary,
	}
}

func (s *Step) Execute(ctx context.Context, run *protocol.RunContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "forward_emails_step")

	destination, kind, err := notify.ResolveDestination(s.Destination, s.DestinationType, run.Workflow)
	if err != nil {
		return nil, err
	}

	notifier, err := run.Notifiers.For(kind)
	if err != nil {
		return nil, err
	}

	forwarded := 0

	for _, message := range run.Fetched {
		subject := "Fwd: " + message.Subject

		body := message.Body
		if s.IncludeSummary {
			if summary, ok := run.Summaries[message.ID]; ok && summary != "" {
				body = "Summary: " + summary + "\n\n" + body
			}
		}

		if err := notifier.Send(ctx, destination, subject, body); err != nil {
			return nil, fmt.Errorf("failed to forward message %s: %w", message.ID, err)
		}

		forwarded++
	}

	logger.InfoContext(ctx, "Forwarded emails",
		"count", forwarded,
		"destination_type", string(kind))

	return map[string]any{"forwarded": forwarded, "destination_type": string(kind)}, nil
}
