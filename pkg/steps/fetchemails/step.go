// Package fetchemails implements the FETCH_EMAILS workflow step.
package fetchemails

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/protocol"
)

const defaultTimeout = 45 * time.Second

// Step retrieves recent messages from a mailbox label and loads them into
// the run context for downstream steps.
type Step struct {
	Label      string
	MaxResults int
	Timeout    time.Duration
}

// NewStep creates the step from persisted parameters.
func NewStep(config map[string]any) *Step {
	params := models.DecodeFetchEmailsParams(config)

	return &Step{
		Label:      params.Label,
		MaxResults: params.MaxResults,
		Timeout:    defaultTimeout,
	}
}

// Execute lists refs and fetches each message body, bounded by the step
// timeout. A timeout surfaces as a step failure with a clear message, never
// as a raw context cancellation.
func (s *Step) Execute(ctx context.Context, run *protocol.RunContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "fetch_emails_step", "label", s.Label)
	logger.InfoContext(ctx, "Fetching emails")

	type result struct {
		messages []mail.Message
		err      error
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	done := make(chan result, 1)

	go func() {
		messages, err := s.fetch(ctx, run.Mail)
		done <- result{messages: messages, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch emails timed out after %s", s.Timeout)
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to fetch emails: %w", res.err)
		}

		run.Fetched = res.messages

		logger.InfoContext(ctx, "Fetched emails", "count", len(res.messages))

		return map[string]any{
			"count": len(res.messages),
			"label": s.Label,
		}, nil
	}
}

func (s *Step) fetch(ctx context.Context, client mail.Client) ([]mail.Message, error) {
	refs, err := client.ListRecent(ctx, s.Label, s.MaxResults)
	if err != nil {
		return nil, err
	}

	messages := make([]mail.Message, 0, len(refs))

	for _, ref := range refs {
		message, err := client.Get(ctx, ref.ID)
		if err != nil {
			// A single unreadable message does not fail the fetch; keep
			// the envelope data we already have.
			messages = append(messages, mail.Message{
				ID:      ref.ID,
				Subject: ref.Subject,
				From:    ref.From,
				Date:    ref.Date,
			})

			continue
		}

		messages = append(messages, *message)
	}

	return messages, nil
}
