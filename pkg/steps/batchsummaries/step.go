// Package batchsummaries implements the SEND_BATCH_SUMMARIES workflow step.
package batchsummaries

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/protocol"
	"github.com/geomail/geomail/pkg/summarize"
)

// Step filters fetched messages by sender and subject, summarizes up to
// MaxSummaries of them, and delivers one aggregated digest. InterCallDelay
// spaces consecutive summarization calls so the step does not hammer the
// model endpoint; it comes from the inter_call_delay parameter.
type Step struct {
	Destination     string
	DestinationType models.DestinationType
	SenderFilter    string
	SubjectFilter   string
	MaxSummaries    int

	InterCallDelay time.Duration
}

// NewStep creates the step from persisted parameters.
func NewStep(config map[string]any) *Step {
	params := models.DecodeBatchSummariesParams(config)

	return &Step{
		Destination:     params.Destination,
		DestinationType: params.DestinationType,
		SenderFilter:    params.SenderFilter,
		SubjectFilter:   params.SubjectFilter,
		MaxSummaries:    params.MaxSummaries,
		InterCallDelay:  time.Duration(params.InterCallDelayMs) * time.Millisecond,
	}
}

func (s *Step) Execute(ctx context.Context, run *protocol.RunContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "batch_summaries_step")

	destination, kind, err := notify.ResolveDestination(s.Destination, s.DestinationType, run.Workflow)
	if err != nil {
		return nil, err
	}

	notifier, err := run.Notifiers.For(kind)
	if err != nil {
		return nil, err
	}

	matched := s.filter(run.Fetched)
	if len(matched) == 0 {
		logger.InfoContext(ctx, "No messages matched batch filters")

		return map[string]any{"sent": 0, "matched": 0}, nil
	}

	if len(matched) > s.MaxSummaries {
		matched = matched[:s.MaxSummaries]
	}

	var digest strings.Builder

	for i, message := range matched {
		summary, err := s.summaryFor(ctx, run, message.ID, message.Subject, message.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize message %s: %w", message.ID, err)
		}

		fmt.Fprintf(&digest, "%d. %s (from %s)\n%s\n\n", i+1, message.Subject, message.From, summary)

		if s.InterCallDelay > 0 && i < len(matched)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.InterCallDelay):
			}
		}
	}

	subject := fmt.Sprintf("Email digest (%d messages)", len(matched))
	if err := notifier.Send(ctx, destination, subject, strings.TrimSpace(digest.String())); err != nil {
		return nil, fmt.Errorf("failed to send batch summaries: %w", err)
	}

	logger.InfoContext(ctx, "Sent batch summaries",
		"matched", len(matched),
		"destination_type", string(kind))

	return map[string]any{"sent": 1, "matched": len(matched)}, nil
}

// filter keeps messages matching both keyword filters. An empty filter
// matches everything; matching is case-insensitive substring.
func (s *Step) filter(messages []mail.Message) []mail.Message {
	matched := make([]mail.Message, 0, len(messages))

	for _, message := range messages {
		if s.SenderFilter != "" && !containsFold(message.From, s.SenderFilter) {
			continue
		}

		if s.SubjectFilter != "" && !containsFold(message.Subject, s.SubjectFilter) {
			continue
		}

		matched = append(matched, message)
	}

	return matched
}

// summaryFor reuses a digest produced by an earlier summarize step when one
// exists, so the batch step only pays for messages nothing summarized yet.
func (s *Step) summaryFor(ctx context.Context, run *protocol.RunContext, id, subject, body string) (string, error) {
	if summary, ok := run.Summaries[id]; ok && summary != "" {
		return summary, nil
	}

	if err := run.Summarizer.Initialize(ctx, ""); err != nil {
		return "", err
	}

	content := body
	if content == "" {
		content = subject
	}

	return run.Summarizer.Summarize(ctx, summarize.Truncate(content, ""))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
