package summarizeemails

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/protocol"
)

type fakeSummarizer struct {
	model     string
	failWith  error
	summaries int
}

func (f *fakeSummarizer) Initialize(_ context.Context, model string) error {
	f.model = model

	return nil
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}

	f.summaries++

	if len(text) > 10 {
		text = text[:10]
	}

	return "summary of " + text, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStep_SummarizesFetchedMessages(t *testing.T) {
	summarizer := &fakeSummarizer{}
	run := &protocol.RunContext{
		Summarizer: summarizer,
		Fetched: []mail.Message{
			{ID: "m1", Subject: "Invoice", Body: "Please pay invoice 42 by Friday."},
			{ID: "m2", Subject: "No body here"},
		},
	}

	step := NewStep(map[string]any{"model": "gpt-4o-mini"})

	result, err := step.Execute(t.Context(), run, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"summarized": 2}, result)
	assert.Equal(t, "gpt-4o-mini", summarizer.model)

	require.Len(t, run.Summaries, 2)
	assert.Equal(t, "summary of Please pay", run.Summaries["m1"])
	// A bodyless message is summarized from its subject.
	assert.Equal(t, "summary of No body he", run.Summaries["m2"])
}

func TestStep_DisabledSkips(t *testing.T) {
	summarizer := &fakeSummarizer{}
	run := &protocol.RunContext{
		Summarizer: summarizer,
		Fetched:    []mail.Message{{ID: "m1", Body: "content"}},
	}

	step := NewStep(map[string]any{"enabled": false})

	result, err := step.Execute(t.Context(), run, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"skipped": "summarization disabled"}, result)
	assert.Zero(t, summarizer.summaries)
	assert.Empty(t, run.Summaries)
}

func TestStep_SummarizerFailureFailsStep(t *testing.T) {
	run := &protocol.RunContext{
		Summarizer: &fakeSummarizer{failWith: errors.New("model overloaded")},
		Fetched:    []mail.Message{{ID: "m1", Body: "content"}},
	}

	_, err := NewStep(nil).Execute(t.Context(), run, discardLogger())
	assert.ErrorContains(t, err, "failed to summarize message m1")
}
