package forwardemails

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/protocol"
)

type sentNotification struct {
	destination string
	subject     string
	content     string
}

type capturingNotifier struct {
	sent     []sentNotification
	failWith error
}

func (n *capturingNotifier) Send(_ context.Context, destination, subject, content string) error {
	if n.failWith != nil {
		return n.failWith
	}

	n.sent = append(n.sent, sentNotification{destination, subject, content})

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRun(notifier notify.Notifier) *protocol.RunContext {
	wf := models.NewWorkflow("Forwarding", "")
	wf.DestinationType = models.DestinationGmail
	wf.DestinationEmail = "me@example.com"

	dispatcher := notify.NewDispatcher()
	dispatcher.Register(models.DestinationGmail, notifier)

	return &protocol.RunContext{
		Workflow:  wf,
		Notifiers: dispatcher,
		Fetched: []mail.Message{
			{ID: "m1", Subject: "Invoice", From: "billing@example.com", Body: "Pay 42"},
			{ID: "m2", Subject: "Lunch?", From: "friend@example.com", Body: "Tacos"},
		},
	}
}

func TestStep_ForwardsToWorkflowDestination(t *testing.T) {
	notifier := &capturingNotifier{}
	run := newRun(notifier)

	result, err := NewStep(nil).Execute(t.Context(), run, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"forwarded": 2, "destination_type": "gmail"}, result)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "me@example.com", notifier.sent[0].destination)
	assert.Equal(t, "Fwd: Invoice", notifier.sent[0].subject)
	assert.Equal(t, "Pay 42", notifier.sent[0].content)
	assert.Equal(t, "Fwd: Lunch?", notifier.sent[1].subject)
}

func TestStep_ExplicitDestinationWins(t *testing.T) {
	notifier := &capturingNotifier{}
	run := newRun(notifier)

	step := NewStep(map[string]any{
		"destination":      "other@example.com",
		"destination_type": "gmail",
	})

	_, err := step.Execute(t.Context(), run, discardLogger())
	require.NoError(t, err)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "other@example.com", notifier.sent[0].destination)
}

func TestStep_IncludeSummaryPrefixesBody(t *testing.T) {
	notifier := &capturingNotifier{}
	run := newRun(notifier)
	run.Summaries = map[string]string{"m1": "Invoice 42 is due"}

	step := NewStep(map[string]any{"include_summary": true})

	_, err := step.Execute(t.Context(), run, discardLogger())
	require.NoError(t, err)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "Summary: Invoice 42 is due\n\nPay 42", notifier.sent[0].content)
	// No summary for m2, the body goes out untouched.
	assert.Equal(t, "Tacos", notifier.sent[1].content)
}

func TestStep_MissingDestinationFails(t *testing.T) {
	notifier := &capturingNotifier{}
	run := newRun(notifier)
	run.Workflow.DestinationEmail = ""

	_, err := NewStep(nil).Execute(t.Context(), run, discardLogger())
	assert.ErrorIs(t, err, notify.ErrDestinationNotSpecified)
	assert.Empty(t, notifier.sent)
}

func TestStep_DeliveryFailureAborts(t *testing.T) {
	notifier := &capturingNotifier{failWith: errors.New("smtp down")}
	run := newRun(notifier)

	_, err := NewStep(nil).Execute(t.Context(), run, discardLogger())
	assert.ErrorContains(t, err, "failed to forward message m1")
}
