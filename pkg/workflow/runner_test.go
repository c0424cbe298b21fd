package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/account"
	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/persistence/memory"
	"github.com/geomail/geomail/pkg/registry"
	"github.com/geomail/geomail/pkg/steps/batchsummaries"
	"github.com/geomail/geomail/pkg/steps/fetchemails"
	"github.com/geomail/geomail/pkg/steps/forwardemails"
	"github.com/geomail/geomail/pkg/steps/summarizeemails"
)

type fakeMail struct {
	messages []mail.Message
	sent     []mail.OutgoingMessage
}

func (f *fakeMail) ListRecent(_ context.Context, _ string, max int) ([]mail.MessageRef, error) {
	refs := make([]mail.MessageRef, 0, len(f.messages))

	for _, m := range f.messages {
		refs = append(refs, mail.MessageRef{ID: m.ID, Subject: m.Subject, From: m.From, Date: m.Date})
	}

	if len(refs) > max {
		refs = refs[:max]
	}

	return refs, nil
}

func (f *fakeMail) Get(_ context.Context, id string) (*mail.Message, error) {
	for _, m := range f.messages {
		if m.ID == id {
			found := m

			return &found, nil
		}
	}

	return nil, fmt.Errorf("message %s not found", id)
}

func (f *fakeMail) Send(_ context.Context, message mail.OutgoingMessage) (string, error) {
	f.sent = append(f.sent, message)

	return fmt.Sprintf("sent-%d", len(f.sent)), nil
}

type fakeSummarizer struct {
	initialized bool
	calls       int
}

func (f *fakeSummarizer) Initialize(_ context.Context, _ string) error {
	f.initialized = true

	return nil
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.calls++

	if len(text) > 10 {
		text = text[:10]
	}

	return "summary of " + text, nil
}

type sentNotification struct {
	destination string
	subject     string
	content     string
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) Send(_ context.Context, destination, subject, content string) error {
	f.sent = append(f.sent, sentNotification{destination, subject, content})

	return nil
}

type fakeArmer struct {
	armed     []string
	cancelled []string
}

func (f *fakeArmer) Arm(_ context.Context, wf *models.Workflow) error {
	f.armed = append(f.armed, wf.ID)

	return nil
}

func (f *fakeArmer) Cancel(_ context.Context, workflowID string) error {
	f.cancelled = append(f.cancelled, workflowID)

	return nil
}

type runnerFixture struct {
	runner     *Runner
	repository *Repository
	guard      Guard
	mail       *fakeMail
	notifier   *fakeNotifier
	armer      *fakeArmer
	now        time.Time
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.NewRegistry(logger)
	reg.RegisterStep(fetchemails.NewFactory())
	reg.RegisterStep(summarizeemails.NewFactory())
	reg.RegisterStep(forwardemails.NewFactory())
	reg.RegisterStep(batchsummaries.NewFactory())

	mailClient := &fakeMail{messages: []mail.Message{
		{ID: "m1", Subject: "Invoice 42", From: "billing@example.com", Body: "Please pay invoice 42."},
		{ID: "m2", Subject: "Lunch?", From: "friend@example.com", Body: "Sushi at noon?"},
	}}

	notifier := &fakeNotifier{}
	notifiers := notify.NewDispatcher()
	notifiers.Register(models.DestinationGmail, notifier)
	notifiers.Register(models.DestinationDeeplink, notifier)

	repository := NewRepository(memory.NewPersistence())
	guard := NewMemoryGuard()
	armer := &fakeArmer{}

	runner := NewRunner(RunnerConfig{
		Repository: repository,
		Registry:   reg,
		Accounts:   account.NewStaticProvider("me@example.com", "Me"),
		Mail:       mailClient,
		Summarizer: &fakeSummarizer{},
		Notifiers:  notifiers,
		Guard:      guard,
		Armer:      armer,
		Logger:     logger,
	})

	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	runner.SetClock(func() time.Time { return now })

	return &runnerFixture{
		runner:     runner,
		repository: repository,
		guard:      guard,
		mail:       mailClient,
		notifier:   notifier,
		armer:      armer,
		now:        now,
	}
}

func TestRunner_OneShotCompletes(t *testing.T) {
	f := newRunnerFixture(t)

	wf := models.NewWorkflow("One shot", "")
	wf.DestinationType = models.DestinationGmail
	wf.DestinationEmail = "dest@example.com"
	wf.Steps[3].Parameters = map[string]any{"sender_filter": "billing"}
	require.NoError(t, f.repository.Save(t.Context(), wf))

	require.NoError(t, f.runner.Execute(t.Context(), wf.ID))

	loaded, err := f.repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, loaded.Status)
	assert.False(t, loaded.IsActive)
	assert.Nil(t, loaded.NextExecutionTime)
	assert.Empty(t, loaded.ExecutionError)

	require.Len(t, loaded.Steps, 4)
	for _, step := range loaded.Steps {
		assert.Equal(t, models.StepStatusCompleted, step.Status, "step %s", step.Type)
	}

	// Two forwards plus one digest limited by the sender filter.
	require.Len(t, f.notifier.sent, 3)
	assert.Equal(t, "Fwd: Invoice 42", f.notifier.sent[0].subject)
	assert.Contains(t, f.notifier.sent[2].subject, "digest")
	assert.Contains(t, f.notifier.sent[2].content, "Invoice 42")
	assert.NotContains(t, f.notifier.sent[2].content, "Lunch?")

	assert.Empty(t, f.armer.armed)
}

func TestRunner_MissingDestinationFailsDeliverySteps(t *testing.T) {
	f := newRunnerFixture(t)

	wf := models.NewWorkflow("No destination", "")
	wf.Interval = 60_000
	require.NoError(t, f.repository.Save(t.Context(), wf))

	require.NoError(t, f.runner.Execute(t.Context(), wf.ID))

	loaded, err := f.repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusCompleted, loaded.Steps[0].Status)
	assert.Equal(t, models.StepStatusCompleted, loaded.Steps[1].Status)
	assert.Equal(t, models.StepStatusError, loaded.Steps[2].Status)
	assert.Equal(t, "destination not specified", loaded.Steps[2].Error)
	assert.Equal(t, models.StepStatusError, loaded.Steps[3].Status)
	assert.Equal(t, "destination not specified", loaded.Steps[3].Error)

	// Step failures do not fail the run; the recurring workflow is re-armed.
	assert.Equal(t, models.WorkflowStatusScheduled, loaded.Status)
	assert.True(t, loaded.IsActive)
	assert.True(t, loaded.IsScheduled)
	require.NotNil(t, loaded.NextExecutionTime)
	assert.Equal(t, f.now.Add(time.Minute), *loaded.NextExecutionTime)
	assert.Equal(t, []string{wf.ID}, f.armer.armed)
}

func TestRunner_DropsConcurrentExecution(t *testing.T) {
	f := newRunnerFixture(t)

	wf := models.NewWorkflow("Guarded", "")
	require.NoError(t, f.repository.Save(t.Context(), wf))

	require.True(t, f.guard.TryAcquire(wf.ID))
	defer f.guard.Release(wf.ID)

	err := f.runner.Execute(t.Context(), wf.ID)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// The rejected attempt leaves the record untouched.
	loaded, err := f.repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, loaded.Status)

	for _, step := range loaded.Steps {
		assert.Equal(t, models.StepStatusPending, step.Status)
	}
}

func TestRunner_RejectsExpiredWorkflow(t *testing.T) {
	f := newRunnerFixture(t)

	expired := f.now.Add(-time.Hour)
	wf := models.NewWorkflow("Expired", "")
	wf.ExpirationOption = models.ExpirationFixedDate
	wf.CustomExpirationDate = &expired
	require.NoError(t, f.repository.Save(t.Context(), wf))

	err := f.runner.Execute(t.Context(), wf.ID)
	assert.ErrorIs(t, err, ErrWorkflowExpired)

	loaded, err := f.repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, loaded.Status)
	assert.Empty(t, f.notifier.sent)
}

func TestRunner_RejectsWithoutAccount(t *testing.T) {
	f := newRunnerFixture(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := NewRunner(RunnerConfig{
		Repository: f.repository,
		Registry:   registry.NewRegistry(logger),
		Accounts:   account.NewStaticProvider("", ""),
		Mail:       f.mail,
		Summarizer: &fakeSummarizer{},
		Notifiers:  notify.NewDispatcher(),
		Logger:     logger,
	})

	wf := models.NewWorkflow("No account", "")
	require.NoError(t, f.repository.Save(t.Context(), wf))

	err := runner.Execute(t.Context(), wf.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrNoAccount)

	loaded, err := f.repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, loaded.Status)
}

func TestRunner_UnknownWorkflow(t *testing.T) {
	f := newRunnerFixture(t)

	err := f.runner.Execute(t.Context(), "missing")
	assert.Error(t, err)
}
