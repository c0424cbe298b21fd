package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/eventbus"
	"github.com/geomail/geomail/pkg/events"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence/memory"
	"github.com/geomail/geomail/pkg/workflow"
)

type capturingBus struct {
	published []eventbus.Event
	failWith  error
}

func (b *capturingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	if b.failWith != nil {
		return b.failWith
	}

	b.published = append(b.published, event)

	return nil
}

func newSchedulerFixture(t *testing.T) (*Scheduler, *workflow.Repository, *capturingBus, time.Time) {
	t.Helper()

	repository := workflow.NewRepository(memory.NewPersistence())
	bus := &capturingBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched := NewScheduler(repository, bus, logger)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	sched.SetClock(func() time.Time { return now })

	return sched, repository, bus, now
}

func TestScheduler_Arm(t *testing.T) {
	sched, repository, _, now := newSchedulerFixture(t)

	wf := models.NewWorkflow("Recurring", "")
	wf.Interval = 300_000
	require.NoError(t, repository.Save(t.Context(), wf))

	require.NoError(t, sched.Arm(t.Context(), wf))

	loaded, err := repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsScheduled)
	assert.True(t, loaded.IsActive)
	assert.Equal(t, models.WorkflowStatusScheduled, loaded.Status)
	require.NotNil(t, loaded.NextExecutionTime)
	assert.Equal(t, now.Add(5*time.Minute), *loaded.NextExecutionTime)
}

func TestScheduler_Arm_KeepsFutureDeadline(t *testing.T) {
	sched, repository, _, now := newSchedulerFixture(t)

	future := now.Add(10 * time.Minute)
	wf := models.NewWorkflow("Future", "")
	wf.Interval = 60_000
	wf.NextExecutionTime = &future
	require.NoError(t, repository.Save(t.Context(), wf))

	require.NoError(t, sched.Arm(t.Context(), wf))

	loaded, err := repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.NextExecutionTime)
	assert.Equal(t, future, *loaded.NextExecutionTime)
}

func TestScheduler_Cancel(t *testing.T) {
	sched, repository, _, _ := newSchedulerFixture(t)

	wf := models.NewWorkflow("Cancelled", "")
	wf.Interval = 60_000
	require.NoError(t, repository.Save(t.Context(), wf))
	require.NoError(t, sched.Arm(t.Context(), wf))

	require.NoError(t, sched.Cancel(t.Context(), wf.ID))

	loaded, err := repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsScheduled)
	assert.Nil(t, loaded.NextExecutionTime)
}

func TestScheduler_Tick_PublishesDueWorkflows(t *testing.T) {
	sched, repository, bus, now := newSchedulerFixture(t)

	due := now.Add(-time.Second)
	dueWf := models.NewWorkflow("Due", "")
	dueWf.Interval = 60_000
	dueWf.IsScheduled = true
	dueWf.IsActive = true
	dueWf.NextExecutionTime = &due
	require.NoError(t, repository.Save(t.Context(), dueWf))

	future := now.Add(time.Hour)
	futureWf := models.NewWorkflow("Not due", "")
	futureWf.Interval = 60_000
	futureWf.IsScheduled = true
	futureWf.IsActive = true
	futureWf.NextExecutionTime = &future
	require.NoError(t, repository.Save(t.Context(), futureWf))

	sched.Tick(t.Context())

	require.Len(t, bus.published, 1)
	event, ok := bus.published[0].(events.WorkflowDue)
	require.True(t, ok)
	assert.Equal(t, dueWf.ID, event.WorkflowID)

	// The due workflow is disarmed so the next tick cannot fire it again.
	loaded, err := repository.FetchByID(t.Context(), dueWf.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsScheduled)

	sched.Tick(t.Context())
	assert.Len(t, bus.published, 1)
}

func TestScheduler_Tick_RearmsOnPublishFailure(t *testing.T) {
	sched, repository, bus, now := newSchedulerFixture(t)

	due := now.Add(-time.Second)
	wf := models.NewWorkflow("Flaky bus", "")
	wf.Interval = 60_000
	wf.IsScheduled = true
	wf.IsActive = true
	wf.NextExecutionTime = &due
	require.NoError(t, repository.Save(t.Context(), wf))

	bus.failWith = errors.New("broker unavailable")
	sched.Tick(t.Context())

	// The deadline stays armed so the next tick retries.
	loaded, err := repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsScheduled)
	require.NotNil(t, loaded.NextExecutionTime)
	assert.Equal(t, due, *loaded.NextExecutionTime)

	bus.failWith = nil
	sched.Tick(t.Context())

	require.Len(t, bus.published, 1)
	event, ok := bus.published[0].(events.WorkflowDue)
	require.True(t, ok)
	assert.Equal(t, wf.ID, event.WorkflowID)
}

func TestScheduler_Tick_DeactivatesExpired(t *testing.T) {
	sched, repository, bus, now := newSchedulerFixture(t)

	due := now.Add(-time.Second)
	expiredAt := now.Add(-time.Hour)
	wf := models.NewWorkflow("Expired", "")
	wf.Interval = 60_000
	wf.IsScheduled = true
	wf.IsActive = true
	wf.NextExecutionTime = &due
	wf.ExpirationOption = models.ExpirationFixedDate
	wf.CustomExpirationDate = &expiredAt
	require.NoError(t, repository.Save(t.Context(), wf))

	sched.Tick(t.Context())

	assert.Empty(t, bus.published)

	loaded, err := repository.FetchByID(t.Context(), wf.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)
	assert.False(t, loaded.IsScheduled)
}

func TestScheduler_BootRescan(t *testing.T) {
	sched, repository, _, now := newSchedulerFixture(t)

	// Elapsed deadline gets recomputed from now.
	passed := now.Add(-time.Hour)
	stale := models.NewWorkflow("Stale deadline", "")
	stale.Interval = 120_000
	stale.IsActive = true
	stale.NextExecutionTime = &passed
	require.NoError(t, repository.Save(t.Context(), stale))

	// Future deadline is kept as is.
	future := now.Add(30 * time.Minute)
	fresh := models.NewWorkflow("Fresh deadline", "")
	fresh.Interval = 120_000
	fresh.IsActive = true
	fresh.NextExecutionTime = &future
	require.NoError(t, repository.Save(t.Context(), fresh))

	// One-shot workflows are not re-armed.
	oneShot := models.NewWorkflow("One shot", "")
	oneShot.IsActive = true
	require.NoError(t, repository.Save(t.Context(), oneShot))

	require.NoError(t, sched.BootRescan(t.Context()))

	loadedStale, err := repository.FetchByID(t.Context(), stale.ID)
	require.NoError(t, err)
	require.NotNil(t, loadedStale.NextExecutionTime)
	assert.Equal(t, now.Add(2*time.Minute), *loadedStale.NextExecutionTime)
	assert.True(t, loadedStale.IsScheduled)
	assert.Equal(t, models.WorkflowStatusScheduled, loadedStale.Status)

	loadedFresh, err := repository.FetchByID(t.Context(), fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, loadedFresh.NextExecutionTime)
	assert.Equal(t, future, *loadedFresh.NextExecutionTime)

	loadedOneShot, err := repository.FetchByID(t.Context(), oneShot.ID)
	require.NoError(t, err)
	assert.False(t, loadedOneShot.IsScheduled)
}
