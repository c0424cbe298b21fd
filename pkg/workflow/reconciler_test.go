package workflow

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence/memory"
)

func TestReconciler_SettlesInterruptedRuns(t *testing.T) {
	store := memory.NewPersistence()
	repository := NewRepository(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	interrupted := models.NewWorkflow("Interrupted", "")
	interrupted.Status = models.WorkflowStatusRunning
	interrupted.Steps[0].Status = models.StepStatusCompleted
	interrupted.Steps[1].Status = models.StepStatusInProgress
	require.NoError(t, repository.Save(t.Context(), interrupted))

	clean := models.NewWorkflow("Clean", "")
	clean.Status = models.WorkflowStatusScheduled
	require.NoError(t, repository.Save(t.Context(), clean))

	settled, err := NewReconciler(repository, logger).Reconcile(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	loaded, err := repository.FetchByID(t.Context(), interrupted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusError, loaded.Status)
	assert.Equal(t, InterruptedRunError, loaded.ExecutionError)

	// Finished steps keep their outcome; only in-flight steps are settled.
	assert.Equal(t, models.StepStatusCompleted, loaded.Steps[0].Status)
	assert.Equal(t, models.StepStatusError, loaded.Steps[1].Status)
	assert.Equal(t, InterruptedRunError, loaded.Steps[1].Error)

	untouched, err := repository.FetchByID(t.Context(), clean.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusScheduled, untouched.Status)
	assert.Empty(t, untouched.ExecutionError)
}
