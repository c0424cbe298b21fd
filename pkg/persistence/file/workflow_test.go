package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence"
)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	testDir := t.TempDir()
	repo := NewWorkflowRepository(testDir)

	next := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	workflow := models.NewWorkflow("Inbox digest", "daily summary")
	workflow.Interval = 60_000
	workflow.StepDelay = 500
	workflow.IsActive = true
	workflow.NextExecutionTime = &next
	workflow.DestinationType = models.DestinationDeeplink
	workflow.DestinationChatID = "12345"
	workflow.Telegram = models.TelegramLink{
		ChatID:   "12345",
		Username: "someone",
		Status:   models.TelegramConnected,
		Token:    "tok-1",
	}
	workflow.Steps[0].Parameters = map[string]any{"label": "Work", "max_results": float64(5)}

	require.NoError(t, repo.Save(t.Context(), workflow))

	// Verify the record landed where expected.
	_, err := os.Stat(filepath.Join(testDir, "workflows", workflow.ID+".json"))
	require.NoError(t, err)

	loaded, err := repo.GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, loaded.ID)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, workflow.Interval, loaded.Interval)
	assert.Equal(t, workflow.StepDelay, loaded.StepDelay)
	assert.True(t, loaded.IsActive)
	require.NotNil(t, loaded.NextExecutionTime)
	assert.True(t, next.Equal(*loaded.NextExecutionTime))
	assert.Equal(t, models.DestinationDeeplink, loaded.DestinationType)
	assert.Equal(t, workflow.Telegram, loaded.Telegram)
	require.Len(t, loaded.Steps, 4)
	assert.Equal(t, "Work", loaded.Steps[0].Parameters["label"])
}

func TestWorkflowRepository_GetByID_NotFound(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	_, err := repo.GetByID(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_List_SkipsCorruptRecords(t *testing.T) {
	testDir := t.TempDir()
	repo := NewWorkflowRepository(testDir)

	workflow := models.NewWorkflow("Valid workflow", "")
	require.NoError(t, repo.Save(t.Context(), workflow))

	// Drop a corrupt record next to the valid one.
	corruptPath := filepath.Join(testDir, "workflows", "corrupt.json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("{not json"), 0600))

	workflows, err := repo.List(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, workflow.ID, workflows[0].ID)
}

func TestWorkflowRepository_List_EmptyRoot(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	workflows, err := repo.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestWorkflowRepository_Delete(t *testing.T) {
	testDir := t.TempDir()
	repo := NewWorkflowRepository(testDir)

	workflow := models.NewWorkflow("To delete", "")
	require.NoError(t, repo.Save(t.Context(), workflow))
	require.NoError(t, repo.Delete(t.Context(), workflow.ID))

	_, err := repo.GetByID(t.Context(), workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	// Deleting an absent record is not an error.
	assert.NoError(t, repo.Delete(t.Context(), "missing"))
}

func TestAlertRepository_RoundTrip(t *testing.T) {
	testDir := t.TempDir()
	repo := NewAlertRepository(testDir)

	alert := models.NewGeofenceAlert("Office", 52.52, 13.405, 150)
	alert.Transitions = []models.TransitionType{models.TransitionEnter}
	alert.Channel = models.DestinationGmail
	alert.DestinationEmail = "me@example.com"
	alert.Cooldown = 120_000

	require.NoError(t, repo.Save(t.Context(), alert))

	loaded, err := repo.GetByID(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.Name, loaded.Name)
	assert.Equal(t, alert.Latitude, loaded.Latitude)
	assert.Equal(t, alert.Transitions, loaded.Transitions)
	assert.Equal(t, alert.Cooldown, loaded.Cooldown)
	assert.True(t, loaded.Enabled)

	alerts, err := repo.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	require.NoError(t, repo.Delete(t.Context(), alert.ID))

	_, err = repo.GetByID(t.Context(), alert.ID)
	assert.True(t, persistence.IsAlertNotFound(err))
}
