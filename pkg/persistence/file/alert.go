package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence"
)

// AlertRepository stores each geofence alert as <root>/alerts/<id>.json.
type AlertRepository struct {
	root   string
	logger *slog.Logger
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(root string) *AlertRepository {
	return &AlertRepository{
		root:   root,
		logger: slog.With("module", "file_persistence"),
	}
}

// List returns every readable alert, skipping corrupt records.
func (ar *AlertRepository) List(ctx context.Context) ([]*models.GeofenceAlert, error) {
	dir := path.Join(ar.root, "alerts")

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list alert files: %w", err)
	}

	alerts := make([]*models.GeofenceAlert, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		alertID := file[:len(file)-5]

		alert, err := ar.GetByID(ctx, alertID)
		if err != nil {
			ar.logger.Warn("Skipping unreadable alert record", "alert_id", alertID, "error", err)

			continue
		}

		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// GetByID retrieves an alert by its ID.
func (ar *AlertRepository) GetByID(_ context.Context, alertID string) (*models.GeofenceAlert, error) {
	filePath := filepath.Clean(path.Join(ar.root, "alerts", alertID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrAlertNotFound
		}

		return nil, fmt.Errorf("failed to read alert %s: %w", alertID, err)
	}

	var alert models.GeofenceAlert

	err = json.Unmarshal(body, &alert)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert %s: %w", alertID, err)
	}

	return &alert, nil
}

// Save upserts a single alert record.
func (ar *AlertRepository) Save(_ context.Context, alert *models.GeofenceAlert) error {
	dir := path.Join(ar.root, "alerts")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create alerts directory: %w", err)
	}

	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}

	alert.UpdatedAt = now

	data, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alert %s: %w", alert.ID, err)
	}

	return os.WriteFile(path.Join(dir, alert.ID+".json"), data, 0600)
}

// Delete removes an alert by its ID. Absent records are not an error.
func (ar *AlertRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(path.Join(ar.root, "alerts", id+".json"))
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", id, err)
	}

	return nil
}
