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

// WorkflowRepository stores each workflow as <root>/workflows/<id>.json.
// Per-record files keep concurrent saves of unrelated workflows from racing
// on a shared collection blob; same-workflow writers are serialized by the
// runner's execution guard.
type WorkflowRepository struct {
	root   string
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{
		root:   root,
		logger: slog.With("module", "file_persistence"),
	}
}

// List returns every workflow under the root. A record that fails to read or
// parse is logged and skipped so a single corrupt file cannot take the whole
// collection down with it.
func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	dir := path.Join(wr.root, "workflows")

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := file[:len(file)-5] // Remove .json extension

		workflow, err := wr.GetByID(ctx, workflowID)
		if err != nil {
			wr.logger.Warn("Skipping unreadable workflow record", "workflow_id", workflowID, "error", err)

			continue
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	filePath := filepath.Clean(path.Join(wr.root, "workflows", workflowID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

// Save upserts a single workflow record.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	dir := path.Join(wr.root, "workflows")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	return os.WriteFile(path.Join(dir, workflow.ID+".json"), data, 0600)
}

// Delete removes a workflow by its ID. Absent records are not an error.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(path.Join(wr.root, "workflows", id+".json"))
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}
