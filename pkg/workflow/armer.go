package workflow

import (
	"context"

	"github.com/geomail/geomail/pkg/models"
)

// Armer registers and cancels wake timers for recurring workflows. The
// scheduler package provides the production implementation; defining the
// contract here keeps the runner free of a scheduler dependency.
type Armer interface {
	Arm(ctx context.Context, workflow *models.Workflow) error
	Cancel(ctx context.Context, workflowID string) error
}
