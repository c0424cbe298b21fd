package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/persistence"
	"github.com/geomail/geomail/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps domain errors to problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")
	case persistence.IsAlertNotFound(err):
		return notFound(c, "alert not found")
	case errors.Is(err, workflow.ErrAlreadyRunning):
		return conflict(c, "workflow is already running")
	case errors.Is(err, workflow.ErrWorkflowExpired):
		return conflict(c, "workflow has expired")
	case errors.Is(err, notify.ErrDestinationNotSpecified):
		return badRequest(c, "destination not specified")
	case errors.Is(err, notify.ErrTelegramNotLinked):
		return badRequest(c, "telegram chat not linked")
	default:
		return internalError(c, err)
	}
}
