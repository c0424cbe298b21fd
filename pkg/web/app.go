package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp assembles the fiber application with every route mounted.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Geomail API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Post("/:id/enable", handlers.EnableWorkflow)
	w.Post("/:id/disable", handlers.DisableWorkflow)
	w.Post("/:id/pairing", handlers.BeginPairing)
	w.Get("/:id/pairing", handlers.PairingStatus)
	w.Delete("/:id/pairing", handlers.DisconnectPairing)

	a := app.Group("/alerts")
	a.Get("/", handlers.GetAlerts)
	a.Post("/", handlers.CreateAlert)
	a.Get("/:id", handlers.GetAlert)
	a.Patch("/:id", handlers.UpdateAlert)
	a.Delete("/:id", handlers.DeleteAlert)
	a.Post("/:id/trigger", handlers.TriggerAlert)

	app.Get("/health", handlers.HealthCheck)

	return app
}
