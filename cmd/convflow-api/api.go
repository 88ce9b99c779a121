// Package main provides the Convflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/convflow/convflow/pkg/engine"
	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/otelhelper"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/statestore"
	"github.com/convflow/convflow/pkg/trigger"
	"github.com/convflow/convflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	states      *statestore.Store
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	engine      *engine.Engine
	detector    *trigger.Detector
}

func NewAPI(
	ctx context.Context,
	logger *slog.Logger,
	p persistence.Persistence,
	states *statestore.Store,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	engineOpts := []engine.Option{}

	if tracer, err := otelhelper.NewTracer(ctx, "convflow-api"); err == nil {
		engineOpts = append(engineOpts, engine.WithTracer(tracer))
	} else {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	return &API{
		logger:      logger,
		persistence: p,
		states:      states,
		registry:    reg,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		engine:      engine.New(p, states, reg, eventBus, logger, engineOpts...),
		detector:    trigger.NewDetector(p.WorkflowRepository(), logger),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.detector, a.persistence, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Convflow API")
	})

	e := app.Group("/executions")
	e.Post("/", handlers.StartExecution)
	e.Get("/", handlers.ListExecutions)
	e.Post("/:id/step", handlers.ExecuteStep)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Get("/sessions/:sessionId/state", handlers.GetSessionState)

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)

	app.Post("/triggers/check", handlers.CheckTrigger)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
