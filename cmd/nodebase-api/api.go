// Package main provides the nodebase API server: trigger ingress, the read
// side and the node status feed.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/nodebase/pkg/cmd"
	"github.com/dukex/nodebase/pkg/eventbus"
	"github.com/dukex/nodebase/pkg/metrics"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/services"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracker     *status.Tracker
	metrics     *metrics.Metrics
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracker *status.Tracker,
	metrics *metrics.Metrics,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		tracker:     tracker,
		metrics:     metrics,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.registry)
	triggerService := services.NewTrigger(a.persistence, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(workflowService, triggerService, a.validate, a.registry, a.tracker)

	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := workflowService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("nodebase API")
	})

	handlers.Routes(app)

	return app
}

// Start serves on port until ctx is done.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		err := app.ShutdownWithTimeout(cmd.ShutdownTimeout)
		if err != nil {
			a.logger.Error("Failed to shut down API", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
