package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Reports         *handlers.ReportsHandler
	Transitions     *handlers.TransitionsHandler
	SLA             *handlers.SLAHandler
	AuthMiddleware  *auth.AuthMiddleware
	OperatorKeyHash string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	reports := api.Group("/reports/tickets", auth.RequireRole(auth.RoleReporter, auth.RoleOperator))
	reports.Get("/aging", cfg.Reports.AgingBuckets)
	reports.Get("/aging/summary", cfg.Reports.AgingSummary)
	reports.Get("/throughput", cfg.Reports.Throughput)

	tickets := api.Group("/tickets")
	tickets.Post("/:id/transitions", auth.RequireRole(auth.RoleOperator), cfg.Transitions.RecordTransition)
	tickets.Get("/:id/transitions", cfg.Transitions.ListTransitions)

	sla := api.Group("/sla")
	sla.Get("/approaching", cfg.SLA.Approaching)
	sla.Get("/breached", cfg.SLA.Breached)
	sla.Post("/:historyId/escalate",
		auth.RequireRole(auth.RoleOperator),
		auth.RequireOperatorKey(cfg.OperatorKeyHash),
		cfg.SLA.Escalate)
}
