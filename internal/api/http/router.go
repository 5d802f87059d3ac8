package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-resolver/internal/api/http/handlers"
	"github.com/spec-kit/support-resolver/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Support        *handlers.SupportHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	supportGroup := app.Group("/support", cfg.AuthMiddleware.Handle, auth.RequireUser())
	supportGroup.Post("/messages", cfg.Support.SubmitMessage)

	ticketGroup := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireUser())
	ticketGroup.Get("/", cfg.Tickets.ListTickets)
	ticketGroup.Get("/:id", cfg.Tickets.GetTicket)
}
