package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Connections  *handlers.ConnectionHandler
	Messages     *handlers.MessageHandler
	Blocks       *handlers.BlockHandler
	Verification *handlers.VerificationHandler // nil when Redis is unavailable
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// JWT is attached per group so public routes above stay public.
	auth := middleware.JWTProtected(cfg)

	connections := api.Group("/connections", auth)
	connections.Post("/", h.Connections.Create)
	connections.Get("/", h.Connections.List)
	connections.Get("/:id", h.Connections.Get)
	connections.Patch("/:id", h.Connections.Transition)

	messages := api.Group("/messages", auth)
	messages.Get("/:userId/permission", h.Messages.Permission)
	messages.Get("/:userId", h.Messages.Conversation)
	messages.Post("/:userId", h.Messages.Send)

	blocks := api.Group("/blocks", auth)
	blocks.Post("/", h.Blocks.BlockUser)
	blocks.Delete("/:id", h.Blocks.UnblockUser)

	if h.Verification != nil {
		// Code sending is stricter: 5 req/min per user
		verification := api.Group("/verification", auth)
		verification.Post("/send", limiter.New(limiter.Config{
			Max:        5,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if id, err := middleware.CurrentUserID(c); err == nil {
					return id.String()
				}
				return c.IP()
			},
		}), h.Verification.Send)
		verification.Post("/confirm", h.Verification.Confirm)
	}
}
