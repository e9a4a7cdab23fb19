package routes

import (
	"time"

	"github.com/canopyhq/entitlement-backend/internal/config"
	"github.com/canopyhq/entitlement-backend/internal/handlers"
	"github.com/canopyhq/entitlement-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	ownerHandler *handlers.OwnerHandler,
	entitlementHandler *handlers.EntitlementHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth is public with a stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Everything below requires a resolved principal; the services run the
	// fine-grained access checks themselves.
	protected := api.Group("", middleware.JWTProtected(cfg), middleware.ResolvePrincipal())

	protected.Post("/owners", ownerHandler.CreateOwner)
	protected.Post("/owners/:owner_id/consumers", ownerHandler.CreateConsumer)
	protected.Post("/owners/:owner_id/consumers/:consumer_id/register", authHandler.RegisterConsumer)
	protected.Post("/products", ownerHandler.CreateProduct)
	protected.Post("/subscriptions", ownerHandler.CreateSubscription)

	protected.Post("/owners/:owner_id/entitlements", entitlementHandler.Bind)
	protected.Get("/owners/:owner_id/consumers/:consumer_id/entitlements", entitlementHandler.List)
	protected.Delete("/owners/:owner_id/consumers/:consumer_id/entitlements", entitlementHandler.UnbindAll)

	// Ad hoc certificate issuance, kept separate from the pool-backed path.
	protected.Post("/splice/cert", entitlementHandler.SpliceCert)
}
