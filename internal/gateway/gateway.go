package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"launtriserv/backend/internal/config"
	"launtriserv/backend/internal/server"
)

// New assembles the gateway app in front of userserv. OTP issue/verify stay
// public; the remaining customer routes go behind the JWT guard when a secret
// is configured.
func New(cfg *config.Config, log *zap.Logger) (*fiber.App, error) {
	fwd, err := NewForwarder(cfg.UserservURL, log)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(server.RequestID())
	app.Use(server.RequestLogger(log))

	rl := NewIPRateLimiter(cfg.GatewayRatePerMin, log)
	app.Use(rl.Handler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	proxy := fwd.Handler()
	app.Post("/v1/customers/otp", proxy)
	app.Post("/v1/customers/otp/verify", proxy)

	protected := app.Group("/v1/customers")
	if cfg.JWTSecret != "" {
		protected.Use(NewJWTGuard(cfg.JWTSecret, log).Handler())
	}
	protected.All("/*", proxy)
	protected.All("/", proxy)

	return app, nil
}
