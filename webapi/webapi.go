// Package webapi provides the HTTP surface of the chip ledger.
// It is organized into sub-packages per resource:
// - transaction: deposits, withdrawals, settlement and payment verification
// - destination: bank accounts players transfer deposits to
// - user: registration and administration
// - agent: managed players and gateway settings
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/chipload/pkg/app"
	agentweb "github.com/amirasaad/chipload/webapi/agent"
	"github.com/amirasaad/chipload/webapi/common"
	destinationweb "github.com/amirasaad/chipload/webapi/destination"
	transactionweb "github.com/amirasaad/chipload/webapi/transaction"
	userweb "github.com/amirasaad/chipload/webapi/user"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	cfg := a.Config
	log := a.Deps.Logger

	fiberApp := fiber.New(fiber.Config{
		AppName: "chipload",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})
	fiberApp.Get("/swagger/*", swagger.New(swagger.Config{
		TryItOutEnabled:      true,
		WithCredentials:      true,
		PersistAuthorization: true,
	}))

	// Uses X-Forwarded-For when behind a proxy, then X-Real-IP, then the peer address.
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit.MaxRequests,
		Expiration: cfg.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("chipload API is running")
	})
	if a.Deps.Metrics != nil {
		fiberApp.Get("/metrics", adaptor.HTTPHandler(a.Deps.Metrics.Handler()))
	}

	transactionweb.Routes(fiberApp, a.LedgerService, a.MatcherService, a.AuthService, cfg, log)
	destinationweb.Routes(fiberApp, a.DestinationService, a.AuthService, cfg, log)
	userweb.Routes(fiberApp, a.UserService, a.AuthService, cfg, log)
	agentweb.Routes(fiberApp, a.UserService, a.AuthService, cfg, log)
	return fiberApp
}
