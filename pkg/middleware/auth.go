// Package middleware holds the fiber middleware shared by every route group.
package middleware

import (
	"errors"
	"log/slog"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/user"
	authsvc "github.com/amirasaad/chipload/pkg/service/auth"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

// JwtProtected verifies the bearer token and stores it under "user".
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ErrorHandler: jwtError,
	})
}

// RequireActor resolves the verified token to the stored user behind it.
func RequireActor(authSvc *authsvc.Service, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return problem(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		actor, err := authSvc.Actor(c.Context(), token)
		if err != nil {
			logger.Warn("rejected token", "error", err)
			return problem(c, fiber.StatusUnauthorized, "Unauthorized", "unknown user")
		}
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// Authenticated chains token verification and actor resolution.
func Authenticated(cfg *config.Jwt, authSvc *authsvc.Service, logger *slog.Logger) []fiber.Handler {
	return []fiber.Handler{JwtProtected(cfg), RequireActor(authSvc, logger)}
}

// OptionalAuthenticated resolves the actor when a bearer token is sent and
// lets anonymous requests through untouched.
func OptionalAuthenticated(cfg *config.Jwt, authSvc *authsvc.Service, logger *slog.Logger) []fiber.Handler {
	verify := jwtware.New(jwtware.Config{
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ErrorHandler: jwtError,
	})
	resolve := RequireActor(authSvc, logger)
	return []fiber.Handler{verify, func(c *fiber.Ctx) error {
		if _, ok := c.Locals("user").(*jwt.Token); !ok {
			return c.Next()
		}
		return resolve(c)
	}}
}

// ActorFrom returns the actor stored by RequireActor.
func ActorFrom(c *fiber.Ctx) (user.Actor, bool) {
	actor, ok := c.Locals(actorKey).(user.Actor)
	return actor, ok
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return problem(c, fiber.StatusBadRequest, "Bad Request", "Missing or malformed JWT")
	}
	return problem(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid or expired JWT")
}

func problem(c *fiber.Ctx, status int, title, detail string) error {
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(fiber.Map{
		"type":     "about:blank",
		"title":    title,
		"status":   status,
		"detail":   detail,
		"instance": c.OriginalURL(),
	})
}
