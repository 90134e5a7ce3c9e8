// Package agent exposes the endpoints agents use to run their players.
package agent

import (
	"log/slog"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/middleware"
	authsvc "github.com/amirasaad/chipload/pkg/service/auth"
	usersvc "github.com/amirasaad/chipload/pkg/service/user"
	"github.com/amirasaad/chipload/webapi/common"
	userweb "github.com/amirasaad/chipload/webapi/user"
	"github.com/gofiber/fiber/v2"
)

// GatewayRequest represents the request body for configuring payment auto-verification.
// An empty access_token keeps the stored one.
type GatewayRequest struct {
	AccessToken string `json:"access_token" validate:"omitempty,max=512"`
	Enabled     bool   `json:"enabled"`
}

func Routes(
	app *fiber.App,
	userSvc *usersvc.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
	logger *slog.Logger,
) {
	group := app.Group("/agent", middleware.Authenticated(cfg.Auth.Jwt, authSvc, logger)...)
	group.Get("/players", Players(userSvc))
	group.Put("/gateway", ConfigureGateway(userSvc))
}

// Players lists the players managed by the caller.
// @Summary List managed players
// @Tags agent
// @Produce json
// @Success 200 {object} common.Response
// @Failure 403 {object} common.ProblemDetails
// @Router /agent/players [get]
// @Security Bearer
func Players(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		players, err := userSvc.ListPlayers(c.Context(), actor)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list players", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Players fetched", userweb.ToUserDTOs(players))
	}
}

// ConfigureGateway stores the caller's payment gateway token and toggles auto-verification.
// @Summary Configure payment auto-verification
// @Tags agent
// @Accept json
// @Produce json
// @Param request body GatewayRequest true "Gateway settings"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Router /agent/gateway [put]
// @Security Bearer
func ConfigureGateway(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[GatewayRequest](c)
		if input == nil {
			return err // error response already written
		}
		if err := userSvc.ConfigureGateway(c.Context(), actor, input.AccessToken, input.Enabled); err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't configure gateway", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Gateway updated", fiber.Map{"enabled": input.Enabled})
	}
}
