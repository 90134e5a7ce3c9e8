package user

import (
	"log/slog"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/middleware"
	authsvc "github.com/amirasaad/chipload/pkg/service/auth"
	usersvc "github.com/amirasaad/chipload/pkg/service/user"
	"github.com/amirasaad/chipload/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func Routes(
	app *fiber.App,
	userSvc *usersvc.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
	logger *slog.Logger,
) {
	app.Post("/users", append(
		middleware.OptionalAuthenticated(cfg.Auth.Jwt, authSvc, logger),
		Register(userSvc),
	)...)
	app.Get("/users/me", append(
		middleware.Authenticated(cfg.Auth.Jwt, authSvc, logger),
		Me(userSvc),
	)...)

	admin := app.Group("/admin/users", middleware.Authenticated(cfg.Auth.Jwt, authSvc, logger)...)
	admin.Put("/:id/manager", AssignManager(userSvc))
	admin.Delete("/:id", Delete(userSvc))
}

// Register creates a user.
// @Summary Register a user
// @Description Anyone may register a player, who is routed to the default agent.
// @Description Agents and admins can only be created with an admin token.
// @Tags users
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "User data"
// @Success 201 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Failure 409 {object} common.ProblemDetails
// @Router /users [post]
func Register(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[RegisterRequest](c)
		if input == nil {
			return err // error response already written
		}
		var actor *user.Actor
		if a, ok := middleware.ActorFrom(c); ok {
			actor = &a
		}
		u, err := userSvc.Register(c.Context(), actor, usersvc.RegisterCommand{
			Username: input.Username,
			Role:     user.Role(input.Role),
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't create user", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Created user", ToUserDTO(u))
	}
}

// Me returns the caller, including the current chip balance.
// @Summary Get current user
// @Tags users
// @Produce json
// @Success 200 {object} common.Response
// @Failure 401 {object} common.ProblemDetails
// @Router /users/me [get]
// @Security Bearer
func Me(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		u, err := userSvc.Get(c.Context(), actor, actor.ID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't get user", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "User found", ToUserDTO(u))
	}
}

// AssignManager moves a player under an agent, or unassigns them.
// @Summary Assign a player's agent
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Player ID"
// @Param request body AssignManagerRequest true "Manager"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /admin/users/{id}/manager [put]
// @Security Bearer
func AssignManager(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid user ID", err, "User ID must be a valid UUID", fiber.StatusBadRequest)
		}
		input, err := common.BindAndValidate[AssignManagerRequest](c)
		if input == nil {
			return err // error response already written
		}
		if err := userSvc.AssignManager(c.Context(), actor, id, input.ManagerID); err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't assign manager", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Manager assigned", nil)
	}
}

// Delete removes a user with their transactions.
// @Summary Delete a user
// @Tags admin
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /admin/users/{id} [delete]
// @Security Bearer
func Delete(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid user ID", err, "User ID must be a valid UUID", fiber.StatusBadRequest)
		}
		if err := userSvc.Delete(c.Context(), actor, id); err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't delete user", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
