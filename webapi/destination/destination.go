package destination

import (
	"log/slog"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/middleware"
	authsvc "github.com/amirasaad/chipload/pkg/service/auth"
	destinationsvc "github.com/amirasaad/chipload/pkg/service/destination"
	"github.com/amirasaad/chipload/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// DestinationRequest represents the request body for creating or replacing a bank destination.
type DestinationRequest struct {
	BankName string `json:"bank_name" validate:"required,max=100"`
	Alias    string `json:"alias" validate:"omitempty,max=64"`
	CBU      string `json:"cbu" validate:"omitempty,len=22,numeric"`
	Active   *bool  `json:"active"`
}

func (r DestinationRequest) input() destinationsvc.Input {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return destinationsvc.Input{BankName: r.BankName, Alias: r.Alias, CBU: r.CBU, Active: active}
}

// Routes registers the public list and the admin CRUD endpoints.
func Routes(
	app *fiber.App,
	svc *destinationsvc.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
	logger *slog.Logger,
) {
	app.Get("/destinations", ListActive(svc))

	admin := app.Group("/admin/destinations", middleware.Authenticated(cfg.Auth.Jwt, authSvc, logger)...)
	admin.Get("/", List(svc))
	admin.Post("/", Create(svc))
	admin.Put("/:id", Update(svc))
	admin.Delete("/:id", Delete(svc))
}

// ListActive returns the bank accounts players may transfer deposits to.
// @Summary List active deposit destinations
// @Tags destinations
// @Produce json
// @Success 200 {object} common.Response
// @Router /destinations [get]
func ListActive(svc *destinationsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.ListActive(c.Context())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list destinations", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Destinations fetched", list)
	}
}

// List returns every destination, active or not.
// @Summary List all destinations
// @Tags admin
// @Produce json
// @Success 200 {object} common.Response
// @Failure 403 {object} common.ProblemDetails
// @Router /admin/destinations [get]
// @Security Bearer
func List(svc *destinationsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		list, err := svc.List(c.Context(), actor)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list destinations", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Destinations fetched", list)
	}
}

// Create adds a destination.
// @Summary Create a destination
// @Tags admin
// @Accept json
// @Produce json
// @Param request body DestinationRequest true "Destination"
// @Success 201 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Router /admin/destinations [post]
// @Security Bearer
func Create(svc *destinationsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[DestinationRequest](c)
		if input == nil {
			return err // error response already written
		}
		d, err := svc.Create(c.Context(), actor, input.input())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't create destination", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Destination created", d)
	}
}

// Update replaces a destination.
// @Summary Update a destination
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Destination ID"
// @Param request body DestinationRequest true "Destination"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /admin/destinations/{id} [put]
// @Security Bearer
func Update(svc *destinationsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid destination ID", err, "Destination ID must be a valid UUID", fiber.StatusBadRequest)
		}
		input, err := common.BindAndValidate[DestinationRequest](c)
		if input == nil {
			return err // error response already written
		}
		d, err := svc.Update(c.Context(), actor, id, input.input())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't update destination", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Destination updated", d)
	}
}

// Delete removes a destination.
// @Summary Delete a destination
// @Tags admin
// @Param id path string true "Destination ID"
// @Success 204
// @Failure 404 {object} common.ProblemDetails
// @Router /admin/destinations/{id} [delete]
// @Security Bearer
func Delete(svc *destinationsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid destination ID", err, "Destination ID must be a valid UUID", fiber.StatusBadRequest)
		}
		if err := svc.Delete(c.Context(), actor, id); err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't delete destination", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
