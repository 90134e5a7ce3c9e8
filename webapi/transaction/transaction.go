package transaction

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/middleware"
	authsvc "github.com/amirasaad/chipload/pkg/service/auth"
	"github.com/amirasaad/chipload/pkg/service/ledger"
	"github.com/amirasaad/chipload/pkg/service/matcher"
	"github.com/amirasaad/chipload/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Routes registers the ledger endpoints.
func Routes(
	app *fiber.App,
	ledgerSvc *ledger.Service,
	matcherSvc *matcher.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
	logger *slog.Logger,
) {
	group := app.Group("/transactions", middleware.Authenticated(cfg.Auth.Jwt, authSvc, logger)...)
	group.Post("/", CreateTransaction(ledgerSvc))
	group.Get("/", ListTransactions(ledgerSvc))
	group.Get("/:id", GetTransaction(ledgerSvc))
	group.Put("/:id/status", UpdateStatus(ledgerSvc))
	group.Post("/:id/verify-payment", VerifyPayment(matcherSvc))
}

// CreateTransaction records a pending deposit or withdrawal for the caller.
// @Summary Create a transaction
// @Description Create a PENDING deposit or withdrawal. Deposits routed to an agent with
// @Description auto-verification carry an expected_amount the player must transfer exactly.
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 401 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /transactions [post]
// @Security Bearer
func CreateTransaction(ledgerSvc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[CreateTransactionRequest](c)
		if input == nil {
			return err // error response already written
		}
		kind, err := transaction.ParseType(input.Type)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction type", err)
		}
		txn, err := ledgerSvc.Create(c.Context(), actor, ledger.CreateCommand{
			Type:   kind,
			Amount: input.Amount,
			Destination: transaction.WithdrawalDestination{
				CVU:   strings.TrimSpace(input.WithdrawalCvu),
				Alias: strings.TrimSpace(input.WithdrawalAlias),
				Bank:  strings.TrimSpace(input.WithdrawalBank),
			},
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't create transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transaction created", ToTransactionDTO(txn))
	}
}

// ListTransactions returns the transactions visible to the caller.
// @Summary List transactions
// @Tags transactions
// @Produce json
// @Success 200 {object} common.Response
// @Failure 401 {object} common.ProblemDetails
// @Router /transactions [get]
// @Security Bearer
func ListTransactions(ledgerSvc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		txns, err := ledgerSvc.List(c.Context(), actor)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", ToTransactionDTOs(txns))
	}
}

// GetTransaction returns one transaction.
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} common.Response
// @Failure 403 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /transactions/{id} [get]
// @Security Bearer
func GetTransaction(ledgerSvc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err, "Transaction ID must be a valid UUID", fiber.StatusBadRequest)
		}
		txn, err := ledgerSvc.Get(c.Context(), actor, id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't get transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction found", ToTransactionDTO(txn))
	}
}

// UpdateStatus applies an agent's decision to a pending transaction.
// @Summary Settle a transaction
// @Description Approve (COMPLETED) or reject (REJECTED) a PENDING transaction. Only the
// @Description assigned agent or an admin may settle.
// @Tags transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param request body UpdateStatusRequest true "Decision"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Router /transactions/{id}/status [put]
// @Security Bearer
func UpdateStatus(ledgerSvc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err, "Transaction ID must be a valid UUID", fiber.StatusBadRequest)
		}
		input, err := common.BindAndValidate[UpdateStatusRequest](c)
		if input == nil {
			return err // error response already written
		}
		decision, err := transaction.ParseDecision(input.Status)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid status", err)
		}
		txn, err := ledgerSvc.Settle(c.Context(), actor, id, decision)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Settling an unknown id is a bad request, not a missing resource.
				return common.ProblemDetailsJSON(c, "Couldn't settle transaction", err, fiber.StatusBadRequest)
			}
			return common.ProblemDetailsJSON(c, "Couldn't settle transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction settled", ToTransactionDTO(txn))
	}
}

// VerifyPayment checks the payment feed for a matching payment and settles on a match.
// @Summary Verify a deposit payment
// @Description Polls the agent's payment gateway once. Safe to repeat. A 503 means the
// @Description gateway could not be reached and the call may be retried.
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 403 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /transactions/{id}/verify-payment [post]
// @Security Bearer
func VerifyPayment(matcherSvc *matcher.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err, "Transaction ID must be a valid UUID", fiber.StatusBadRequest)
		}
		result, err := matcherSvc.MatchAndSettle(c.Context(), actor, id)
		switch {
		case errors.Is(err, domain.ErrAlreadyProcessed) && result.Status == transaction.StatusCompleted:
			// Polling a completed deposit reports its state; it settles nothing.
			return common.SuccessResponseJSON(c, fiber.StatusOK, "Payment already verified", result)
		case err != nil:
			return common.ProblemDetailsJSON(c, "Couldn't verify payment", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Payment verification done", result)
	}
}
