// Package ledger creates chip transactions and settles them. Settlement is the
// only path through which a player's balance changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/chipload/pkg/balance"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/eventbus"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/google/uuid"
)

// ErrNotSettler is returned when the caller is neither the assigned agent nor an admin.
var ErrNotSettler = fmt.Errorf("%w: only the assigned agent or an admin can settle", domain.ErrForbidden)

const adminListLimit = 500

// SurchargeIssuer hands out unique expected amounts for auto-verified deposits.
type SurchargeIssuer interface {
	Issue(ctx context.Context, uow repository.UnitOfWork, agentID uuid.UUID, base money.Amount) (money.Amount, error)
	Release(ctx context.Context, agentID uuid.UUID, expected money.Amount) error
}

// Service provides the transaction ledger operations.
type Service struct {
	uow     repository.UnitOfWork
	balance *balance.Mutator
	issuer  SurchargeIssuer
	bus     eventbus.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a ledger. issuer may be nil, in which case every deposit
// is settled manually.
func NewService(deps config.Deps, issuer SurchargeIssuer) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:     deps.Uow,
		balance: balance.New(logger),
		issuer:  issuer,
		bus:     deps.EventBus,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// CreateCommand describes a deposit or withdrawal request.
type CreateCommand struct {
	Type        transaction.Type
	Amount      money.Amount
	Destination transaction.WithdrawalDestination
}

// Create records a PENDING transaction for the calling user. Balance is not touched.
func (s *Service) Create(
	ctx context.Context,
	actor user.Actor,
	cmd CreateCommand,
) (*transaction.Transaction, error) {
	logger := s.logger.With("handler", "Create", "user_id", actor.ID, "type", cmd.Type)
	if !cmd.Amount.IsPositive() {
		return nil, transaction.ErrAmountMustBePositive
	}
	if _, err := transaction.ParseType(string(cmd.Type)); err != nil {
		return nil, err
	}

	var (
		txn         *transaction.Transaction
		issued      *money.Amount
		issuedAgent uuid.UUID
	)
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		owner, err := uow.UserRepository().Get(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return user.ErrUserUnauthorized
			}
			return err
		}
		if owner.ManagerID == nil {
			return domain.ErrNoAgentAssigned
		}

		var details transaction.Details
		switch cmd.Type {
		case transaction.TypeWithdraw:
			if owner.Balance < cmd.Amount {
				return domain.ErrInsufficientBalance
			}
			details = transaction.WithdrawDetails{Destination: cmd.Destination}
		default:
			deposit := transaction.DepositDetails{}
			expected, err := s.expectedAmount(ctx, uow, *owner.ManagerID, cmd.Amount)
			if err != nil {
				return err
			}
			if expected != nil {
				issued, issuedAgent = expected, *owner.ManagerID
				deposit.ExpectedAmount = expected
			}
			details = deposit
		}

		txn, err = transaction.New(owner.ID, owner.ManagerID, cmd.Amount, details)
		if err != nil {
			return err
		}
		return uow.TransactionRepository().Create(ctx, txn)
	})
	if err != nil {
		if issued != nil {
			s.release(ctx, issuedAgent, *issued)
		}
		logger.Warn("transaction not created", "error", err)
		return nil, err
	}

	logger.Info("transaction created",
		"transaction_id", txn.ID,
		"operation_code", txn.OperationCode,
		"amount", txn.Amount.String(),
		"auto_verified", issued != nil,
	)
	s.metrics.RecordCreated(string(txn.Type()))
	s.emit(ctx, events.TransactionCreated{
		TransactionID:  txn.ID,
		UserID:         txn.UserID,
		AgentID:        txn.AgentID,
		Kind:           string(txn.Type()),
		Amount:         txn.Amount,
		ExpectedAmount: txn.ExpectedAmount(),
		OperationCode:  txn.OperationCode,
		OccurredAt:     txn.CreatedAt,
	})
	return txn, nil
}

// expectedAmount returns nil when the agent settles deposits by hand.
func (s *Service) expectedAmount(
	ctx context.Context,
	uow repository.UnitOfWork,
	agentID uuid.UUID,
	base money.Amount,
) (*money.Amount, error) {
	if s.issuer == nil {
		return nil, nil
	}
	agent, err := uow.UserRepository().Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoAgentAssigned
		}
		return nil, err
	}
	if !agent.AutoVerification() {
		return nil, nil
	}
	expected, err := s.issuer.Issue(ctx, uow, agentID, base)
	if err != nil {
		return nil, err
	}
	return &expected, nil
}

// Settle applies a human decision. Only the assigned agent or an admin may settle.
func (s *Service) Settle(
	ctx context.Context,
	actor user.Actor,
	id uuid.UUID,
	decision transaction.Status,
) (*transaction.Transaction, error) {
	return s.Finalize(ctx, id, decision, FinalizeOptions{
		Actor:  &actor,
		Source: events.SourceManual,
	})
}

// FinalizeOptions qualifies a settlement.
type FinalizeOptions struct {
	// Actor is checked inside the unit when set. The matcher settles without one.
	Actor     *user.Actor
	PaymentID string
	Source    events.SettlementSource
}

// Finalize moves a PENDING transaction to decision and, for COMPLETED, applies
// the balance change in the same database transaction. Whichever caller flips
// the status first wins; every other caller gets domain.ErrAlreadyProcessed
// and nothing is written on their behalf.
func (s *Service) Finalize(
	ctx context.Context,
	id uuid.UUID,
	decision transaction.Status,
	opts FinalizeOptions,
) (*transaction.Transaction, error) {
	logger := s.logger.With("handler", "Finalize", "transaction_id", id, "decision", decision, "source", opts.Source)
	if !decision.IsFinal() {
		return nil, fmt.Errorf("%w: status must be COMPLETED or REJECTED", domain.ErrValidation)
	}

	var settled *transaction.Transaction
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txns := uow.TransactionRepository()
		txn, err := txns.Get(ctx, id)
		if err != nil {
			return err
		}
		if opts.Actor != nil && !opts.Actor.CanSettle(txn.AgentID) {
			return ErrNotSettler
		}
		if !txn.CanTransition(decision) {
			return domain.ErrAlreadyProcessed
		}

		var paymentID *string
		if opts.PaymentID != "" {
			paymentID = &opts.PaymentID
		}
		ok, err := txns.CompareAndSetStatus(ctx, id, transaction.StatusPending, decision, paymentID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyProcessed
		}
		if decision == transaction.StatusCompleted {
			if err := s.balance.Apply(ctx, uow, txn); err != nil {
				return err
			}
		}

		txn.Status = decision
		txn.GatewayPaymentID = paymentID
		txn.UpdatedAt = time.Now().UTC()
		settled = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			logger.Info("settlement skipped, transaction already processed")
		} else {
			logger.Warn("settlement failed", "error", err)
		}
		return nil, err
	}

	logger.Info("transaction settled", "user_id", settled.UserID, "amount", settled.Amount.String())
	if expected := settled.ExpectedAmount(); expected != nil && settled.AgentID != nil {
		s.release(ctx, *settled.AgentID, *expected)
	}
	s.metrics.RecordSettlement(string(settled.Type()), string(decision), string(opts.Source))
	s.emit(ctx, events.TransactionSettled{
		TransactionID: settled.ID,
		UserID:        settled.UserID,
		AgentID:       settled.AgentID,
		Kind:          string(settled.Type()),
		Decision:      string(decision),
		Amount:        settled.Amount,
		Source:        opts.Source,
		PaymentID:     opts.PaymentID,
		OccurredAt:    settled.UpdatedAt,
	})
	return settled, nil
}

// Get returns a transaction visible to actor.
func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*transaction.Transaction, error) {
	txn, err := s.uow.TransactionRepository().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(txn.UserID, txn.AgentID) {
		return nil, domain.ErrForbidden
	}
	return txn, nil
}

// List returns the caller's own transactions for players, the assigned ones
// for agents and the most recent ones for admins.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]*transaction.Transaction, error) {
	txns := s.uow.TransactionRepository()
	switch actor.Role {
	case user.RoleAdmin:
		return txns.ListAll(ctx, 1, adminListLimit)
	case user.RoleAgent:
		return txns.ListByAgent(ctx, actor.ID)
	default:
		return txns.ListByUser(ctx, actor.ID)
	}
}

func (s *Service) release(ctx context.Context, agentID uuid.UUID, expected money.Amount) {
	if s.issuer == nil {
		return
	}
	if err := s.issuer.Release(ctx, agentID, expected); err != nil {
		s.logger.Warn("surcharge release failed", "agent_id", agentID, "expected", expected.String(), "error", err)
	}
}

func (s *Service) emit(ctx context.Context, evt events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(ctx, evt); err != nil {
		s.logger.Error("failed to emit event", "event", evt.Type(), "error", err)
	}
}
