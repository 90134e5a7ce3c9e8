// Package balance applies the balance side of a settlement. Every call must
// run on the UnitOfWork handed to repository.UnitOfWork.Do so that the balance
// change commits together with the status change that caused it.
package balance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/google/uuid"
)

// Mutator credits and debits player balances.
type Mutator struct {
	logger *slog.Logger
}

// New creates a Mutator.
func New(logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{logger: logger}
}

// Credit adds amount to the balance of userID.
func (m *Mutator) Credit(ctx context.Context, uow repository.UnitOfWork, userID uuid.UUID, amount money.Amount) error {
	if !amount.IsPositive() {
		return transaction.ErrAmountMustBePositive
	}
	if err := uow.UserRepository().AddBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("credit %s: %w", userID, err)
	}
	m.logger.Debug("balance credited", "user_id", userID, "amount", amount.String())
	return nil
}

// Debit subtracts amount from the balance of userID. The balance is checked
// in the same statement that writes it, so a concurrent debit cannot drive it
// below zero.
func (m *Mutator) Debit(ctx context.Context, uow repository.UnitOfWork, userID uuid.UUID, amount money.Amount) error {
	if !amount.IsPositive() {
		return transaction.ErrAmountMustBePositive
	}
	ok, err := uow.UserRepository().SubtractBalanceIfSufficient(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", userID, err)
	}
	if !ok {
		return domain.ErrInsufficientBalance
	}
	m.logger.Debug("balance debited", "user_id", userID, "amount", amount.String())
	return nil
}

// Apply performs the mutation a completed transaction implies: deposits
// credit the nominal amount, withdrawals debit it.
func (m *Mutator) Apply(ctx context.Context, uow repository.UnitOfWork, txn *transaction.Transaction) error {
	switch txn.Type() {
	case transaction.TypeDeposit:
		return m.Credit(ctx, uow, txn.UserID, txn.Amount)
	case transaction.TypeWithdraw:
		return m.Debit(ctx, uow, txn.UserID, txn.Amount)
	default:
		return fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, txn.Type())
	}
}
