// Package transaction models deposit and withdrawal requests and their
// settlement state machine.
package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

// Type is the direction of a transaction.
type Type string

const (
	TypeDeposit  Type = "DEPOSIT"
	TypeWithdraw Type = "WITHDRAW"
)

// ParseType normalizes and validates a transaction type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeDeposit, TypeWithdraw:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, s)
}

// Status is the settlement state of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
)

// ParseDecision validates a settlement decision. Only terminal states are decisions.
func ParseDecision(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusCompleted, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: status must be COMPLETED or REJECTED", domain.ErrValidation)
}

// IsFinal reports whether no further transition is possible.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Details carries the fields that only exist for one transaction type.
type Details interface {
	Type() Type
	details()
}

// DepositDetails holds deposit-only fields.
type DepositDetails struct {
	// ExpectedAmount is the decorated amount the player must transfer when
	// the deposit is auto-verified. Nil means manual settlement.
	ExpectedAmount *money.Amount
}

func (DepositDetails) Type() Type { return TypeDeposit }
func (DepositDetails) details()   {}

// WithdrawalDestination is where a withdrawal is paid out.
type WithdrawalDestination struct {
	CVU   string `json:"cvu,omitempty"`
	Alias string `json:"alias,omitempty"`
	Bank  string `json:"bank,omitempty"`
}

// IsZero reports whether no payout account was given.
func (d WithdrawalDestination) IsZero() bool {
	return strings.TrimSpace(d.CVU) == "" && strings.TrimSpace(d.Alias) == ""
}

// WithdrawDetails holds withdrawal-only fields.
type WithdrawDetails struct {
	Destination WithdrawalDestination
}

func (WithdrawDetails) Type() Type { return TypeWithdraw }
func (WithdrawDetails) details()   {}

// Transaction represents one deposit or withdrawal request.
type Transaction struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	AgentID          *uuid.UUID
	Amount           money.Amount
	Status           Status
	OperationCode    string
	GatewayPaymentID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Details          Details
}

// New creates a pending transaction with a fresh operation code.
func New(userID uuid.UUID, agentID *uuid.UUID, amount money.Amount, details Details) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountMustBePositive
	}
	if details == nil {
		return nil, fmt.Errorf("%w: missing transaction details", domain.ErrValidation)
	}
	now := time.Now().UTC()
	id := uuid.New()
	return &Transaction{
		ID:            id,
		UserID:        userID,
		AgentID:       agentID,
		Amount:        amount,
		Status:        StatusPending,
		OperationCode: NewOperationCode(now, id),
		CreatedAt:     now,
		UpdatedAt:     now,
		Details:       details,
	}, nil
}

// Type returns the transaction direction derived from its details.
func (t *Transaction) Type() Type {
	return t.Details.Type()
}

// Deposit returns the deposit details when the transaction is a deposit.
func (t *Transaction) Deposit() (DepositDetails, bool) {
	d, ok := t.Details.(DepositDetails)
	return d, ok
}

// Withdraw returns the withdrawal details when the transaction is a withdrawal.
func (t *Transaction) Withdraw() (WithdrawDetails, bool) {
	w, ok := t.Details.(WithdrawDetails)
	return w, ok
}

// ExpectedAmount returns the decorated amount of an auto-verified deposit.
func (t *Transaction) ExpectedAmount() *money.Amount {
	if d, ok := t.Deposit(); ok {
		return d.ExpectedAmount
	}
	return nil
}

// CanTransition reports whether the state machine allows moving to next.
func (t *Transaction) CanTransition(next Status) bool {
	return t.Status == StatusPending && next.IsFinal()
}

// NewOperationCode derives the human readable code from the creation time and id.
func NewOperationCode(createdAt time.Time, id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "OP" + createdAt.UTC().Format("060102150405") + strings.ToUpper(hex[:6])
}
