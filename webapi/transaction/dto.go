package transaction

import (
	"time"

	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

// CreateTransactionRequest represents the request body for creating a deposit or withdrawal.
type CreateTransactionRequest struct {
	Amount          money.Amount `json:"amount"`
	Type            string       `json:"type" validate:"required"`
	WithdrawalCvu   string       `json:"withdrawalCvu" validate:"omitempty,max=64"`
	WithdrawalAlias string       `json:"withdrawalAlias" validate:"omitempty,max=64"`
	WithdrawalBank  string       `json:"withdrawalBank" validate:"omitempty,max=64"`
}

// UpdateStatusRequest represents the request body for settling a transaction.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TransactionDTO is the wire shape of a transaction.
type TransactionDTO struct {
	ID               uuid.UUID     `json:"id"`
	UserID           uuid.UUID     `json:"user_id"`
	AgentID          *uuid.UUID    `json:"agent_id,omitempty"`
	Type             string        `json:"type"`
	Amount           money.Amount  `json:"amount"`
	ExpectedAmount   *money.Amount `json:"expected_amount,omitempty"`
	Status           string        `json:"status"`
	OperationCode    string        `json:"operation_code"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty"`
	// Withdrawal is set for withdrawals only.
	Withdrawal *transaction.WithdrawalDestination `json:"withdrawal,omitempty"`
	CreatedAt  time.Time                          `json:"created_at"`
	UpdatedAt  time.Time                          `json:"updated_at"`
}

// ToTransactionDTO maps a domain transaction to its wire shape.
func ToTransactionDTO(t *transaction.Transaction) *TransactionDTO {
	dto := &TransactionDTO{
		ID:               t.ID,
		UserID:           t.UserID,
		AgentID:          t.AgentID,
		Type:             string(t.Type()),
		Amount:           t.Amount,
		ExpectedAmount:   t.ExpectedAmount(),
		Status:           string(t.Status),
		OperationCode:    t.OperationCode,
		GatewayPaymentID: t.GatewayPaymentID,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if w, ok := t.Withdraw(); ok && !w.Destination.IsZero() {
		dest := w.Destination
		dto.Withdrawal = &dest
	}
	return dto
}

// ToTransactionDTOs maps a list of transactions.
func ToTransactionDTOs(txns []*transaction.Transaction) []*TransactionDTO {
	out := make([]*TransactionDTO, 0, len(txns))
	for _, t := range txns {
		out = append(out, ToTransactionDTO(t))
	}
	return out
}
