// Package events defines the domain events emitted by the ledger.
package events

import (
	"time"

	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

// EventType represents the type of an event in the system.
type EventType string

const (
	EventTypeTransactionCreated EventType = "Transaction.Created"
	EventTypeTransactionSettled EventType = "Transaction.Settled"
)

// Event is implemented by every domain event.
type Event interface {
	Type() string
}

// SettlementSource identifies which path settled a transaction.
type SettlementSource string

const (
	SourceManual  SettlementSource = "manual"
	SourceMatcher SettlementSource = "matcher"
)

// TransactionCreated is emitted after a pending transaction is stored.
type TransactionCreated struct {
	TransactionID  uuid.UUID     `json:"transaction_id"`
	UserID         uuid.UUID     `json:"user_id"`
	AgentID        *uuid.UUID    `json:"agent_id,omitempty"`
	Kind           string        `json:"kind"`
	Amount         money.Amount  `json:"amount"`
	ExpectedAmount *money.Amount `json:"expected_amount,omitempty"`
	OperationCode  string        `json:"operation_code"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

func (TransactionCreated) Type() string { return string(EventTypeTransactionCreated) }

// TransactionSettled is emitted after a settlement unit commits.
type TransactionSettled struct {
	TransactionID uuid.UUID        `json:"transaction_id"`
	UserID        uuid.UUID        `json:"user_id"`
	AgentID       *uuid.UUID       `json:"agent_id,omitempty"`
	Kind          string           `json:"kind"`
	Decision      string           `json:"decision"`
	Amount        money.Amount     `json:"amount"`
	Source        SettlementSource `json:"source"`
	PaymentID     string           `json:"payment_id,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

func (TransactionSettled) Type() string { return string(EventTypeTransactionSettled) }

// Factories returns constructors used by transports to decode events by type.
func Factories() map[string]func() Event {
	return map[string]func() Event{
		string(EventTypeTransactionCreated): func() Event { return &TransactionCreated{} },
		string(EventTypeTransactionSettled): func() Event { return &TransactionSettled{} },
	}
}
