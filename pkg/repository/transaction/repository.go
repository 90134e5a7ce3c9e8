package transaction

import (
	"context"
	"time"

	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

// Repository defines the interface for transaction data access operations.
type Repository interface {
	// Create inserts a new transaction record.
	Create(ctx context.Context, txn *transaction.Transaction) error

	// Get retrieves a transaction by its ID.
	Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// GetByPaymentID retrieves the transaction bound to an external payment.
	GetByPaymentID(ctx context.Context, paymentID string) (*transaction.Transaction, error)

	// ListByUser lists the transactions owned by a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error)

	// ListByAgent lists the transactions assigned to an agent, newest first.
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*transaction.Transaction, error)

	// ListAll lists every transaction, newest first.
	ListAll(ctx context.Context, page, pageSize int) ([]*transaction.Transaction, error)

	// ListPendingAutoVerified lists pending deposits carrying an expected
	// amount created after since.
	ListPendingAutoVerified(ctx context.Context, since time.Time) ([]*transaction.Transaction, error)

	// ExistsPendingExpected reports whether a pending deposit assigned to
	// agentID already waits for the expected amount.
	ExistsPendingExpected(ctx context.Context, agentID uuid.UUID, expected money.Amount) (bool, error)

	// CompareAndSetStatus moves a transaction from one status to another and
	// optionally records the external payment id. It reports false when the
	// stored status no longer equals from.
	CompareAndSetStatus(
		ctx context.Context,
		id uuid.UUID,
		from, to transaction.Status,
		paymentID *string,
	) (bool, error)

	// DeleteByUser removes every transaction owned by or assigned to a user.
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
