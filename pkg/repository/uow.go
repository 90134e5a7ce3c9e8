package repository

import (
	"context"

	"github.com/amirasaad/chipload/pkg/repository/destination"
	"github.com/amirasaad/chipload/pkg/repository/transaction"
	"github.com/amirasaad/chipload/pkg/repository/user"
)

// UnitOfWork defines the contract for transactional work and type-safe repository access.
//
// Do runs the given function in a transaction boundary. Repositories obtained
// from the UnitOfWork passed to fn share that transaction, so a status write and
// a balance write made through them commit or roll back together.
type UnitOfWork interface {
	// Do executes the given function within a transaction boundary.
	// If the function returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	UserRepository() user.Repository
	TransactionRepository() transaction.Repository
	DestinationRepository() destination.Repository
}
