package repository

import (
	"context"

	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/amirasaad/chipload/pkg/repository/destination"
	"github.com/amirasaad/chipload/pkg/repository/transaction"
	"github.com/amirasaad/chipload/pkg/repository/user"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
//
// Repositories obtained inside Do share the transaction session, so every write
// made through them commits or rolls back together.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs the given function in a transaction boundary, providing a UoW with repository access.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		// Nested units join the enclosing transaction.
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// UserRepository returns a user repository bound to the current session.
func (u *UoW) UserRepository() user.Repository {
	return NewUserRepository(u.session())
}

// TransactionRepository returns a transaction repository bound to the current session.
func (u *UoW) TransactionRepository() transaction.Repository {
	return NewTransactionRepository(u.session())
}

// DestinationRepository returns a destination repository bound to the current session.
func (u *UoW) DestinationRepository() destination.Repository {
	return NewDestinationRepository(u.session())
}
