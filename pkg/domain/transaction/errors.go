package transaction

import (
	"fmt"

	"github.com/amirasaad/chipload/pkg/domain"
)

var (
	// ErrTransactionNotFound is returned when a transaction id is unknown.
	ErrTransactionNotFound = fmt.Errorf("transaction %w", domain.ErrNotFound)
	// ErrAmountMustBePositive is returned for zero or negative amounts.
	ErrAmountMustBePositive = fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
)
