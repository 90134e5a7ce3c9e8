package money

import (
	"fmt"

	"github.com/amirasaad/chipload/pkg/domain"
)

var (
	// ErrInvalidAmount is returned when an amount cannot be parsed.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", domain.ErrValidation)

	// ErrInvalidPrecision is returned when an amount has more than two fractional digits.
	ErrInvalidPrecision = fmt.Errorf("%w: amount has more than two decimal places", domain.ErrValidation)

	// ErrAmountExceedsMaxSafeInt is returned when an amount exceeds the maximum safe integer value.
	ErrAmountExceedsMaxSafeInt = fmt.Errorf("%w: amount exceeds maximum safe integer value", domain.ErrValidation)
)
