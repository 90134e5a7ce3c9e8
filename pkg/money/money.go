// Package money provides the monetary value used by the ledger.
//
// Invariants:
//   - Amount is always stored in the smallest currency unit (cents).
//   - Inputs carry at most two fractional digits.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of a chip amount.
const Decimals = 2

var hundred = decimal.NewFromInt(100)

// Amount represents a monetary amount as an integer number of cents.
type Amount int64

// New builds an Amount from whole units and cents.
func New(units, cents int64) Amount {
	return Amount(units*100 + cents)
}

// FromDecimal converts a decimal value into an Amount.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Decimals)) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrecision, d.String())
	}
	cents := d.Mul(hundred)
	if cents.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt64 / 2)) {
		return 0, ErrAmountExceedsMaxSafeInt
	}
	return Amount(cents.IntPart()), nil
}

// Parse converts a decimal string such as "5000.37" into an Amount.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return FromDecimal(d)
}

// Decimal returns the amount in whole units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Decimals)
}

// Cents returns the fractional part of the amount.
func (a Amount) Cents() int64 {
	return int64(a) % 100
}

// Floor drops the fractional part.
func (a Amount) Floor() Amount {
	return a - Amount(a.Cents())
}

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// String formats the amount with two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Decimals)
}

// MarshalJSON encodes the amount as a JSON number in whole units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or string in whole units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
