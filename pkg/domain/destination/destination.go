// Package destination models the bank or wallet accounts players transfer
// deposits to.
package destination

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/google/uuid"
)

// ErrDestinationNotFound is returned for unknown destination ids.
var ErrDestinationNotFound = fmt.Errorf("destination %w", domain.ErrNotFound)

// Destination is a CVU/CBU account descriptor managed by admins.
type Destination struct {
	ID        uuid.UUID `json:"id"`
	BankName  string    `json:"bank_name"`
	Alias     string    `json:"alias"`
	CBU       string    `json:"cbu"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New validates and creates a destination.
func New(bankName, alias, cbu string, active bool) (*Destination, error) {
	d := &Destination{
		ID:       uuid.New(),
		BankName: strings.TrimSpace(bankName),
		Alias:    strings.TrimSpace(alias),
		CBU:      strings.TrimSpace(cbu),
		Active:   active,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	return d, nil
}

// Validate checks the required fields. CBU/CVU numbers are 22 digits.
func (d *Destination) Validate() error {
	if d.BankName == "" {
		return fmt.Errorf("%w: bank name is required", domain.ErrValidation)
	}
	if d.Alias == "" && d.CBU == "" {
		return fmt.Errorf("%w: alias or cbu is required", domain.ErrValidation)
	}
	if d.CBU != "" && !isCBU(d.CBU) {
		return fmt.Errorf("%w: cbu must have 22 digits", domain.ErrValidation)
	}
	return nil
}

func isCBU(s string) bool {
	if len(s) != 22 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
