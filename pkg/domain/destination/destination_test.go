package destination

import (
	"testing"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d, err := New("Banco Nación", "chips.deposit", "0110599520000001234567", true)
	require.NoError(t, err)
	assert.True(t, d.Active)

	_, err = New("", "alias", "", true)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = New("Bank", "", "", true)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = New("Bank", "", "12345", true)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
