package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"validation", fmt.Errorf("amount: %w", ErrValidation), ClassValidation},
		{"no agent", ErrNoAgentAssigned, ClassValidation},
		{"insufficient", fmt.Errorf("debit: %w", ErrInsufficientBalance), ClassValidation},
		{"feed", fmt.Errorf("search: %w", ErrExternalFeed), ClassTransient},
		{"surcharge", ErrSurchargeExhausted, ClassTransient},
		{"processed", ErrAlreadyProcessed, ClassTerminal},
		{"unknown", errors.New("boom"), ClassTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
