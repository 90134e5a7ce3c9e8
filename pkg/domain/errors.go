package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when a user is not authorized to perform an action
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a user is not allowed to perform an action
	ErrForbidden = errors.New("forbidden")
)

// Ledger errors
var (
	// ErrNoAgentAssigned is returned when a player without a manager requests a transaction
	ErrNoAgentAssigned = errors.New("no agent assigned")
	// ErrInsufficientBalance is returned when a withdrawal exceeds the available balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAlreadyProcessed is returned when a transaction is no longer pending
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrExternalFeed is returned when the payment feed could not be queried
	ErrExternalFeed = errors.New("external payment feed error")
	// ErrSurchargeExhausted is returned when no free surcharge slot is left for an amount
	ErrSurchargeExhausted = errors.New("no free surcharge available for amount")
)

// Class tells a caller whether retrying an operation can change its outcome.
type Class string

const (
	ClassValidation Class = "validation"
	ClassTransient  Class = "transient"
	ClassTerminal   Class = "terminal"
)

// Classify maps an error to its retry class.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoAgentAssigned),
		errors.Is(err, ErrInsufficientBalance):
		return ClassValidation
	case errors.Is(err, ErrExternalFeed),
		errors.Is(err, ErrSurchargeExhausted):
		return ClassTransient
	default:
		return ClassTerminal
	}
}
