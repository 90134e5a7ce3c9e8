package repository

import (
	"errors"
	"fmt"

	"github.com/amirasaad/chipload/pkg/domain"
	"gorm.io/gorm"
)

// MapGormErrorToDomain translates gorm failures into the domain taxonomy.
// Duplicate usernames, operation codes and payment ids become
// ErrAlreadyExists; a dangling manager or agent reference is a validation
// error. Anything else is returned as is.
func MapGormErrorToDomain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAlreadyExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: referenced user does not exist", domain.ErrValidation)
	}
	return err
}

// WrapError runs a write and maps its error.
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}

// notFoundAs reports a missing row as the entity sentinel, e.g. ErrUserNotFound.
func notFoundAs(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return MapGormErrorToDomain(err)
}
