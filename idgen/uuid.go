package idgen

import (
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidID = errors.New("invalid id")

var _uuidGenerator = func() string {
	return uuid.New().String()
}

// NewUUID returns a new entity id
func NewUUID() string {
	return _uuidGenerator()
}

// UseUUID swaps the entity id generator, mostly for tests
func UseUUID(fn func() string) {
	_uuidGenerator = fn
}

// ValidateUUID rejects ids that are not canonical UUIDs
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
