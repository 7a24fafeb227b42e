package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUUID(t *testing.T) {
	id := NewUUID()
	assert.NoError(t, ValidateUUID(id))
	assert.NotEqual(t, id, NewUUID())

	assert.ErrorIs(t, ValidateUUID("t1"), ErrInvalidID)
	assert.ErrorIs(t, ValidateUUID(""), ErrInvalidID)
}

func TestNewULID_Sortable(t *testing.T) {
	prev := NewULID()
	for i := 0; i < 100; i++ {
		next := NewULID()
		assert.Len(t, next, 26)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestUseGenerators(t *testing.T) {
	origUUID, origULID := _uuidGenerator, _ulidGenerator
	defer func() { UseUUID(origUUID); UseULID(origULID) }()

	UseUUID(func() string { return "fixed-uuid" })
	UseULID(func() string { return "fixed-ulid" })
	assert.Equal(t, "fixed-uuid", NewUUID())
	assert.Equal(t, "fixed-ulid", NewULID())
}
