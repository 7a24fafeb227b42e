package lifecycle

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrDeleted         = errors.New("entity has been deleted")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("entity already exists")
)
