package lifecycle

import "fmt"

// Scope identifies the caller. Every operation only sees rows of
// OrganizationID. Elevated callers may run irreversible operations and,
// with an empty OrganizationID, act across organizations.
type Scope struct {
	OrganizationID string
	UserID         string
	Elevated       bool
}

func (s Scope) validate() error {
	if s.OrganizationID == "" && !s.Elevated {
		return fmt.Errorf("%w: missing organization scope", ErrUnauthorized)
	}
	return nil
}

func (s Scope) requireElevated() error {
	if !s.Elevated {
		return fmt.Errorf("%w: elevated privileges required", ErrUnauthorized)
	}
	return nil
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page is a skip/limit window
type Page struct {
	Skip  int
	Limit int
}

func (p Page) normalize() (Page, error) {
	if p.Skip < 0 || p.Limit < 0 {
		return p, fmt.Errorf("%w: negative pagination", ErrInvalidArgument)
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p, nil
}
