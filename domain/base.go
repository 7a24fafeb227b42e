package domain

import (
	"encoding/json"
	"time"

	"github.com/rhesis-ai/rhesis-backend/sietch"
)

// Base carries the columns every Rhesis table shares. It must be embedded
// first so that id is the primary key column.
type Base struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at"`
}

// Entity is implemented by every model embedding Base
type Entity interface {
	sietch.SoftDeletable
	sietch.Timestamped
	GetID() string
	SetID(id string)
	GetOrganizationID() string
	SetOrganizationID(org string)
}

func (b *Base) GetID() string                { return b.ID }
func (b *Base) SetID(id string)              { b.ID = id }
func (b *Base) GetOrganizationID() string    { return b.OrganizationID }
func (b *Base) SetOrganizationID(org string) { b.OrganizationID = org }
func (b *Base) IsDeleted() bool              { return b.DeletedAt != nil }
func (b *Base) GetDeletedAt() *time.Time     { return b.DeletedAt }
func (b *Base) SetDeletedAt(at *time.Time)   { b.DeletedAt = at }
func (b *Base) SetCreatedAt(t time.Time)     { b.CreatedAt = t }
func (b *Base) SetUpdatedAt(t time.Time)     { b.UpdatedAt = t }

// Render encodes item as a JSON object and adds the derived is_deleted flag
func Render(item any) (map[string]any, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if sd, ok := item.(sietch.SoftDeletable); ok {
		out["is_deleted"] = sd.IsDeleted()
	}
	return out, nil
}

// ID returns the primary key of any entity embedding Base
func ID[T any](item *T) string {
	return any(item).(Entity).GetID()
}
