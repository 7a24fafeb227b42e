package testutils

import "time"

// Account is a plain entity without soft deletion
type Account struct {
	ID      int64 `db:"id" json:"id"`
	Balance int   `db:"balance" json:"balance"`
}

// Record carries the soft-delete columns shared by Document
type Record struct {
	ID        string     `db:"id" json:"id"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

func (r *Record) IsDeleted() bool            { return r.DeletedAt != nil }
func (r *Record) GetDeletedAt() *time.Time   { return r.DeletedAt }
func (r *Record) SetDeletedAt(at *time.Time) { r.DeletedAt = at }

// Document is a soft-deletable entity built on an embedded Record
type Document struct {
	Record
	Owner string `db:"owner" json:"owner"`
	Title string `db:"title" json:"title"`
	Rank  int    `db:"rank" json:"rank"`
}

// DocumentID extracts the id of a Document
func DocumentID(d *Document) string { return d.ID }
