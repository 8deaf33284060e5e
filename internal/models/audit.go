package models

import "time"

// AuditFields carries the bookkeeping columns shared by every persisted entity.
type AuditFields struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

// NewAuditFields returns active audit fields stamped at now.
func NewAuditFields(now time.Time) AuditFields {
	return AuditFields{CreatedAt: now, UpdatedAt: now, IsActive: true}
}

// Touch refreshes the update timestamp.
func (a *AuditFields) Touch(now time.Time) {
	a.UpdatedAt = now
}
