// Package models contains domain entities and business models for the document numbering engine
package models

import (
	"fmt"
	"time"
)

// Reset scope constants. The scope string is part of the counter identity so
// that yearly-resetting types and never-resetting types occupy disjoint rows.
const (
	ResetScopeNone       = "NONE"
	ResetScopeYearPrefix = "YEAR_"
)

// YearScope returns the reset scope string for a yearly-resetting sequence.
func YearScope(year int) string {
	return fmt.Sprintf("%s%d", ResetScopeYearPrefix, year)
}

// CounterKey is the composite identity of one independent sequence counter.
// Every dimension is explicit; 0 means "not specified / any".
type CounterKey struct {
	ProjectID       uint   `gorm:"column:project_id;primaryKey" json:"project_id"`
	OriginatorOrgID uint   `gorm:"column:originator_organization_id;primaryKey" json:"originator_organization_id"`
	RecipientOrgID  uint   `gorm:"column:recipient_organization_id;primaryKey;default:0" json:"recipient_organization_id"`
	TypeID          uint   `gorm:"column:correspondence_type_id;primaryKey" json:"correspondence_type_id"`
	SubTypeID       uint   `gorm:"column:sub_type_id;primaryKey;default:0" json:"sub_type_id"`
	RFATypeID       uint   `gorm:"column:rfa_type_id;primaryKey;default:0" json:"rfa_type_id"`
	DisciplineID    uint   `gorm:"column:discipline_id;primaryKey;default:0" json:"discipline_id"`
	ResetScope      string `gorm:"column:reset_scope;primaryKey;size:16" json:"reset_scope"`
}

// LockKey renders the key as a single string suitable for a distributed lock name.
func (k CounterKey) LockKey() string {
	return fmt.Sprintf("lock:docnum:%d:%d:%d:%d:%d:%d:%d:%s",
		k.ProjectID, k.OriginatorOrgID, k.RecipientOrgID, k.TypeID,
		k.SubTypeID, k.RFATypeID, k.DisciplineID, k.ResetScope)
}

// NumberCounter is the durable last-issued-number record for one CounterKey.
// Mutated only through the compare-and-swap increment or an administrative
// force-set; both bump Version so stale optimistic writers fail.
type NumberCounter struct {
	CounterKey
	LastNumber int       `gorm:"column:last_number;not null;default:0" json:"last_number"`
	Version    int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (NumberCounter) TableName() string { return "document_number_counters" }

// NumberCounterFilter represents filter criteria for counter queries
type NumberCounterFilter struct {
	ProjectID  *uint
	TypeID     *uint
	ResetScope *string
}
