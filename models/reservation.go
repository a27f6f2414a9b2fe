package models

import (
	"encoding/json"
	"time"
)

// Reservation status constants. RESERVED is the only non-terminal state.
const (
	ReservationStatusReserved  = "RESERVED"
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusVoid      = "VOID"
)

// NumberReservation is a time-boxed hold on an already-consumed document
// number. Cancellation leaves a permanent gap in the sequence; the counter is
// never rolled back.
type NumberReservation struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Token           string          `gorm:"size:36;not null;uniqueIndex:ux_reservation_token" json:"token"`
	DocumentNumber  string          `gorm:"column:document_number;size:100;not null;uniqueIndex:ux_reservation_number" json:"document_number"`
	Status          string          `gorm:"size:16;not null;default:RESERVED;index:idx_reservation_status_expires,priority:1" json:"status"`
	DocumentID      *uint           `gorm:"column:document_id;index" json:"document_id,omitempty"`
	ProjectID       uint            `gorm:"column:project_id;not null" json:"project_id"`
	TypeID          uint            `gorm:"column:correspondence_type_id;not null" json:"correspondence_type_id"`
	OriginatorOrgID uint            `gorm:"column:originator_organization_id;not null" json:"originator_organization_id"`
	RecipientOrgID  uint            `gorm:"column:recipient_organization_id;not null;default:0" json:"recipient_organization_id"`
	Sequence        int             `gorm:"not null" json:"sequence"`
	UserID          uint            `gorm:"column:user_id;not null;index:idx_reservation_user" json:"user_id"`
	IPAddress       *string         `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`
	UserAgent       *string         `gorm:"type:text" json:"user_agent,omitempty"`
	Metadata        json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	ReservedAt      time.Time       `gorm:"column:reserved_at;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"reserved_at"`
	ExpiresAt       time.Time       `gorm:"column:expires_at;not null;index:idx_reservation_status_expires,priority:2" json:"expires_at"`
	ConfirmedAt     *time.Time      `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time      `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason    *string         `gorm:"column:cancel_reason;type:text" json:"cancel_reason,omitempty"`
}

func (NumberReservation) TableName() string { return "document_number_reservations" }

func (r *NumberReservation) IsReserved() bool { return r.Status == ReservationStatusReserved }

// NumberReservationFilter represents filter criteria for reservation queries
type NumberReservationFilter struct {
	Token          *string
	DocumentNumber *string
	Status         *string
	UserID         *uint
	ExpiresBefore  *time.Time
}
