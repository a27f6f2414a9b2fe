package dto

import (
	"encoding/json"
	"time"
)

// GenerateNumberRequest carries the generation context for one document number.
// Zero-valued optional dimensions mean "not specified / any".
type GenerateNumberRequest struct {
	ProjectID       uint              `json:"project_id" validate:"required,gt=0"`
	OriginatorOrgID uint              `json:"originator_organization_id" validate:"required,gt=0"`
	TypeID          uint              `json:"correspondence_type_id" validate:"required,gt=0"`
	RecipientOrgID  uint              `json:"recipient_organization_id,omitempty"`
	SubTypeID       uint              `json:"sub_type_id,omitempty"`
	RFATypeID       uint              `json:"rfa_type_id,omitempty"`
	DisciplineID    uint              `json:"discipline_id,omitempty"`
	Year            int               `json:"year,omitempty" validate:"omitempty,gte=2000,lte=3000"`
	CustomTokens    map[string]string `json:"custom_tokens,omitempty"`
}

// GenerateNumberResponse is the committed result of a generation.
type GenerateNumberResponse struct {
	Number   string `json:"number"`
	Sequence int    `json:"sequence"`
	AuditID  uint   `json:"audit_id"`
}

// PreviewNumberResponse shows the next number without committing it. A
// concurrent real generation can invalidate the preview at any moment.
type PreviewNumberResponse struct {
	Number       string `json:"number"`
	NextSequence int    `json:"next_sequence"`
}

// ReserveNumberRequest starts the two-phase reserve/confirm protocol.
type ReserveNumberRequest struct {
	GenerateNumberRequest
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ReserveNumberResponse holds the time-boxed reservation token.
type ReserveNumberResponse struct {
	Token     string    `json:"token"`
	Number    string    `json:"number"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfirmReservationRequest binds a reserved number to a stored document.
type ConfirmReservationRequest struct {
	Token      string `json:"token" validate:"required,uuid4"`
	DocumentID *uint  `json:"document_id,omitempty"`
}

// ConfirmReservationResponse reports the now-permanent binding.
type ConfirmReservationResponse struct {
	Number      string    `json:"number"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// CancelReservationRequest releases a reservation. Idempotent.
type CancelReservationRequest struct {
	Token  string  `json:"token" validate:"required,uuid4"`
	Reason *string `json:"reason,omitempty"`
}

// ReservationDTO is the read model for one reservation.
type ReservationDTO struct {
	Token          string     `json:"token"`
	DocumentNumber string     `json:"document_number"`
	Status         string     `json:"status"`
	DocumentID     *uint      `json:"document_id,omitempty"`
	UserID         uint       `json:"user_id"`
	ReservedAt     time.Time  `json:"reserved_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CancelReason   *string    `json:"cancel_reason,omitempty"`
}
