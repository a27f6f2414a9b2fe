// Package businessflow contains the business logic for the document numbering engine.
package businessflow

import (
	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/models"
)

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) ipPtr() *string {
	if cm == nil || cm.IPAddress == "" {
		return nil
	}
	ip := cm.IPAddress
	return &ip
}

func (cm *ClientMetadata) userAgentPtr() *string {
	if cm == nil || cm.UserAgent == "" {
		return nil
	}
	ua := cm.UserAgent
	return &ua
}

// buildCounterKey assembles the composite counter identity from a generation
// context. All optional dimensions default to 0; the reset scope has already
// been decided by template resolution.
func buildCounterKey(req *dto.GenerateNumberRequest, resetScope string) models.CounterKey {
	return models.CounterKey{
		ProjectID:       req.ProjectID,
		OriginatorOrgID: req.OriginatorOrgID,
		RecipientOrgID:  req.RecipientOrgID,
		TypeID:          req.TypeID,
		SubTypeID:       req.SubTypeID,
		RFATypeID:       req.RFATypeID,
		DisciplineID:    req.DisciplineID,
		ResetScope:      resetScope,
	}
}

// counterKeyFromDTO converts an explicit administrative key
func counterKeyFromDTO(key dto.CounterKeyDTO) models.CounterKey {
	return models.CounterKey{
		ProjectID:       key.ProjectID,
		OriginatorOrgID: key.OriginatorOrgID,
		RecipientOrgID:  key.RecipientOrgID,
		TypeID:          key.TypeID,
		SubTypeID:       key.SubTypeID,
		RFATypeID:       key.RFATypeID,
		DisciplineID:    key.DisciplineID,
		ResetScope:      key.ResetScope,
	}
}

// counterKeyToDTO converts a counter identity for API responses
func counterKeyToDTO(key models.CounterKey) dto.CounterKeyDTO {
	return dto.CounterKeyDTO{
		ProjectID:       key.ProjectID,
		OriginatorOrgID: key.OriginatorOrgID,
		RecipientOrgID:  key.RecipientOrgID,
		TypeID:          key.TypeID,
		SubTypeID:       key.SubTypeID,
		RFATypeID:       key.RFATypeID,
		DisciplineID:    key.DisciplineID,
		ResetScope:      key.ResetScope,
	}
}

// ToReservationDTO converts a reservation model for API responses
func ToReservationDTO(r models.NumberReservation) dto.ReservationDTO {
	return dto.ReservationDTO{
		Token:          r.Token,
		DocumentNumber: r.DocumentNumber,
		Status:         r.Status,
		DocumentID:     r.DocumentID,
		UserID:         r.UserID,
		ReservedAt:     r.ReservedAt,
		ExpiresAt:      r.ExpiresAt,
		ConfirmedAt:    r.ConfirmedAt,
		CancelledAt:    r.CancelledAt,
		CancelReason:   r.CancelReason,
	}
}

// validateGenerateRequest enforces the required generation dimensions
func validateGenerateRequest(req *dto.GenerateNumberRequest) error {
	if req == nil {
		return ErrInvalidContext
	}
	if req.ProjectID == 0 {
		return ErrProjectRequired
	}
	if req.OriginatorOrgID == 0 {
		return ErrOriginatorRequired
	}
	if req.TypeID == 0 {
		return ErrTypeRequired
	}
	return nil
}
