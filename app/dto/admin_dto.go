package dto

import (
	"encoding/json"
	"time"
)

// CounterKeyDTO addresses one sequence counter in administrative operations.
// ResetScope must be given explicitly; admins act on a concrete counter row.
type CounterKeyDTO struct {
	ProjectID       uint   `json:"project_id" validate:"required,gt=0"`
	OriginatorOrgID uint   `json:"originator_organization_id" validate:"required,gt=0"`
	RecipientOrgID  uint   `json:"recipient_organization_id,omitempty"`
	TypeID          uint   `json:"correspondence_type_id" validate:"required,gt=0"`
	SubTypeID       uint   `json:"sub_type_id,omitempty"`
	RFATypeID       uint   `json:"rfa_type_id,omitempty"`
	DisciplineID    uint   `json:"discipline_id,omitempty"`
	ResetScope      string `json:"reset_scope" validate:"required,max=16"`
}

// ManualOverrideRequest force-sets a counter to a new last number.
type ManualOverrideRequest struct {
	CounterKeyDTO
	NewLastNumber int     `json:"new_last_number" validate:"gte=0"`
	Reason        string  `json:"reason" validate:"required"`
	Reference     *string `json:"reference,omitempty"`
}

// VoidAndReplaceRequest voids an issued number, optionally generating a
// replacement from the number's recovered generation context.
type VoidAndReplaceRequest struct {
	Number  string `json:"number" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
	Replace bool   `json:"replace"`
}

// VoidAndReplaceResponse reports the void and the optional replacement.
type VoidAndReplaceResponse struct {
	VoidedNumber      string  `json:"voided_number"`
	Status            string  `json:"status"`
	ReplacementNumber *string `json:"replacement_number,omitempty"`
}

// CancelNumberRequest marks a never-attached number as cancelled.
type CancelNumberRequest struct {
	Number string `json:"number" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// BulkImportEntry is one legacy counter in a bulk import payload.
type BulkImportEntry struct {
	CounterKeyDTO
	LastNumber int `json:"last_number" validate:"gte=0"`
}

// BulkImportRequest imports a batch of legacy counters.
type BulkImportRequest struct {
	Entries []BulkImportEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkImportResponse reports how many counters were imported.
type BulkImportResponse struct {
	Imported int `json:"imported"`
}

// SaveTemplateRequest creates or replaces a numbering template. A nil TypeID
// stores the project-wide default.
type SaveTemplateRequest struct {
	ProjectID           uint    `json:"project_id" validate:"required,gt=0"`
	TypeID              *uint   `json:"correspondence_type_id,omitempty"`
	FormatTemplate      string  `json:"format_template" validate:"required,max=100"`
	Description         *string `json:"description,omitempty"`
	ResetSequenceYearly *bool   `json:"reset_sequence_yearly,omitempty"`
}

// TemplateDTO is the read model for one numbering template.
type TemplateDTO struct {
	ID                  uint    `json:"id"`
	ProjectID           uint    `json:"project_id"`
	TypeID              *uint   `json:"correspondence_type_id,omitempty"`
	FormatTemplate      string  `json:"format_template"`
	Description         *string `json:"description,omitempty"`
	ResetSequenceYearly bool    `json:"reset_sequence_yearly"`
}

// CounterDTO is the read model for the admin sequence viewer.
type CounterDTO struct {
	CounterKeyDTO
	LastNumber int       `json:"last_number"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditEntryDTO is the read model for one audit trail entry.
type AuditEntryDTO struct {
	ID              uint            `json:"id"`
	GeneratedNumber *string         `json:"generated_number,omitempty"`
	Operation       string          `json:"operation"`
	Sequence        *int            `json:"sequence,omitempty"`
	TemplateUsed    *string         `json:"template_used,omitempty"`
	CounterKey      json.RawMessage `json:"counter_key,omitempty"`
	UserID          *uint           `json:"user_id,omitempty"`
	Success         bool            `json:"is_success"`
	RetryCount      int             `json:"retry_count"`
	LockWaitMs      *int64          `json:"lock_wait_ms,omitempty"`
	TotalDurationMs *int64          `json:"total_duration_ms,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ErrorEntryDTO is the read model for one failed-attempt entry.
type ErrorEntryDTO struct {
	ID           uint            `json:"id"`
	ErrorType    string          `json:"error_type"`
	ErrorMessage string          `json:"error_message"`
	Context      json.RawMessage `json:"context,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NumberingLogsResponse bundles recent audit and error entries for operators.
type NumberingLogsResponse struct {
	Audit  []AuditEntryDTO `json:"audit"`
	Errors []ErrorEntryDTO `json:"errors"`
}
