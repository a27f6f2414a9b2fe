package models

import (
	"encoding/json"
	"time"
)

// Audit operation constants
const (
	AuditOpGenerate       = "GENERATE"
	AuditOpReserve        = "RESERVE"
	AuditOpConfirm        = "CONFIRM"
	AuditOpCancel         = "CANCEL"
	AuditOpVoid           = "VOID"
	AuditOpManualOverride = "MANUAL_OVERRIDE"
	AuditOpBulkImport     = "BULK_IMPORT"
)

// NumberAudit is an immutable append-only record of one numbering operation,
// success or failure. CounterKeyJSON carries the serialized CounterKey so an
// administrative void can recover the original generation context.
type NumberAudit struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	GeneratedNumber *string         `gorm:"column:generated_number;size:100;index:idx_numaudit_number" json:"generated_number,omitempty"`
	CounterKeyJSON  json.RawMessage `gorm:"column:counter_key;type:jsonb" json:"counter_key,omitempty"`
	TemplateUsed    *string         `gorm:"column:template_used;size:200" json:"template_used,omitempty"`
	Sequence        *int            `gorm:"column:sequence" json:"sequence,omitempty"`
	Operation       string          `gorm:"size:20;not null;index:idx_numaudit_operation" json:"operation"`
	DocumentID      *uint           `gorm:"column:document_id;index:idx_numaudit_document" json:"document_id,omitempty"`
	ReservationTkn  *string         `gorm:"column:reservation_token;size:36" json:"reservation_token,omitempty"`
	OldValue        *string         `gorm:"column:old_value;type:text" json:"old_value,omitempty"`
	NewValue        *string         `gorm:"column:new_value;type:text" json:"new_value,omitempty"`
	Metadata        json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	UserID          *uint           `gorm:"column:user_id;index:idx_numaudit_user" json:"user_id,omitempty"`
	IPAddress       *string         `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`
	UserAgent       *string         `gorm:"type:text" json:"user_agent,omitempty"`
	Success         bool            `gorm:"column:is_success;not null;default:true;index:idx_numaudit_success" json:"is_success"`
	RetryCount      int             `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	LockWaitMs      *int64          `gorm:"column:lock_wait_ms" json:"lock_wait_ms,omitempty"`
	TotalDurationMs *int64          `gorm:"column:total_duration_ms" json:"total_duration_ms,omitempty"`
	CreatedAt       time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_numaudit_created_at" json:"created_at"`
}

func (NumberAudit) TableName() string { return "document_number_audit" }

// NumberAuditFilter represents filter criteria for audit queries
type NumberAuditFilter struct {
	GeneratedNumber *string
	Operation       *string
	UserID          *uint
	Success         *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

// Error classification constants
const (
	NumberErrorConflict       = "CONFLICT"
	NumberErrorValidation     = "VALIDATION"
	NumberErrorInfrastructure = "INFRASTRUCTURE"
	NumberErrorUnknown        = "UNKNOWN"
)

// NumberError is an immutable record of a failed numbering attempt.
type NumberError struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ErrorType    string          `gorm:"column:error_type;size:20;not null;default:UNKNOWN" json:"error_type"`
	ErrorMessage string          `gorm:"column:error_message;type:text;not null" json:"error_message"`
	ContextJSON  json.RawMessage `gorm:"column:context;type:jsonb" json:"context,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_numerror_created_at" json:"created_at"`
}

func (NumberError) TableName() string { return "document_number_errors" }

// NumberErrorFilter represents filter criteria for error queries
type NumberErrorFilter struct {
	ErrorType     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
