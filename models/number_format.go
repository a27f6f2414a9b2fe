package models

import "time"

// FallbackTemplate is used when neither a (project, type) template nor a
// project-wide default exists. It only contains tokens that always resolve.
const FallbackTemplate = "{ORG}-{RECIPIENT}-{SEQ:4}-{YEAR:BE}"

// NumberFormat is a per-project numbering template. TypeID is NULL for the
// project-wide default. Uniqueness per (project, type) and per project default
// is enforced by partial indexes in the migrations, not by tags here.
// Changing a template only affects future numbers.
type NumberFormat struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ProjectID           uint      `gorm:"column:project_id;not null" json:"project_id"`
	TypeID              *uint     `gorm:"column:correspondence_type_id" json:"correspondence_type_id,omitempty"`
	FormatTemplate      string    `gorm:"column:format_template;size:100;not null" json:"format_template"`
	Description         *string   `gorm:"type:text" json:"description,omitempty"`
	ResetSequenceYearly bool      `gorm:"column:reset_sequence_yearly;not null;default:true" json:"reset_sequence_yearly"`
	CreatedAt           time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt           time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (NumberFormat) TableName() string { return "document_number_formats" }

// NumberFormatFilter represents filter criteria for template queries
type NumberFormatFilter struct {
	ProjectID *uint
	TypeID    *uint
}
