package models

import "time"

// Master-data entities referenced by format tokens. The numbering engine only
// reads the code columns; ownership of these tables lives elsewhere.

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectCode string    `gorm:"column:project_code;size:20;not null;uniqueIndex" json:"project_code"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Project) TableName() string { return "projects" }

type Organization struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrganizationCode string    `gorm:"column:organization_code;size:20;not null;uniqueIndex" json:"organization_code"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Organization) TableName() string { return "organizations" }

type CorrespondenceType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TypeCode  string    `gorm:"column:type_code;size:20;not null;uniqueIndex" json:"type_code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (CorrespondenceType) TableName() string { return "correspondence_types" }

type Discipline struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DisciplineCode string    `gorm:"column:discipline_code;size:20;not null;uniqueIndex" json:"discipline_code"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Discipline) TableName() string { return "disciplines" }
