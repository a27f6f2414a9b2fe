// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/sitearc/docnum/models"
	"gorm.io/gorm"
)

// CodeDirectoryImpl resolves format tokens against the master-data tables.
// A miss (unknown id, id 0, or a read error) reports ok=false so the format
// resolver can substitute its sentinel; token resolution must never fail a
// generation request.
type CodeDirectoryImpl struct {
	DB *gorm.DB
}

// NewCodeDirectory creates a master-data backed code directory
func NewCodeDirectory(db *gorm.DB) CodeDirectory {
	return &CodeDirectoryImpl{DB: db}
}

func (d *CodeDirectoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return d.DB
}

func (d *CodeDirectoryImpl) lookup(ctx context.Context, model any, column string, id uint) (string, bool) {
	if id == 0 {
		return "", false
	}

	var code string
	err := d.getDB(ctx).Model(model).
		Select(column).
		Where("id = ?", id).
		Take(&code).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// Lookup failures degrade to the sentinel; they are not fatal.
			return "", false
		}
		return "", false
	}
	return code, code != ""
}

func (d *CodeDirectoryImpl) ProjectCode(ctx context.Context, id uint) (string, bool) {
	return d.lookup(ctx, &models.Project{}, "project_code", id)
}

func (d *CodeDirectoryImpl) OrganizationCode(ctx context.Context, id uint) (string, bool) {
	return d.lookup(ctx, &models.Organization{}, "organization_code", id)
}

func (d *CodeDirectoryImpl) TypeCode(ctx context.Context, id uint) (string, bool) {
	return d.lookup(ctx, &models.CorrespondenceType{}, "type_code", id)
}

func (d *CodeDirectoryImpl) DisciplineCode(ctx context.Context, id uint) (string, bool) {
	return d.lookup(ctx, &models.Discipline{}, "discipline_code", id)
}
