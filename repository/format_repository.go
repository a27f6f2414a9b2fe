// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberFormatRepositoryImpl implements NumberFormatRepository interface
type NumberFormatRepositoryImpl struct {
	*BaseRepository[models.NumberFormat, models.NumberFormatFilter]
}

// NewNumberFormatRepository creates a new numbering template repository
func NewNumberFormatRepository(db *gorm.DB) NumberFormatRepository {
	return &NumberFormatRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NumberFormat, models.NumberFormatFilter](db),
	}
}

// Resolve applies the template fallback order: exact (project, type) match
// first, then the project-wide default stored with a NULL type. The hard-coded
// global fallback is the caller's concern, so absence is not an error.
func (r *NumberFormatRepositoryImpl) Resolve(ctx context.Context, projectID uint, typeID uint) (*models.NumberFormat, error) {
	db := r.getDB(ctx)

	if typeID != 0 {
		var specific models.NumberFormat
		err := db.Where("project_id = ? AND correspondence_type_id = ?", projectID, typeID).
			Take(&specific).Error
		if err == nil {
			return &specific, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to resolve template: %w", err)
		}
	}

	var fallback models.NumberFormat
	err := db.Where("project_id = ? AND correspondence_type_id IS NULL", projectID).
		Take(&fallback).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve default template: %w", err)
	}
	return &fallback, nil
}

// ListAll returns every configured template
func (r *NumberFormatRepositoryImpl) ListAll(ctx context.Context) ([]*models.NumberFormat, error) {
	db := r.getDB(ctx)

	var formats []*models.NumberFormat
	err := db.Order("project_id ASC, correspondence_type_id ASC NULLS FIRST").Find(&formats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return formats, nil
}

// ListByProject returns the templates configured for one project
func (r *NumberFormatRepositoryImpl) ListByProject(ctx context.Context, projectID uint) ([]*models.NumberFormat, error) {
	db := r.getDB(ctx)

	var formats []*models.NumberFormat
	err := db.Where("project_id = ?", projectID).
		Order("correspondence_type_id ASC NULLS FIRST").
		Find(&formats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list templates by project: %w", err)
	}
	return formats, nil
}

// Upsert creates or replaces the template for (project, type). Typed rows and
// the NULL-type project default live under separate partial unique indexes, so
// the conflict target must name the matching index predicate.
func (r *NumberFormatRepositoryImpl) Upsert(ctx context.Context, format *models.NumberFormat) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	onConflict := clause.OnConflict{
		DoUpdates: clause.AssignmentColumns([]string{
			"format_template", "description", "reset_sequence_yearly", "updated_at",
		}),
	}
	if format.TypeID != nil {
		onConflict.Columns = []clause.Column{{Name: "project_id"}, {Name: "correspondence_type_id"}}
		onConflict.TargetWhere = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "correspondence_type_id IS NOT NULL"},
		}}
	} else {
		onConflict.Columns = []clause.Column{{Name: "project_id"}}
		onConflict.TargetWhere = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "correspondence_type_id IS NULL"},
		}}
	}

	format.UpdatedAt = utils.UTCNow()
	err = db.Clauses(onConflict).Create(format).Error
	if err != nil {
		return fmt.Errorf("failed to upsert template: %w", err)
	}
	return nil
}

// Delete removes a template by id
func (r *NumberFormatRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Delete(&models.NumberFormat{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}
