// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitearc/docnum/models"
	"gorm.io/gorm"
)

// NumberAuditRepositoryImpl implements NumberAuditRepository interface
type NumberAuditRepositoryImpl struct {
	*BaseRepository[models.NumberAudit, models.NumberAuditFilter]
}

// NewNumberAuditRepository creates a new numbering audit repository
func NewNumberAuditRepository(db *gorm.DB) NumberAuditRepository {
	return &NumberAuditRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NumberAudit, models.NumberAuditFilter](db),
	}
}

// LatestByNumber returns the most recent audit entry for a generated number.
// Administrative void relies on this to recover the original counter key.
func (r *NumberAuditRepositoryImpl) LatestByNumber(ctx context.Context, documentNumber string) (*models.NumberAudit, error) {
	db := r.getDB(ctx)

	var audit models.NumberAudit
	err := db.Where("generated_number = ?", documentNumber).
		Order("created_at DESC").
		First(&audit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find audit by number: %w", err)
	}
	return &audit, nil
}

// ListRecent retrieves the newest audit entries
func (r *NumberAuditRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.NumberAudit, error) {
	db := r.getDB(ctx)

	var audits []*models.NumberAudit
	err := db.Order("created_at DESC").Limit(limit).Find(&audits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent audits: %w", err)
	}
	return audits, nil
}

// ListByOperation retrieves audit entries for a specific operation with pagination
func (r *NumberAuditRepositoryImpl) ListByOperation(ctx context.Context, operation string, limit, offset int) ([]*models.NumberAudit, error) {
	db := r.getDB(ctx)

	var audits []*models.NumberAudit
	err := db.Where("operation = ?", operation).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&audits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audits by operation: %w", err)
	}
	return audits, nil
}

// ListByUser retrieves audit entries for a specific actor with pagination
func (r *NumberAuditRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.NumberAudit, error) {
	db := r.getDB(ctx)

	var audits []*models.NumberAudit
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&audits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audits by user: %w", err)
	}
	return audits, nil
}

// NumberErrorRepositoryImpl implements NumberErrorRepository interface
type NumberErrorRepositoryImpl struct {
	*BaseRepository[models.NumberError, models.NumberErrorFilter]
}

// NewNumberErrorRepository creates a new numbering error repository
func NewNumberErrorRepository(db *gorm.DB) NumberErrorRepository {
	return &NumberErrorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NumberError, models.NumberErrorFilter](db),
	}
}

// ListRecent retrieves the newest error entries
func (r *NumberErrorRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.NumberError, error) {
	db := r.getDB(ctx)

	var errs []*models.NumberError
	err := db.Order("created_at DESC").Limit(limit).Find(&errs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent errors: %w", err)
	}
	return errs, nil
}
