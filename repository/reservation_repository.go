// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sitearc/docnum/models"
	"gorm.io/gorm"
)

// NumberReservationRepositoryImpl implements NumberReservationRepository interface
type NumberReservationRepositoryImpl struct {
	*BaseRepository[models.NumberReservation, models.NumberReservationFilter]
}

// NewNumberReservationRepository creates a new reservation repository
func NewNumberReservationRepository(db *gorm.DB) NumberReservationRepository {
	return &NumberReservationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NumberReservation, models.NumberReservationFilter](db),
	}
}

// ByToken retrieves a reservation by its opaque token, nil when unknown
func (r *NumberReservationRepositoryImpl) ByToken(ctx context.Context, token string) (*models.NumberReservation, error) {
	db := r.getDB(ctx)

	var reservation models.NumberReservation
	err := db.Where("token = ?", token).Take(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reservation by token: %w", err)
	}
	return &reservation, nil
}

// ReservedByToken retrieves a reservation by token only if still RESERVED
func (r *NumberReservationRepositoryImpl) ReservedByToken(ctx context.Context, token string) (*models.NumberReservation, error) {
	db := r.getDB(ctx)

	var reservation models.NumberReservation
	err := db.Where("token = ? AND status = ?", token, models.ReservationStatusReserved).
		Take(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reserved reservation: %w", err)
	}
	return &reservation, nil
}

// ReservedByNumber retrieves the RESERVED reservation holding a document number
func (r *NumberReservationRepositoryImpl) ReservedByNumber(ctx context.Context, documentNumber string) (*models.NumberReservation, error) {
	db := r.getDB(ctx)

	var reservation models.NumberReservation
	err := db.Where("document_number = ? AND status = ?", documentNumber, models.ReservationStatusReserved).
		Take(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reservation by number: %w", err)
	}
	return &reservation, nil
}

// Confirm transitions a RESERVED reservation to CONFIRMED, binding the record
// id. The status predicate guarantees a reservation is confirmed at most once.
func (r *NumberReservationRepositoryImpl) Confirm(ctx context.Context, token string, documentID *uint, at time.Time) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
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

	res := db.Model(&models.NumberReservation{}).
		Where("token = ? AND status = ?", token, models.ReservationStatusReserved).
		Updates(map[string]any{
			"status":       models.ReservationStatusConfirmed,
			"document_id":  documentID,
			"confirmed_at": at,
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to confirm reservation: %w", res.Error)
		return false, err
	}
	return res.RowsAffected == 1, nil
}

// Cancel transitions a RESERVED reservation to CANCELLED. Returns false when
// the reservation was already terminal, which callers treat as a no-op.
func (r *NumberReservationRepositoryImpl) Cancel(ctx context.Context, token string, reason *string, at time.Time) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
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

	res := db.Model(&models.NumberReservation{}).
		Where("token = ? AND status = ?", token, models.ReservationStatusReserved).
		Updates(map[string]any{
			"status":        models.ReservationStatusCancelled,
			"cancelled_at":  at,
			"cancel_reason": reason,
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to cancel reservation: %w", res.Error)
		return false, err
	}
	return res.RowsAffected == 1, nil
}

// Void transitions a RESERVED reservation to VOID. Administrative only.
func (r *NumberReservationRepositoryImpl) Void(ctx context.Context, token string, reason *string, at time.Time) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
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

	res := db.Model(&models.NumberReservation{}).
		Where("token = ? AND status = ?", token, models.ReservationStatusReserved).
		Updates(map[string]any{
			"status":        models.ReservationStatusVoid,
			"cancelled_at":  at,
			"cancel_reason": reason,
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to void reservation: %w", res.Error)
		return false, err
	}
	return res.RowsAffected == 1, nil
}

// SweepExpired bulk-cancels every RESERVED reservation whose expiry has
// passed. Conditioning on the current status makes the sweep safe to run
// concurrently with itself and with explicit cancellations.
func (r *NumberReservationRepositoryImpl) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
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

	res := db.Model(&models.NumberReservation{}).
		Where("status = ? AND expires_at < ?", models.ReservationStatusReserved, now).
		Updates(map[string]any{
			"status":        models.ReservationStatusCancelled,
			"cancelled_at":  now,
			"cancel_reason": "Expired",
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to sweep expired reservations: %w", res.Error)
		return 0, err
	}
	return res.RowsAffected, nil
}
