// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCounterConflict is returned when the compare-and-swap loop exhausts its
// retries. The counter is never advanced twice and never skipped; the caller
// may retry the whole operation.
var ErrCounterConflict = errors.New("counter version conflict, retries exhausted")

// CounterRetryPolicy bounds the compare-and-swap retry loop.
type CounterRetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	Jitter     time.Duration
}

// DefaultCounterRetryPolicy returns the standard bounded policy.
func DefaultCounterRetryPolicy() CounterRetryPolicy {
	return CounterRetryPolicy{
		MaxRetries: utils.CounterMaxRetries,
		Backoff:    utils.CounterRetryBackoff,
		Jitter:     utils.CounterRetryJitter,
	}
}

// CounterRepositoryImpl implements CounterRepository interface
type CounterRepositoryImpl struct {
	*BaseRepository[models.NumberCounter, models.NumberCounterFilter]
	policy CounterRetryPolicy
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB, policy CounterRetryPolicy) CounterRepository {
	if policy.MaxRetries <= 0 {
		policy = DefaultCounterRetryPolicy()
	}
	return &CounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NumberCounter, models.NumberCounterFilter](db),
		policy:         policy,
	}
}

// whereKey applies the full composite-key predicate
func whereKey(db *gorm.DB, key models.CounterKey) *gorm.DB {
	return db.Where(
		"project_id = ? AND originator_organization_id = ? AND recipient_organization_id = ? AND correspondence_type_id = ? AND sub_type_id = ? AND rfa_type_id = ? AND discipline_id = ? AND reset_scope = ?",
		key.ProjectID, key.OriginatorOrgID, key.RecipientOrgID, key.TypeID,
		key.SubTypeID, key.RFATypeID, key.DisciplineID, key.ResetScope,
	)
}

// Increment atomically advances the counter for key by exactly 1.
//
// Each attempt reads the row, then performs a conditional write guarded by the
// version column. A lost race (zero rows affected) retries from a fresh read
// with exponential backoff plus jitter; a missing row is created with
// last_number = 1, and a lost creation race falls straight back to the
// increment path. Exhausting the retry budget surfaces ErrCounterConflict
// rather than skipping or duplicating a number.
func (r *CounterRepositoryImpl) Increment(ctx context.Context, key models.CounterKey) (*CounterIncrement, error) {
	db := r.getDB(ctx)

	for attempt := 0; attempt < r.policy.MaxRetries; attempt++ {
		var counter models.NumberCounter
		err := whereKey(db, key).Take(&counter).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh := models.NumberCounter{
				CounterKey: key,
				LastNumber: 1,
				Version:    0,
			}
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
			if res.Error != nil {
				return nil, fmt.Errorf("failed to create counter: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				return &CounterIncrement{Sequence: 1, Retries: attempt}, nil
			}
			// Concurrent creator won the race; fall back to the increment path.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read counter: %w", err)
		}

		next := counter.LastNumber + 1
		res := whereKey(db.Model(&models.NumberCounter{}), key).
			Where("version = ?", counter.Version).
			Updates(map[string]any{
				"last_number": next,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  utils.UTCNow(),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to increment counter: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return &CounterIncrement{Sequence: next, Retries: attempt}, nil
		}

		// Version mismatch: another writer advanced the counter first.
		if attempt < r.policy.MaxRetries-1 {
			if err := r.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	return nil, ErrCounterConflict
}

// backoff sleeps for an exponentially growing, jittered delay or until ctx is done
func (r *CounterRepositoryImpl) backoff(ctx context.Context, attempt int) error {
	delay := r.policy.Backoff * (1 << attempt)
	if r.policy.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(r.policy.Jitter)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// PeekCurrent returns last_number without mutation; 0 when the counter is absent
func (r *CounterRepositoryImpl) PeekCurrent(ctx context.Context, key models.CounterKey) (int, error) {
	counter, err := r.ByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if counter == nil {
		return 0, nil
	}
	return counter.LastNumber, nil
}

// ByKey fetches the full counter row for key, nil when absent
func (r *CounterRepositoryImpl) ByKey(ctx context.Context, key models.CounterKey) (*models.NumberCounter, error) {
	db := r.getDB(ctx)

	var counter models.NumberCounter
	err := whereKey(db, key).Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}
	return &counter, nil
}

// ForceSet unconditionally sets last_number for key. The version column is
// still bumped so in-flight optimistic writers fail their compare-and-swap
// instead of silently overwriting the administrative value.
func (r *CounterRepositoryImpl) ForceSet(ctx context.Context, key models.CounterKey, value int) error {
	if value < 0 {
		return fmt.Errorf("counter value must be non-negative, got %d", value)
	}

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

	res := whereKey(db.Model(&models.NumberCounter{}), key).
		Updates(map[string]any{
			"last_number": value,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  utils.UTCNow(),
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to force-set counter: %w", res.Error)
		return err
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// No row yet: create it at the requested value.
	fresh := models.NumberCounter{
		CounterKey: key,
		LastNumber: value,
		Version:    0,
	}
	cres := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
	if cres.Error != nil {
		err = fmt.Errorf("failed to create counter for force-set: %w", cres.Error)
		return err
	}
	if cres.RowsAffected == 1 {
		return nil
	}

	// A concurrent creator slipped in between the update and the insert; the
	// unconditional update now targets an existing row.
	res = whereKey(db.Model(&models.NumberCounter{}), key).
		Updates(map[string]any{
			"last_number": value,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  utils.UTCNow(),
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to force-set counter: %w", res.Error)
		return err
	}
	return nil
}

// BulkImport force-sets a batch of legacy counters inside one transaction
func (r *CounterRepositoryImpl) BulkImport(ctx context.Context, entries []CounterImportEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		for _, entry := range entries {
			if err := r.ForceSet(txCtx, entry.Key, entry.LastNumber); err != nil {
				return fmt.Errorf("bulk import failed for key %s: %w", entry.Key.LockKey(), err)
			}
		}
		return nil
	})
}

// ListByProject returns every counter row for a project, newest scope first
func (r *CounterRepositoryImpl) ListByProject(ctx context.Context, projectID uint) ([]*models.NumberCounter, error) {
	db := r.getDB(ctx)

	var counters []*models.NumberCounter
	err := db.Where("project_id = ?", projectID).
		Order("reset_scope DESC, correspondence_type_id ASC").
		Find(&counters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list counters by project: %w", err)
	}
	return counters, nil
}
