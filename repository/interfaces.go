// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/sitearc/docnum/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// CounterIncrement is the outcome of a successful counter increment.
type CounterIncrement struct {
	Sequence int
	Retries  int
}

// CounterImportEntry is one legacy counter row for bulk import.
type CounterImportEntry struct {
	Key        models.CounterKey
	LastNumber int
}

// CounterRepository defines operations for the durable sequence counters.
// Increment and ForceSet are the only mutation paths; both bump the version
// column so concurrent optimistic writers fail instead of overwriting.
type CounterRepository interface {
	// Increment atomically advances the counter for key by exactly 1 and
	// returns the new value, creating the row on first use.
	Increment(ctx context.Context, key models.CounterKey) (*CounterIncrement, error)
	// PeekCurrent returns the last issued number without mutation (0 if the
	// counter does not exist yet).
	PeekCurrent(ctx context.Context, key models.CounterKey) (int, error)
	// ForceSet unconditionally sets last_number, still bumping version.
	ForceSet(ctx context.Context, key models.CounterKey, value int) error
	// BulkImport force-sets a batch of counters inside one transaction.
	BulkImport(ctx context.Context, entries []CounterImportEntry) error
	ByKey(ctx context.Context, key models.CounterKey) (*models.NumberCounter, error)
	ListByProject(ctx context.Context, projectID uint) ([]*models.NumberCounter, error)
}

// NumberFormatRepository defines operations for numbering templates
type NumberFormatRepository interface {
	Repository[models.NumberFormat, models.NumberFormatFilter]
	// Resolve returns the (project, type) template, falling back to the
	// project default (type IS NULL). Returns nil when neither exists.
	Resolve(ctx context.Context, projectID uint, typeID uint) (*models.NumberFormat, error)
	ListAll(ctx context.Context) ([]*models.NumberFormat, error)
	ListByProject(ctx context.Context, projectID uint) ([]*models.NumberFormat, error)
	Upsert(ctx context.Context, format *models.NumberFormat) error
	Delete(ctx context.Context, id uint) error
}

// NumberReservationRepository defines operations for two-phase reservations
type NumberReservationRepository interface {
	Repository[models.NumberReservation, models.NumberReservationFilter]
	ByToken(ctx context.Context, token string) (*models.NumberReservation, error)
	ReservedByToken(ctx context.Context, token string) (*models.NumberReservation, error)
	ReservedByNumber(ctx context.Context, documentNumber string) (*models.NumberReservation, error)
	Confirm(ctx context.Context, token string, documentID *uint, at time.Time) (bool, error)
	// Cancel transitions a RESERVED reservation to CANCELLED; returns false
	// when the reservation was not RESERVED (idempotent no-op).
	Cancel(ctx context.Context, token string, reason *string, at time.Time) (bool, error)
	// Void is the administrative terminal transition for a RESERVED
	// reservation whose number is being voided.
	Void(ctx context.Context, token string, reason *string, at time.Time) (bool, error)
	// SweepExpired bulk-cancels every RESERVED reservation past its expiry.
	// The status predicate makes it safe to run concurrently with itself.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// NumberAuditRepository defines operations for the append-only audit trail
type NumberAuditRepository interface {
	Repository[models.NumberAudit, models.NumberAuditFilter]
	LatestByNumber(ctx context.Context, documentNumber string) (*models.NumberAudit, error)
	ListRecent(ctx context.Context, limit int) ([]*models.NumberAudit, error)
	ListByOperation(ctx context.Context, operation string, limit, offset int) ([]*models.NumberAudit, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.NumberAudit, error)
}

// NumberErrorRepository defines operations for the failed-attempt log
type NumberErrorRepository interface {
	Repository[models.NumberError, models.NumberErrorFilter]
	ListRecent(ctx context.Context, limit int) ([]*models.NumberError, error)
}

// CodeDirectory resolves master-data ids to the short codes embedded in
// document numbers. Misses are reported, not errors; the caller substitutes a
// sentinel.
type CodeDirectory interface {
	ProjectCode(ctx context.Context, id uint) (string, bool)
	OrganizationCode(ctx context.Context, id uint) (string, bool)
	TypeCode(ctx context.Context, id uint) (string, bool)
	DisciplineCode(ctx context.Context, id uint) (string, bool)
}

// Repository is the generic contract shared by entity repositories
type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}
