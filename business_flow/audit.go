package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
)

// auditWriteTimeout bounds the detached audit write so a slow log table can
// never hold a request hostage.
const auditWriteTimeout = 3 * time.Second

// AuditLogger writes the append-only audit and error trails. Every write is
// fail-silent: a logging failure is counted and logged, never surfaced, so
// the primary numbering flow cannot be aborted by a broken logging pipe.
type AuditLogger struct {
	auditRepo repository.NumberAuditRepository
	errorRepo repository.NumberErrorRepository
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(auditRepo repository.NumberAuditRepository, errorRepo repository.NumberErrorRepository) *AuditLogger {
	return &AuditLogger{auditRepo: auditRepo, errorRepo: errorRepo}
}

// LogAudit persists one audit entry and returns its id, or 0 when the write
// failed. The write survives caller cancellation; an aborted request must
// still leave its trace.
func (a *AuditLogger) LogAudit(ctx context.Context, entry *models.NumberAudit) uint {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := a.auditRepo.Save(writeCtx, entry); err != nil {
		auditWriteFailuresTotal.Inc()
		log.Printf("failed to write numbering audit entry (op=%s): %v", entry.Operation, err)
		return 0
	}
	return entry.ID
}

// LogError persists one failed-attempt record. Fail-silent like LogAudit.
func (a *AuditLogger) LogError(ctx context.Context, errorType, message string, auditCtx any) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	var contextJSON json.RawMessage
	if auditCtx != nil {
		if raw, err := json.Marshal(auditCtx); err == nil {
			contextJSON = raw
		}
	}

	entry := &models.NumberError{
		ErrorType:    errorType,
		ErrorMessage: message,
		ContextJSON:  contextJSON,
	}
	if err := a.errorRepo.Save(writeCtx, entry); err != nil {
		auditWriteFailuresTotal.Inc()
		log.Printf("failed to write numbering error entry (type=%s): %v", errorType, err)
	}
}

// classifyError maps a flow error onto the persisted error taxonomy.
func classifyError(err error) string {
	switch {
	case IsCounterConflict(err):
		return models.NumberErrorConflict
	case IsInvalidContext(err):
		return models.NumberErrorValidation
	case IsReservationNotFound(err), IsReservationExpired(err), IsNumberNotFound(err):
		return models.NumberErrorValidation
	case err != nil:
		return models.NumberErrorInfrastructure
	default:
		return models.NumberErrorUnknown
	}
}

// mustKeyJSON serializes a counter key for the audit trail. The key is a
// plain value struct; marshalling cannot fail in practice.
func mustKeyJSON(key models.CounterKey) json.RawMessage {
	raw, err := json.Marshal(key)
	if err != nil {
		return nil
	}
	return raw
}
