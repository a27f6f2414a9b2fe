// Package businessflow contains the core business logic and use cases for document number generation
package businessflow

import (
	"errors"
	"fmt"

	"github.com/sitearc/docnum/repository"
)

// Business flow error constants
var (
	// Generation context errors
	ErrProjectRequired    = errors.New("project is required")
	ErrOriginatorRequired = errors.New("originator organization is required")
	ErrTypeRequired       = errors.New("document type is required")
	ErrInvalidContext     = errors.New("generation context is invalid")

	// Counter errors. The conflict sentinel is the repository's own so callers
	// can match it regardless of which layer surfaced it.
	ErrCounterConflict     = repository.ErrCounterConflict
	ErrCounterValueInvalid = errors.New("counter value must be non-negative")

	// Reservation errors
	ErrReservationNotFound = errors.New("reservation not found or already used")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrTokenRequired       = errors.New("reservation token is required")

	// Admin errors
	ErrNumberNotFound       = errors.New("document number not found in audit trail")
	ErrAuditKeyUndecodable  = errors.New("audit counter key cannot be decoded")
	ErrReasonRequired       = errors.New("reason is required")
	ErrTemplateRequired     = errors.New("format template is required")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrNoImportEntries      = errors.New("no import entries provided")
	ErrImportSheetMalformed = errors.New("import spreadsheet is malformed")
)

// Error codes carried on BusinessError; the transport layer maps these onto
// status codes so callers can tell a retryable conflict from a terminal
// validation failure.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeConflict       = "CONFLICT"
	CodeNotFound       = "NOT_FOUND"
	CodeGone           = "GONE"
	CodeInfrastructure = "INFRASTRUCTURE_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCounterConflict(err error) bool {
	return errors.Is(err, ErrCounterConflict)
}

func IsInvalidContext(err error) bool {
	return errors.Is(err, ErrInvalidContext) ||
		errors.Is(err, ErrProjectRequired) ||
		errors.Is(err, ErrOriginatorRequired) ||
		errors.Is(err, ErrTypeRequired)
}

func IsReservationNotFound(err error) bool {
	return errors.Is(err, ErrReservationNotFound)
}

func IsReservationExpired(err error) bool {
	return errors.Is(err, ErrReservationExpired)
}

func IsNumberNotFound(err error) bool {
	return errors.Is(err, ErrNumberNotFound)
}

func IsAuditKeyUndecodable(err error) bool {
	return errors.Is(err, ErrAuditKeyUndecodable)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}
