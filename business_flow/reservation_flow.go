package businessflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
	"github.com/sitearc/docnum/utils"
)

// ReservationFlow implements the two-phase reserve/confirm protocol. Reserve
// consumes a sequence number immediately; confirm and cancel only move the
// reservation row, never the counter.
type ReservationFlow interface {
	Reserve(ctx context.Context, req *dto.ReserveNumberRequest, userID uint, meta *ClientMetadata) (*dto.ReserveNumberResponse, error)
	Confirm(ctx context.Context, req *dto.ConfirmReservationRequest, userID *uint, meta *ClientMetadata) (*dto.ConfirmReservationResponse, error)
	// Cancel is idempotent: cancelling a reservation that is not currently
	// RESERVED is a successful no-op.
	Cancel(ctx context.Context, req *dto.CancelReservationRequest, userID *uint, meta *ClientMetadata) error
	GetByToken(ctx context.Context, token string) (*dto.ReservationDTO, error)
	// SweepExpired cancels every RESERVED reservation past its expiry and
	// returns how many were cancelled.
	SweepExpired(ctx context.Context) (int64, error)
}

// ReservationFlowImpl implements ReservationFlow
type ReservationFlowImpl struct {
	numbering       *NumberingFlowImpl
	reservationRepo repository.NumberReservationRepository
	audit           *AuditLogger
	ttl             time.Duration
}

// NewReservationFlow creates a new reservation flow
func NewReservationFlow(
	numbering *NumberingFlowImpl,
	reservationRepo repository.NumberReservationRepository,
	audit *AuditLogger,
	ttl time.Duration,
) *ReservationFlowImpl {
	if ttl <= 0 {
		ttl = utils.ReservationTTL
	}
	return &ReservationFlowImpl{
		numbering:       numbering,
		reservationRepo: reservationRepo,
		audit:           audit,
		ttl:             ttl,
	}
}

// Reserve runs the generation pipeline exactly once and stores the result
// behind an opaque token. The number is consumed from the sequence whether or
// not the reservation is ever confirmed.
func (s *ReservationFlowImpl) Reserve(ctx context.Context, req *dto.ReserveNumberRequest, userID uint, meta *ClientMetadata) (*dto.ReserveNumberResponse, error) {
	start := utils.UTCNow()

	issued, err := s.numbering.issue(ctx, &req.GenerateNumberRequest, models.AuditOpReserve)
	if err != nil {
		generationDuration.WithLabelValues("reserve", "failure").Observe(time.Since(start).Seconds())
		return nil, err
	}

	now := utils.UTCNow()
	reservation := &models.NumberReservation{
		Token:           uuid.NewString(),
		DocumentNumber:  issued.Number,
		Status:          models.ReservationStatusReserved,
		ProjectID:       req.ProjectID,
		TypeID:          req.TypeID,
		OriginatorOrgID: req.OriginatorOrgID,
		RecipientOrgID:  req.RecipientOrgID,
		Sequence:        issued.Sequence,
		UserID:          userID,
		IPAddress:       meta.ipPtr(),
		UserAgent:       meta.userAgentPtr(),
		Metadata:        req.Metadata,
		ReservedAt:      now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.reservationRepo.Save(ctx, reservation); err != nil {
		// The sequence is already consumed; record the orphaned number so an
		// operator can see the gap's cause.
		s.audit.LogError(ctx, models.NumberErrorInfrastructure, err.Error(), issued)
		generationDuration.WithLabelValues("reserve", "failure").Observe(time.Since(start).Seconds())
		return nil, NewBusinessError(CodeInfrastructure, "failed to persist reservation", err)
	}

	s.numbering.logIssued(ctx, models.AuditOpReserve, issued, &userID, meta, &reservation.Token, time.Since(start))

	numbersGeneratedTotal.WithLabelValues("reserve").Inc()
	reservationTransitionsTotal.WithLabelValues(models.ReservationStatusReserved).Inc()
	generationDuration.WithLabelValues("reserve", "success").Observe(time.Since(start).Seconds())

	return &dto.ReserveNumberResponse{
		Token:     reservation.Token,
		Number:    reservation.DocumentNumber,
		ExpiresAt: reservation.ExpiresAt,
	}, nil
}

// Confirm makes a reservation permanent. An expired reservation is
// auto-cancelled and reported as gone.
func (s *ReservationFlowImpl) Confirm(ctx context.Context, req *dto.ConfirmReservationRequest, userID *uint, meta *ClientMetadata) (*dto.ConfirmReservationResponse, error) {
	if req.Token == "" {
		return nil, NewBusinessError(CodeValidation, "reservation token is required", ErrTokenRequired)
	}

	reservation, err := s.reservationRepo.ReservedByToken(ctx, req.Token)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to load reservation", err)
	}
	if reservation == nil {
		return nil, NewBusinessError(CodeNotFound, "reservation not found or already used", ErrReservationNotFound)
	}

	now := utils.UTCNow()
	if now.After(reservation.ExpiresAt) {
		reason := "expired before confirmation"
		if _, err := s.reservationRepo.Cancel(ctx, req.Token, &reason, now); err == nil {
			reservationTransitionsTotal.WithLabelValues(models.ReservationStatusCancelled).Inc()
		}
		return nil, NewBusinessError(CodeGone, "reservation expired", ErrReservationExpired)
	}

	ok, err := s.reservationRepo.Confirm(ctx, req.Token, req.DocumentID, now)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to confirm reservation", err)
	}
	if !ok {
		// Lost a race with the sweep or a concurrent confirm/cancel.
		return nil, NewBusinessError(CodeNotFound, "reservation not found or already used", ErrReservationNotFound)
	}

	s.audit.LogAudit(ctx, &models.NumberAudit{
		GeneratedNumber: &reservation.DocumentNumber,
		Sequence:        &reservation.Sequence,
		Operation:       models.AuditOpConfirm,
		DocumentID:      req.DocumentID,
		ReservationTkn:  &req.Token,
		UserID:          userID,
		IPAddress:       meta.ipPtr(),
		UserAgent:       meta.userAgentPtr(),
		Success:         true,
	})
	reservationTransitionsTotal.WithLabelValues(models.ReservationStatusConfirmed).Inc()

	return &dto.ConfirmReservationResponse{
		Number:      reservation.DocumentNumber,
		ConfirmedAt: now,
	}, nil
}

// Cancel releases a reservation. The consumed sequence number is not
// reclaimed; cancellation leaves a permanent gap.
func (s *ReservationFlowImpl) Cancel(ctx context.Context, req *dto.CancelReservationRequest, userID *uint, meta *ClientMetadata) error {
	if req.Token == "" {
		return NewBusinessError(CodeValidation, "reservation token is required", ErrTokenRequired)
	}

	cancelled, err := s.reservationRepo.Cancel(ctx, req.Token, req.Reason, utils.UTCNow())
	if err != nil {
		return NewBusinessError(CodeInfrastructure, "failed to cancel reservation", err)
	}
	if !cancelled {
		// Not RESERVED anymore: idempotent success.
		return nil
	}

	s.audit.LogAudit(ctx, &models.NumberAudit{
		Operation:      models.AuditOpCancel,
		ReservationTkn: &req.Token,
		NewValue:       req.Reason,
		UserID:         userID,
		IPAddress:      meta.ipPtr(),
		UserAgent:      meta.userAgentPtr(),
		Success:        true,
	})
	reservationTransitionsTotal.WithLabelValues(models.ReservationStatusCancelled).Inc()
	return nil
}

// GetByToken returns the reservation in any state.
func (s *ReservationFlowImpl) GetByToken(ctx context.Context, token string) (*dto.ReservationDTO, error) {
	if token == "" {
		return nil, NewBusinessError(CodeValidation, "reservation token is required", ErrTokenRequired)
	}
	reservation, err := s.reservationRepo.ByToken(ctx, token)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to load reservation", err)
	}
	if reservation == nil {
		return nil, NewBusinessError(CodeNotFound, "reservation not found", ErrReservationNotFound)
	}
	result := ToReservationDTO(*reservation)
	return &result, nil
}

// SweepExpired bulk-cancels overdue reservations. Safe to run concurrently
// with itself; the repository conditions the update on the RESERVED status.
func (s *ReservationFlowImpl) SweepExpired(ctx context.Context) (int64, error) {
	cancelled, err := s.reservationRepo.SweepExpired(ctx, utils.UTCNow())
	if err != nil {
		return 0, err
	}
	ObserveSweep(cancelled)
	return cancelled, nil
}
