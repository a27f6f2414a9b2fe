package businessflow

import (
	"context"
	"time"

	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
	"github.com/sitearc/docnum/utils"
)

// NumberingFlow issues and previews document numbers.
type NumberingFlow interface {
	// GenerateNext atomically consumes the next sequence for the request's
	// counter key and returns the rendered number.
	GenerateNext(ctx context.Context, req *dto.GenerateNumberRequest, userID *uint, meta *ClientMetadata) (*dto.GenerateNumberResponse, error)
	// Preview renders the number the next generation would produce without
	// consuming it. Concurrent generations can invalidate the preview.
	Preview(ctx context.Context, req *dto.GenerateNumberRequest) (*dto.PreviewNumberResponse, error)
}

// NumberingFlowImpl implements NumberingFlow
type NumberingFlowImpl struct {
	counterRepo repository.CounterRepository
	resolver    *FormatResolver
	locks       LockCoordinator
	audit       *AuditLogger
	lockTTL     time.Duration
}

// NewNumberingFlow creates a new numbering flow
func NewNumberingFlow(
	counterRepo repository.CounterRepository,
	resolver *FormatResolver,
	locks LockCoordinator,
	audit *AuditLogger,
	lockTTL time.Duration,
) *NumberingFlowImpl {
	if lockTTL <= 0 {
		lockTTL = utils.LockTTL
	}
	return &NumberingFlowImpl{
		counterRepo: counterRepo,
		resolver:    resolver,
		locks:       locks,
		audit:       audit,
		lockTTL:     lockTTL,
	}
}

// issuedNumber is the result of one committed run of the generation pipeline.
type issuedNumber struct {
	Number     string
	Sequence   int
	Key        models.CounterKey
	Template   string
	RetryCount int
	LockWaitMs int64
}

// issue runs the full pipeline: validate, resolve template, acquire the
// best-effort lock, increment the counter, render. The distributed lock is
// fail-open; only the counter's compare-and-swap guards uniqueness.
func (s *NumberingFlowImpl) issue(ctx context.Context, req *dto.GenerateNumberRequest, operation string) (*issuedNumber, error) {
	if err := validateGenerateRequest(req); err != nil {
		s.audit.LogError(ctx, models.NumberErrorValidation, err.Error(), req)
		return nil, NewBusinessError(CodeValidation, "invalid generation context", err)
	}

	rf, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		s.audit.LogError(ctx, models.NumberErrorInfrastructure, err.Error(), req)
		return nil, NewBusinessError(CodeInfrastructure, "failed to resolve numbering template", err)
	}

	key := buildCounterKey(req, rf.ResetScope)

	lockStart := utils.UTCNow()
	handle, locked := s.locks.Acquire(ctx, key, s.lockTTL)
	lockWait := time.Since(lockStart)
	lockWaitSeconds.Observe(lockWait.Seconds())
	if locked {
		defer s.locks.Release(ctx, handle)
	} else {
		lockFallbacksTotal.Inc()
	}

	inc, err := s.counterRepo.Increment(ctx, key)
	if err != nil {
		errorType := classifyError(err)
		if errorType == models.NumberErrorConflict {
			counterConflictsTotal.Inc()
		}
		s.audit.LogError(ctx, errorType, err.Error(), key)
		s.logFailedAttempt(ctx, operation, key, rf.Template, err)
		if IsCounterConflict(err) {
			return nil, NewBusinessError(CodeConflict, "sequence counter is contended, retry the request", err)
		}
		return nil, NewBusinessError(CodeInfrastructure, "failed to advance sequence counter", err)
	}
	if inc.Retries > 0 {
		counterRetriesTotal.Add(float64(inc.Retries))
	}

	number := s.resolver.Render(ctx, rf, req, inc.Sequence)

	return &issuedNumber{
		Number:     number,
		Sequence:   inc.Sequence,
		Key:        key,
		Template:   rf.Template,
		RetryCount: inc.Retries,
		LockWaitMs: lockWait.Milliseconds(),
	}, nil
}

// GenerateNext issues the next number for the request's context and records
// the generation in the audit trail.
func (s *NumberingFlowImpl) GenerateNext(ctx context.Context, req *dto.GenerateNumberRequest, userID *uint, meta *ClientMetadata) (*dto.GenerateNumberResponse, error) {
	start := utils.UTCNow()

	issued, err := s.issue(ctx, req, models.AuditOpGenerate)
	if err != nil {
		generationDuration.WithLabelValues("generate", "failure").Observe(time.Since(start).Seconds())
		return nil, err
	}

	auditID := s.logIssued(ctx, models.AuditOpGenerate, issued, userID, meta, nil, time.Since(start))

	numbersGeneratedTotal.WithLabelValues("generate").Inc()
	generationDuration.WithLabelValues("generate", "success").Observe(time.Since(start).Seconds())

	return &dto.GenerateNumberResponse{
		Number:   issued.Number,
		Sequence: issued.Sequence,
		AuditID:  auditID,
	}, nil
}

// Preview resolves the template and renders PeekCurrent+1 without mutating
// the counter.
func (s *NumberingFlowImpl) Preview(ctx context.Context, req *dto.GenerateNumberRequest) (*dto.PreviewNumberResponse, error) {
	if err := validateGenerateRequest(req); err != nil {
		return nil, NewBusinessError(CodeValidation, "invalid generation context", err)
	}

	rf, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to resolve numbering template", err)
	}

	key := buildCounterKey(req, rf.ResetScope)
	current, err := s.counterRepo.PeekCurrent(ctx, key)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to read sequence counter", err)
	}

	next := current + 1
	return &dto.PreviewNumberResponse{
		Number:       s.resolver.Render(ctx, rf, req, next),
		NextSequence: next,
	}, nil
}

// logIssued writes the success audit entry for an issued number.
func (s *NumberingFlowImpl) logIssued(ctx context.Context, operation string, issued *issuedNumber, userID *uint, meta *ClientMetadata, token *string, elapsed time.Duration) uint {
	durationMs := elapsed.Milliseconds()
	return s.audit.LogAudit(ctx, &models.NumberAudit{
		GeneratedNumber: &issued.Number,
		CounterKeyJSON:  mustKeyJSON(issued.Key),
		TemplateUsed:    &issued.Template,
		Sequence:        &issued.Sequence,
		Operation:       operation,
		ReservationTkn:  token,
		UserID:          userID,
		IPAddress:       meta.ipPtr(),
		UserAgent:       meta.userAgentPtr(),
		Success:         true,
		RetryCount:      issued.RetryCount,
		LockWaitMs:      &issued.LockWaitMs,
		TotalDurationMs: &durationMs,
	})
}

// logFailedAttempt records a generation attempt that never produced a number.
func (s *NumberingFlowImpl) logFailedAttempt(ctx context.Context, operation string, key models.CounterKey, template string, cause error) {
	msg := cause.Error()
	s.audit.LogAudit(ctx, &models.NumberAudit{
		CounterKeyJSON: mustKeyJSON(key),
		TemplateUsed:   &template,
		Operation:      operation,
		NewValue:       &msg,
		Success:        false,
	})
}
