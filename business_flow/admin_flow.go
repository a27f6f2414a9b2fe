package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
	"github.com/sitearc/docnum/utils"
	"github.com/xuri/excelize/v2"
)

// AdminFlow groups the operator-facing corrections: force-setting counters,
// voiding and cancelling issued numbers, bulk-importing legacy counters, and
// managing numbering templates. None of these operations may contradict the
// counter store's own invariants; every counter mutation goes through
// ForceSet, which still bumps the version column.
type AdminFlow interface {
	ManualOverride(ctx context.Context, req *dto.ManualOverrideRequest, userID *uint, meta *ClientMetadata) error
	// VoidAndReplace voids an issued number and, when requested, generates a
	// replacement from the generation context recovered out of the audit
	// trail. The voided number is never reused.
	VoidAndReplace(ctx context.Context, req *dto.VoidAndReplaceRequest, userID *uint, meta *ClientMetadata) (*dto.VoidAndReplaceResponse, error)
	CancelNumber(ctx context.Context, req *dto.CancelNumberRequest, userID *uint, meta *ClientMetadata) error
	BulkImport(ctx context.Context, req *dto.BulkImportRequest, userID *uint, meta *ClientMetadata) (*dto.BulkImportResponse, error)
	// BulkImportFromXLSX parses a legacy counter spreadsheet and imports it.
	BulkImportFromXLSX(ctx context.Context, r io.Reader, userID *uint, meta *ClientMetadata) (*dto.BulkImportResponse, error)

	SaveTemplate(ctx context.Context, req *dto.SaveTemplateRequest) (*dto.TemplateDTO, error)
	ListTemplates(ctx context.Context, projectID uint) ([]dto.TemplateDTO, error)
	DeleteTemplate(ctx context.Context, id uint) error

	ListCounters(ctx context.Context, projectID uint) ([]dto.CounterDTO, error)
	Logs(ctx context.Context, limit int) (*dto.NumberingLogsResponse, error)
}

// AdminFlowImpl implements AdminFlow
type AdminFlowImpl struct {
	counterRepo     repository.CounterRepository
	formatRepo      repository.NumberFormatRepository
	reservationRepo repository.NumberReservationRepository
	auditRepo       repository.NumberAuditRepository
	errorRepo       repository.NumberErrorRepository
	numbering       *NumberingFlowImpl
	audit           *AuditLogger
}

// NewAdminFlow creates a new admin flow
func NewAdminFlow(
	counterRepo repository.CounterRepository,
	formatRepo repository.NumberFormatRepository,
	reservationRepo repository.NumberReservationRepository,
	auditRepo repository.NumberAuditRepository,
	errorRepo repository.NumberErrorRepository,
	numbering *NumberingFlowImpl,
	audit *AuditLogger,
) *AdminFlowImpl {
	return &AdminFlowImpl{
		counterRepo:     counterRepo,
		formatRepo:      formatRepo,
		reservationRepo: reservationRepo,
		auditRepo:       auditRepo,
		errorRepo:       errorRepo,
		numbering:       numbering,
		audit:           audit,
	}
}

// ManualOverride force-sets a counter to a new last number and records the
// change with its reason. It never produces a document number itself.
func (s *AdminFlowImpl) ManualOverride(ctx context.Context, req *dto.ManualOverrideRequest, userID *uint, meta *ClientMetadata) error {
	if req.NewLastNumber < 0 {
		return NewBusinessError(CodeValidation, "counter value must be non-negative", ErrCounterValueInvalid)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return NewBusinessError(CodeValidation, "reason is required", ErrReasonRequired)
	}

	key := counterKeyFromDTO(req.CounterKeyDTO)

	var oldValue *string
	if existing, err := s.counterRepo.ByKey(ctx, key); err == nil && existing != nil {
		v := strconv.Itoa(existing.LastNumber)
		oldValue = &v
	}

	if err := s.counterRepo.ForceSet(ctx, key, req.NewLastNumber); err != nil {
		s.audit.LogError(ctx, models.NumberErrorInfrastructure, err.Error(), key)
		return NewBusinessError(CodeInfrastructure, "failed to force-set counter", err)
	}

	newValue := strconv.Itoa(req.NewLastNumber)
	metadata, _ := json.Marshal(map[string]any{"reason": req.Reason, "reference": req.Reference})
	s.audit.LogAudit(ctx, &models.NumberAudit{
		CounterKeyJSON: mustKeyJSON(key),
		Operation:      models.AuditOpManualOverride,
		OldValue:       oldValue,
		NewValue:       &newValue,
		Metadata:       metadata,
		UserID:         userID,
		IPAddress:      meta.ipPtr(),
		UserAgent:      meta.userAgentPtr(),
		Success:        true,
	})
	return nil
}

// VoidAndReplace voids the most recent issuance of a number. When replace is
// true the original generation context is recovered from the audit trail and
// fed back through the normal pipeline; an undecodable audit key is a hard
// error rather than a silent fallback, since replacing under a guessed
// context would issue a number from the wrong sequence.
func (s *AdminFlowImpl) VoidAndReplace(ctx context.Context, req *dto.VoidAndReplaceRequest, userID *uint, meta *ClientMetadata) (*dto.VoidAndReplaceResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, NewBusinessError(CodeValidation, "reason is required", ErrReasonRequired)
	}

	entry, err := s.auditRepo.LatestByNumber(ctx, req.Number)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to look up number in audit trail", err)
	}
	if entry == nil {
		return nil, NewBusinessErrorf(CodeNotFound, "number %s not found in audit trail", ErrNumberNotFound, req.Number)
	}

	var replaceReq *dto.GenerateNumberRequest
	if req.Replace {
		replaceReq, err = generationRequestFromAudit(entry)
		if err != nil {
			return nil, NewBusinessErrorf(CodeInfrastructure, "cannot recover generation context for %s", err, req.Number)
		}
	}

	now := utils.UTCNow()
	if reservation, rerr := s.reservationRepo.ReservedByNumber(ctx, req.Number); rerr == nil && reservation != nil {
		if _, verr := s.reservationRepo.Void(ctx, reservation.Token, &req.Reason, now); verr == nil {
			reservationTransitionsTotal.WithLabelValues(models.ReservationStatusVoid).Inc()
		}
	}

	metadata, _ := json.Marshal(map[string]any{"reason": req.Reason, "replace": req.Replace})
	s.audit.LogAudit(ctx, &models.NumberAudit{
		GeneratedNumber: &req.Number,
		CounterKeyJSON:  entry.CounterKeyJSON,
		Operation:       models.AuditOpVoid,
		Metadata:        metadata,
		UserID:          userID,
		IPAddress:       meta.ipPtr(),
		UserAgent:       meta.userAgentPtr(),
		Success:         true,
	})

	resp := &dto.VoidAndReplaceResponse{
		VoidedNumber: req.Number,
		Status:       models.ReservationStatusVoid,
	}
	if replaceReq != nil {
		generated, gerr := s.numbering.GenerateNext(ctx, replaceReq, userID, meta)
		if gerr != nil {
			return nil, gerr
		}
		resp.ReplacementNumber = &generated.Number
	}
	return resp, nil
}

// CancelNumber records that a never-attached number is cancelled. The counter
// is not rolled back; the gap is permanent.
func (s *AdminFlowImpl) CancelNumber(ctx context.Context, req *dto.CancelNumberRequest, userID *uint, meta *ClientMetadata) error {
	if strings.TrimSpace(req.Reason) == "" {
		return NewBusinessError(CodeValidation, "reason is required", ErrReasonRequired)
	}

	entry, err := s.auditRepo.LatestByNumber(ctx, req.Number)
	if err != nil {
		return NewBusinessError(CodeInfrastructure, "failed to look up number in audit trail", err)
	}
	if entry == nil {
		return NewBusinessErrorf(CodeNotFound, "number %s not found in audit trail", ErrNumberNotFound, req.Number)
	}

	now := utils.UTCNow()
	if reservation, rerr := s.reservationRepo.ReservedByNumber(ctx, req.Number); rerr == nil && reservation != nil {
		if cancelled, cerr := s.reservationRepo.Cancel(ctx, reservation.Token, &req.Reason, now); cerr == nil && cancelled {
			reservationTransitionsTotal.WithLabelValues(models.ReservationStatusCancelled).Inc()
		}
	}

	metadata, _ := json.Marshal(map[string]any{"reason": req.Reason})
	s.audit.LogAudit(ctx, &models.NumberAudit{
		GeneratedNumber: &req.Number,
		CounterKeyJSON:  entry.CounterKeyJSON,
		Operation:       models.AuditOpCancel,
		Metadata:        metadata,
		UserID:          userID,
		IPAddress:       meta.ipPtr(),
		UserAgent:       meta.userAgentPtr(),
		Success:         true,
	})
	return nil
}

// BulkImport force-sets a batch of counters in one transaction. Intended for
// one-time migrations from a legacy numbering system.
func (s *AdminFlowImpl) BulkImport(ctx context.Context, req *dto.BulkImportRequest, userID *uint, meta *ClientMetadata) (*dto.BulkImportResponse, error) {
	if len(req.Entries) == 0 {
		return nil, NewBusinessError(CodeValidation, "no import entries provided", ErrNoImportEntries)
	}

	entries := make([]repository.CounterImportEntry, 0, len(req.Entries))
	for i, e := range req.Entries {
		if e.LastNumber < 0 {
			return nil, NewBusinessErrorf(CodeValidation, "entry %d: counter value must be non-negative", ErrCounterValueInvalid, i)
		}
		entries = append(entries, repository.CounterImportEntry{
			Key:        counterKeyFromDTO(e.CounterKeyDTO),
			LastNumber: e.LastNumber,
		})
	}

	if err := s.counterRepo.BulkImport(ctx, entries); err != nil {
		s.audit.LogError(ctx, models.NumberErrorInfrastructure, err.Error(), map[string]any{"entries": len(entries)})
		return nil, NewBusinessError(CodeInfrastructure, "failed to import counters", err)
	}

	metadata, _ := json.Marshal(map[string]any{"entries": len(entries)})
	s.audit.LogAudit(ctx, &models.NumberAudit{
		Operation: models.AuditOpBulkImport,
		Metadata:  metadata,
		UserID:    userID,
		IPAddress: meta.ipPtr(),
		UserAgent: meta.userAgentPtr(),
		Success:   true,
	})

	return &dto.BulkImportResponse{Imported: len(entries)}, nil
}

// bulkImportColumns is the expected header of a legacy counter spreadsheet.
var bulkImportColumns = []string{
	"project_id",
	"originator_organization_id",
	"recipient_organization_id",
	"correspondence_type_id",
	"sub_type_id",
	"rfa_type_id",
	"discipline_id",
	"reset_scope",
	"last_number",
}

// BulkImportFromXLSX parses the first sheet of an xlsx workbook into import
// entries. Row 1 must carry the expected header; blank rows are skipped.
func (s *AdminFlowImpl) BulkImportFromXLSX(ctx context.Context, r io.Reader, userID *uint, meta *ClientMetadata) (*dto.BulkImportResponse, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewBusinessError(CodeValidation, "failed to open spreadsheet", ErrImportSheetMalformed)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewBusinessError(CodeValidation, "spreadsheet has no sheets", ErrImportSheetMalformed)
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil || len(rows) < 2 {
		return nil, NewBusinessError(CodeValidation, "spreadsheet has no data rows", ErrImportSheetMalformed)
	}

	header := rows[0]
	if len(header) < len(bulkImportColumns) {
		return nil, NewBusinessError(CodeValidation, "spreadsheet header is incomplete", ErrImportSheetMalformed)
	}
	for i, col := range bulkImportColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return nil, NewBusinessErrorf(CodeValidation, "unexpected column %q, want %q", ErrImportSheetMalformed, header[i], col)
		}
	}

	req := &dto.BulkImportRequest{}
	for rowIdx, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		entry, perr := parseImportRow(row)
		if perr != nil {
			return nil, NewBusinessErrorf(CodeValidation, "row %d: %v", ErrImportSheetMalformed, rowIdx+2, perr)
		}
		req.Entries = append(req.Entries, *entry)
	}

	return s.BulkImport(ctx, req, userID, meta)
}

// SaveTemplate creates or replaces the template for (project, type). A nil
// type stores the project-wide default.
func (s *AdminFlowImpl) SaveTemplate(ctx context.Context, req *dto.SaveTemplateRequest) (*dto.TemplateDTO, error) {
	if strings.TrimSpace(req.FormatTemplate) == "" {
		return nil, NewBusinessError(CodeValidation, "format template is required", ErrTemplateRequired)
	}

	format := &models.NumberFormat{
		ProjectID:           req.ProjectID,
		TypeID:              req.TypeID,
		FormatTemplate:      req.FormatTemplate,
		Description:         req.Description,
		ResetSequenceYearly: req.ResetSequenceYearly == nil || *req.ResetSequenceYearly,
	}
	if err := s.formatRepo.Upsert(ctx, format); err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to save template", err)
	}
	result := toTemplateDTO(format)
	return &result, nil
}

// ListTemplates returns templates for one project, or every template when
// projectID is 0.
func (s *AdminFlowImpl) ListTemplates(ctx context.Context, projectID uint) ([]dto.TemplateDTO, error) {
	var (
		formats []*models.NumberFormat
		err     error
	)
	if projectID == 0 {
		formats, err = s.formatRepo.ListAll(ctx)
	} else {
		formats, err = s.formatRepo.ListByProject(ctx, projectID)
	}
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to list templates", err)
	}

	result := make([]dto.TemplateDTO, 0, len(formats))
	for _, f := range formats {
		result = append(result, toTemplateDTO(f))
	}
	return result, nil
}

// DeleteTemplate removes a template. Already-issued numbers are unaffected.
func (s *AdminFlowImpl) DeleteTemplate(ctx context.Context, id uint) error {
	format, err := s.formatRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError(CodeInfrastructure, "failed to load template", err)
	}
	if format == nil {
		return NewBusinessError(CodeNotFound, "template not found", ErrTemplateNotFound)
	}
	if err := s.formatRepo.Delete(ctx, id); err != nil {
		return NewBusinessError(CodeInfrastructure, "failed to delete template", err)
	}
	return nil
}

// ListCounters returns the current counters for one project.
func (s *AdminFlowImpl) ListCounters(ctx context.Context, projectID uint) ([]dto.CounterDTO, error) {
	counters, err := s.counterRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to list counters", err)
	}

	result := make([]dto.CounterDTO, 0, len(counters))
	for _, c := range counters {
		result = append(result, dto.CounterDTO{
			CounterKeyDTO: counterKeyToDTO(c.CounterKey),
			LastNumber:    c.LastNumber,
			Version:       c.Version,
			UpdatedAt:     c.UpdatedAt,
		})
	}
	return result, nil
}

// Logs bundles the most recent audit and error entries for operators.
func (s *AdminFlowImpl) Logs(ctx context.Context, limit int) (*dto.NumberingLogsResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	audits, err := s.auditRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to list audit entries", err)
	}
	errs, err := s.errorRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, NewBusinessError(CodeInfrastructure, "failed to list error entries", err)
	}

	resp := &dto.NumberingLogsResponse{
		Audit:  make([]dto.AuditEntryDTO, 0, len(audits)),
		Errors: make([]dto.ErrorEntryDTO, 0, len(errs)),
	}
	for _, a := range audits {
		resp.Audit = append(resp.Audit, dto.AuditEntryDTO{
			ID:              a.ID,
			GeneratedNumber: a.GeneratedNumber,
			Operation:       a.Operation,
			Sequence:        a.Sequence,
			TemplateUsed:    a.TemplateUsed,
			CounterKey:      a.CounterKeyJSON,
			UserID:          a.UserID,
			Success:         a.Success,
			RetryCount:      a.RetryCount,
			LockWaitMs:      a.LockWaitMs,
			TotalDurationMs: a.TotalDurationMs,
			CreatedAt:       a.CreatedAt,
		})
	}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, dto.ErrorEntryDTO{
			ID:           e.ID,
			ErrorType:    e.ErrorType,
			ErrorMessage: e.ErrorMessage,
			Context:      e.ContextJSON,
			CreatedAt:    e.CreatedAt,
		})
	}
	return resp, nil
}

// --- Helpers ---

func toTemplateDTO(f *models.NumberFormat) dto.TemplateDTO {
	return dto.TemplateDTO{
		ID:                  f.ID,
		ProjectID:           f.ProjectID,
		TypeID:              f.TypeID,
		FormatTemplate:      f.FormatTemplate,
		Description:         f.Description,
		ResetSequenceYearly: f.ResetSequenceYearly,
	}
}

// generationRequestFromAudit reconstructs a generation context from the
// serialized counter key of an audit entry. A missing or undecodable key is
// an error; replacement must never guess a context.
func generationRequestFromAudit(entry *models.NumberAudit) (*dto.GenerateNumberRequest, error) {
	if len(entry.CounterKeyJSON) == 0 {
		return nil, ErrAuditKeyUndecodable
	}

	var key models.CounterKey
	if err := json.Unmarshal(entry.CounterKeyJSON, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditKeyUndecodable, err)
	}
	if key.ProjectID == 0 || key.OriginatorOrgID == 0 || key.TypeID == 0 {
		return nil, ErrAuditKeyUndecodable
	}

	req := &dto.GenerateNumberRequest{
		ProjectID:       key.ProjectID,
		OriginatorOrgID: key.OriginatorOrgID,
		RecipientOrgID:  key.RecipientOrgID,
		TypeID:          key.TypeID,
		SubTypeID:       key.SubTypeID,
		RFATypeID:       key.RFATypeID,
		DisciplineID:    key.DisciplineID,
	}
	if year, ok := strings.CutPrefix(key.ResetScope, models.ResetScopeYearPrefix); ok {
		parsed, err := strconv.Atoi(year)
		if err != nil {
			return nil, fmt.Errorf("%w: bad reset scope %q", ErrAuditKeyUndecodable, key.ResetScope)
		}
		req.Year = parsed
	}
	return req, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseImportRow converts one spreadsheet row into an import entry.
func parseImportRow(row []string) (*dto.BulkImportEntry, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	parseID := func(i int, required bool) (uint, error) {
		raw := cell(i)
		if raw == "" {
			if required {
				return 0, fmt.Errorf("column %s is required", bulkImportColumns[i])
			}
			return 0, nil
		}
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("column %s: %q is not a number", bulkImportColumns[i], raw)
		}
		return uint(v), nil
	}

	entry := &dto.BulkImportEntry{}
	var err error
	if entry.ProjectID, err = parseID(0, true); err != nil {
		return nil, err
	}
	if entry.OriginatorOrgID, err = parseID(1, true); err != nil {
		return nil, err
	}
	if entry.RecipientOrgID, err = parseID(2, false); err != nil {
		return nil, err
	}
	if entry.TypeID, err = parseID(3, true); err != nil {
		return nil, err
	}
	if entry.SubTypeID, err = parseID(4, false); err != nil {
		return nil, err
	}
	if entry.RFATypeID, err = parseID(5, false); err != nil {
		return nil, err
	}
	if entry.DisciplineID, err = parseID(6, false); err != nil {
		return nil, err
	}

	entry.ResetScope = cell(7)
	if entry.ResetScope == "" {
		return nil, fmt.Errorf("column %s is required", bulkImportColumns[7])
	}
	if entry.ResetScope != models.ResetScopeNone && !strings.HasPrefix(entry.ResetScope, models.ResetScopeYearPrefix) {
		return nil, fmt.Errorf("column %s: %q is not a valid scope", bulkImportColumns[7], entry.ResetScope)
	}

	last := cell(8)
	if last == "" {
		return nil, fmt.Errorf("column %s is required", bulkImportColumns[8])
	}
	if entry.LastNumber, err = strconv.Atoi(last); err != nil || entry.LastNumber < 0 {
		return nil, fmt.Errorf("column %s: %q is not a non-negative number", bulkImportColumns[8], last)
	}
	return entry, nil
}
