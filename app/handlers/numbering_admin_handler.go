package handlers

import (
	"bytes"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sitearc/docnum/app/dto"
	businessflow "github.com/sitearc/docnum/business_flow"
)

// NumberingAdminHandlerInterface defines the contract for numbering admin handlers
type NumberingAdminHandlerInterface interface {
	ManualOverride(c fiber.Ctx) error
	VoidAndReplace(c fiber.Ctx) error
	CancelNumber(c fiber.Ctx) error
	BulkImport(c fiber.Ctx) error
	BulkImportXLSX(c fiber.Ctx) error
	SaveTemplate(c fiber.Ctx) error
	ListTemplates(c fiber.Ctx) error
	DeleteTemplate(c fiber.Ctx) error
	ListCounters(c fiber.Ctx) error
	Logs(c fiber.Ctx) error
}

// NumberingAdminHandler handles administrative numbering HTTP requests
type NumberingAdminHandler struct {
	adminFlow businessflow.AdminFlow
	validator *validator.Validate
}

// NewNumberingAdminHandler creates a new numbering admin handler
func NewNumberingAdminHandler(adminFlow businessflow.AdminFlow) *NumberingAdminHandler {
	return &NumberingAdminHandler{
		adminFlow: adminFlow,
		validator: validator.New(),
	}
}

func (h *NumberingAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *NumberingAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *NumberingAdminHandler) bindAndValidate(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return nil
}

func (h *NumberingAdminHandler) adminID(c fiber.Ctx) *uint {
	adminID, ok := c.Locals("admin_id").(uint)
	if !ok || adminID == 0 {
		return nil
	}
	return &adminID
}

// ManualOverride force-sets a sequence counter
// @Summary Manual Counter Override
// @Description Force-set a counter to a new last number; the change is audited and version-safe
// @Tags Document Numbering Admin
// @Accept json
// @Produce json
// @Param request body dto.ManualOverrideRequest true "Counter key and new value"
// @Success 200 {object} dto.APIResponse "Counter overridden"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/admin/document-numbering/override [post]
func (h *NumberingAdminHandler) ManualOverride(c fiber.Ctx) error {
	var req dto.ManualOverrideRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.adminFlow.ManualOverride(createRequestContext(c, "/api/v1/admin/document-numbering/override"), &req, h.adminID(c), clientMetadata(c)); err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Manual override failed", err)
		}
		return h.ErrorResponse(c, status, "Manual override failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Counter overridden", nil)
}

// VoidAndReplace voids a number and optionally issues a replacement
// @Summary Void And Replace Number
// @Description Void an issued number; with replace=true a new number is generated from the recovered context
// @Tags Document Numbering Admin
// @Accept json
// @Produce json
// @Param request body dto.VoidAndReplaceRequest true "Number, reason, and replace flag"
// @Success 200 {object} dto.APIResponse{data=dto.VoidAndReplaceResponse} "Number voided"
// @Failure 404 {object} dto.APIResponse "Number not found in audit trail"
// @Router /api/v1/admin/document-numbering/void [post]
func (h *NumberingAdminHandler) VoidAndReplace(c fiber.Ctx) error {
	var req dto.VoidAndReplaceRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.adminFlow.VoidAndReplace(createRequestContext(c, "/api/v1/admin/document-numbering/void"), &req, h.adminID(c), clientMetadata(c))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Void and replace failed", err)
		}
		return h.ErrorResponse(c, status, "Void and replace failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Number voided", result)
}

// CancelNumber marks a never-attached number as cancelled
// @Summary Cancel Number
// @Tags Document Numbering Admin
// @Accept json
// @Produce json
// @Param request body dto.CancelNumberRequest true "Number and reason"
// @Success 200 {object} dto.APIResponse "Number cancelled"
// @Failure 404 {object} dto.APIResponse "Number not found in audit trail"
// @Router /api/v1/admin/document-numbering/cancel-number [post]
func (h *NumberingAdminHandler) CancelNumber(c fiber.Ctx) error {
	var req dto.CancelNumberRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.adminFlow.CancelNumber(createRequestContext(c, "/api/v1/admin/document-numbering/cancel-number"), &req, h.adminID(c), clientMetadata(c)); err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Cancel number failed", err)
		}
		return h.ErrorResponse(c, status, "Cancel number failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Number cancelled", nil)
}

// BulkImport imports legacy counters from a JSON payload
// @Summary Bulk Import Counters
// @Tags Document Numbering Admin
// @Accept json
// @Produce json
// @Param request body dto.BulkImportRequest true "Counter entries"
// @Success 200 {object} dto.APIResponse{data=dto.BulkImportResponse} "Counters imported"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/admin/document-numbering/bulk-import [post]
func (h *NumberingAdminHandler) BulkImport(c fiber.Ctx) error {
	var req dto.BulkImportRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.adminFlow.BulkImport(createRequestContext(c, "/api/v1/admin/document-numbering/bulk-import"), &req, h.adminID(c), clientMetadata(c))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Bulk import failed", err)
		}
		return h.ErrorResponse(c, status, "Bulk import failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Counters imported", result)
}

// BulkImportXLSX imports legacy counters from an uploaded spreadsheet
// @Summary Bulk Import Counters From Spreadsheet
// @Tags Document Numbering Admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook with counter rows"
// @Success 200 {object} dto.APIResponse{data=dto.BulkImportResponse} "Counters imported"
// @Failure 400 {object} dto.APIResponse "Malformed spreadsheet"
// @Router /api/v1/admin/document-numbering/bulk-import/xlsx [post]
func (h *NumberingAdminHandler) BulkImportXLSX(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Spreadsheet file is required", "MISSING_FILE", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to open uploaded file", "INVALID_FILE", nil)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read uploaded file", "INVALID_FILE", nil)
	}

	result, err := h.adminFlow.BulkImportFromXLSX(createRequestContext(c, "/api/v1/admin/document-numbering/bulk-import/xlsx"), &buf, h.adminID(c), clientMetadata(c))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Spreadsheet import failed", err)
		}
		return h.ErrorResponse(c, status, "Spreadsheet import failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Counters imported", result)
}

// SaveTemplate creates or replaces a numbering template
// @Summary Save Numbering Template
// @Tags Document Numbering Admin
// @Accept json
// @Produce json
// @Param request body dto.SaveTemplateRequest true "Template definition"
// @Success 200 {object} dto.APIResponse{data=dto.TemplateDTO} "Template saved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/admin/document-numbering/templates [post]
func (h *NumberingAdminHandler) SaveTemplate(c fiber.Ctx) error {
	var req dto.SaveTemplateRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.adminFlow.SaveTemplate(createRequestContext(c, "/api/v1/admin/document-numbering/templates"), &req)
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Template save failed", err)
		}
		return h.ErrorResponse(c, status, "Template save failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Template saved", result)
}

// ListTemplates lists numbering templates, optionally filtered by project
// @Summary List Numbering Templates
// @Tags Document Numbering Admin
// @Produce json
// @Param project_id query int false "Project filter"
// @Success 200 {object} dto.APIResponse{data=[]dto.TemplateDTO} "Templates retrieved"
// @Router /api/v1/admin/document-numbering/templates [get]
func (h *NumberingAdminHandler) ListTemplates(c fiber.Ctx) error {
	projectID, _ := strconv.ParseUint(c.Query("project_id", "0"), 10, 32)

	result, err := h.adminFlow.ListTemplates(createRequestContext(c, "/api/v1/admin/document-numbering/templates"), uint(projectID))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Template listing failed", err)
		}
		return h.ErrorResponse(c, status, "Template listing failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Templates retrieved", result)
}

// DeleteTemplate removes a numbering template
// @Summary Delete Numbering Template
// @Tags Document Numbering Admin
// @Produce json
// @Param id path int true "Template id"
// @Success 200 {object} dto.APIResponse "Template deleted"
// @Failure 404 {object} dto.APIResponse "Template not found"
// @Router /api/v1/admin/document-numbering/templates/{id} [delete]
func (h *NumberingAdminHandler) DeleteTemplate(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid template id", "INVALID_TEMPLATE_ID", nil)
	}

	if err := h.adminFlow.DeleteTemplate(createRequestContext(c, "/api/v1/admin/document-numbering/templates/:id"), uint(id)); err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Template deletion failed", err)
		}
		return h.ErrorResponse(c, status, "Template deletion failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Template deleted", nil)
}

// ListCounters shows the current sequence counters for a project
// @Summary List Sequence Counters
// @Tags Document Numbering Admin
// @Produce json
// @Param project_id query int true "Project filter"
// @Success 200 {object} dto.APIResponse{data=[]dto.CounterDTO} "Counters retrieved"
// @Router /api/v1/admin/document-numbering/counters [get]
func (h *NumberingAdminHandler) ListCounters(c fiber.Ctx) error {
	projectID, err := strconv.ParseUint(c.Query("project_id", "0"), 10, 32)
	if err != nil || projectID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "project_id query parameter is required", "MISSING_PROJECT_ID", nil)
	}

	result, err := h.adminFlow.ListCounters(createRequestContext(c, "/api/v1/admin/document-numbering/counters"), uint(projectID))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Counter listing failed", err)
		}
		return h.ErrorResponse(c, status, "Counter listing failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Counters retrieved", result)
}

// Logs returns the recent audit and error trail
// @Summary Numbering Logs
// @Tags Document Numbering Admin
// @Produce json
// @Param limit query int false "Max entries per trail (default 100)"
// @Success 200 {object} dto.APIResponse{data=dto.NumberingLogsResponse} "Logs retrieved"
// @Router /api/v1/admin/document-numbering/logs [get]
func (h *NumberingAdminHandler) Logs(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	result, err := h.adminFlow.Logs(createRequestContext(c, "/api/v1/admin/document-numbering/logs"), limit)
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Log retrieval failed", err)
		}
		return h.ErrorResponse(c, status, "Log retrieval failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Logs retrieved", result)
}
