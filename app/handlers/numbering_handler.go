package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sitearc/docnum/app/dto"
	businessflow "github.com/sitearc/docnum/business_flow"
)

// NumberingHandlerInterface defines the contract for document numbering handlers
type NumberingHandlerInterface interface {
	Generate(c fiber.Ctx) error
	Preview(c fiber.Ctx) error
	Reserve(c fiber.Ctx) error
	Confirm(c fiber.Ctx) error
	Cancel(c fiber.Ctx) error
	GetReservation(c fiber.Ctx) error
}

// NumberingHandler handles document numbering HTTP requests
type NumberingHandler struct {
	numberingFlow   businessflow.NumberingFlow
	reservationFlow businessflow.ReservationFlow
	validator       *validator.Validate
}

// NewNumberingHandler creates a new numbering handler
func NewNumberingHandler(numberingFlow businessflow.NumberingFlow, reservationFlow businessflow.ReservationFlow) *NumberingHandler {
	return &NumberingHandler{
		numberingFlow:   numberingFlow,
		reservationFlow: reservationFlow,
		validator:       validator.New(),
	}
}

func (h *NumberingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *NumberingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *NumberingHandler) bindAndValidate(c fiber.Ctx, req any) error {
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

// Generate handles the generation of the next document number
// @Summary Generate Document Number
// @Description Atomically generate the next document number for the given context
// @Tags Document Numbering
// @Accept json
// @Produce json
// @Param request body dto.GenerateNumberRequest true "Generation context"
// @Success 201 {object} dto.APIResponse{data=dto.GenerateNumberResponse} "Number generated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Counter contended, retry"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/document-numbering/generate [post]
func (h *NumberingHandler) Generate(c fiber.Ctx) error {
	var req dto.GenerateNumberRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, _ := c.Locals("user_id").(uint)
	var userIDPtr *uint
	if userID != 0 {
		userIDPtr = &userID
	}

	result, err := h.numberingFlow.GenerateNext(createRequestContext(c, "/api/v1/document-numbering/generate"), &req, userIDPtr, clientMetadata(c))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Number generation failed", err)
		}
		return h.ErrorResponse(c, status, "Number generation failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Number generated successfully", result)
}

// Preview shows the next document number without consuming it
// @Summary Preview Document Number
// @Description Render the number the next generation would produce, without committing it
// @Tags Document Numbering
// @Accept json
// @Produce json
// @Param request body dto.GenerateNumberRequest true "Generation context"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewNumberResponse} "Preview rendered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/document-numbering/preview [post]
func (h *NumberingHandler) Preview(c fiber.Ctx) error {
	var req dto.GenerateNumberRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.numberingFlow.Preview(createRequestContext(c, "/api/v1/document-numbering/preview"), &req)
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Number preview failed", err)
		}
		return h.ErrorResponse(c, status, "Number preview failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Number preview rendered", result)
}

// Reserve reserves the next document number behind an expiring token
// @Summary Reserve Document Number
// @Description Consume the next number and hold it behind a reservation token until confirmed or expired
// @Tags Document Numbering
// @Accept json
// @Produce json
// @Param request body dto.ReserveNumberRequest true "Generation context"
// @Success 201 {object} dto.APIResponse{data=dto.ReserveNumberResponse} "Number reserved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Counter contended, retry"
// @Router /api/v1/document-numbering/reserve [post]
func (h *NumberingHandler) Reserve(c fiber.Ctx) error {
	var req dto.ReserveNumberRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.reservationFlow.Reserve(createRequestContext(c, "/api/v1/document-numbering/reserve"), &req, userID, clientMetadata(c))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Number reservation failed", err)
		}
		return h.ErrorResponse(c, status, "Number reservation failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Number reserved successfully", result)
}

// Confirm makes a reservation permanent and binds it to a document
// @Summary Confirm Reservation
// @Description Bind a reserved number to a stored document before the reservation expires
// @Tags Document Numbering
// @Accept json
// @Produce json
// @Param request body dto.ConfirmReservationRequest true "Reservation token and document id"
// @Success 200 {object} dto.APIResponse{data=dto.ConfirmReservationResponse} "Reservation confirmed"
// @Failure 404 {object} dto.APIResponse "Reservation not found or already used"
// @Failure 410 {object} dto.APIResponse "Reservation expired"
// @Router /api/v1/document-numbering/confirm [post]
func (h *NumberingHandler) Confirm(c fiber.Ctx) error {
	var req dto.ConfirmReservationRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, _ := c.Locals("user_id").(uint)
	var userIDPtr *uint
	if userID != 0 {
		userIDPtr = &userID
	}

	result, err := h.reservationFlow.Confirm(createRequestContext(c, "/api/v1/document-numbering/confirm"), &req, userIDPtr, clientMetadata(c))
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Reservation confirmation failed", err)
		}
		return h.ErrorResponse(c, status, "Reservation confirmation failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reservation confirmed successfully", result)
}

// Cancel releases a reservation. Idempotent.
// @Summary Cancel Reservation
// @Description Release a reserved number; the consumed sequence is not reclaimed
// @Tags Document Numbering
// @Accept json
// @Produce json
// @Param request body dto.CancelReservationRequest true "Reservation token"
// @Success 200 {object} dto.APIResponse "Reservation cancelled"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/document-numbering/cancel [post]
func (h *NumberingHandler) Cancel(c fiber.Ctx) error {
	var req dto.CancelReservationRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, _ := c.Locals("user_id").(uint)
	var userIDPtr *uint
	if userID != 0 {
		userIDPtr = &userID
	}

	if err := h.reservationFlow.Cancel(createRequestContext(c, "/api/v1/document-numbering/cancel"), &req, userIDPtr, clientMetadata(c)); err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Reservation cancellation failed", err)
		}
		return h.ErrorResponse(c, status, "Reservation cancellation failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reservation cancelled", nil)
}

// GetReservation returns a reservation in any state
// @Summary Get Reservation
// @Tags Document Numbering
// @Produce json
// @Param token path string true "Reservation token"
// @Success 200 {object} dto.APIResponse{data=dto.ReservationDTO} "Reservation retrieved"
// @Failure 404 {object} dto.APIResponse "Reservation not found"
// @Router /api/v1/document-numbering/reservations/{token} [get]
func (h *NumberingHandler) GetReservation(c fiber.Ctx) error {
	token := c.Params("token")

	result, err := h.reservationFlow.GetByToken(createRequestContext(c, "/api/v1/document-numbering/reservations/:token"), token)
	if err != nil {
		status, code := businessErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Println("Reservation lookup failed", err)
		}
		return h.ErrorResponse(c, status, "Reservation lookup failed", code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reservation retrieved", result)
}
