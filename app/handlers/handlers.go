// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	businessflow "github.com/sitearc/docnum/business_flow"
	"github.com/sitearc/docnum/utils"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " items"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	case "uuid4":
		return err.Field() + " must be a valid UUID"
	default:
		return err.Field() + " is invalid"
	}
}

// businessErrorStatus maps a business error code onto an HTTP status, so a
// retryable conflict is distinguishable from a terminal validation failure.
func businessErrorStatus(err error) (int, string) {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
	switch be.Code {
	case businessflow.CodeValidation:
		return fiber.StatusBadRequest, be.Code
	case businessflow.CodeConflict:
		return fiber.StatusConflict, be.Code
	case businessflow.CodeNotFound:
		return fiber.StatusNotFound, be.Code
	case businessflow.CodeGone:
		return fiber.StatusGone, be.Code
	default:
		return fiber.StatusInternalServerError, be.Code
	}
}

func createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		metadata.SetRequestID(requestID)
	}
	return metadata
}
