// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/app/services"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate is the middleware function that validates user JWT tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, errResp := bearerToken(c)
		if errResp != nil {
			return errResp
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			return unauthorized(c, tokenErrorCode(err), tokenErrorMessage(err))
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("token_id", claims.TokenID)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// AdminAuthenticate validates JWT tokens and sets admin-specific context values
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, errResp := bearerToken(c)
		if errResp != nil {
			return errResp
		}

		adminClaims, err := m.tokenService.ValidateAdminToken(token)
		if err != nil {
			return unauthorized(c, tokenErrorCode(err), tokenErrorMessage(err))
		}

		c.Locals("admin_id", adminClaims.AdminID)
		c.Locals("token_id", adminClaims.TokenID)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// bearerToken extracts the bearer token, or writes the 401 itself.
func bearerToken(c fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
	}
	return token, nil
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}

func tokenErrorCode(err error) string {
	if errors.Is(err, services.ErrTokenExpired) {
		return "TOKEN_EXPIRED"
	}
	if errors.Is(err, services.ErrTokenInvalid) {
		return "TOKEN_INVALID"
	}
	return "TOKEN_VALIDATION_FAILED"
}

func tokenErrorMessage(err error) string {
	if errors.Is(err, services.ErrTokenExpired) {
		return "Access token has expired"
	}
	if errors.Is(err, services.ErrTokenInvalid) {
		return "Invalid access token"
	}
	return "Token validation failed"
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("user_id").(uint)
	return userID, ok
}

// GetAdminIDFromContext extracts the admin ID from the request context
func GetAdminIDFromContext(c fiber.Ctx) (uint, bool) {
	adminID, ok := c.Locals("admin_id").(uint)
	return adminID, ok
}
