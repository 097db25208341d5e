package utils

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/backend/models"
	"github.com/cardforge/cardforge/internal/domain/exchange"
)

// AccountLocal is the Locals key the auth middleware stores the caller under.
const AccountLocal = "account"

func SendJSON(c *fiber.Ctx, statusCode int, data any) error {
	return c.Status(statusCode).JSON(data)
}

func SendSuccess(c *fiber.Ctx, data any, message string) error {
	return SendJSON(c, http.StatusOK, models.NewSuccessResponse(data, message))
}

func SendCreated(c *fiber.Ctx, data any, message string) error {
	return SendJSON(c, http.StatusCreated, models.NewSuccessResponse(data, message))
}

func SendError(c *fiber.Ctx, statusCode int, code, message string, details map[string]string) error {
	return SendJSON(c, statusCode, models.NewErrorResponse(code, message, details))
}

func SendBadRequest(c *fiber.Ctx, message string, details map[string]string) error {
	return SendError(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func SendUnauthorized(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func SendInternalServerError(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, nil)
}

func SendUnprocessableEntity(c *fiber.Ctx, message string, details map[string]string) error {
	return SendError(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func SendPaginated(c *fiber.Ctx, data any, pagination *models.PaginationInfo, message string) error {
	return SendJSON(c, http.StatusOK, models.NewPaginatedResponse(data, pagination, message))
}

// SendExchangeError maps an exchange failure to a status code. The error
// code in the body is the taxonomy code so clients can branch on it.
func SendExchangeError(c *fiber.Ctx, err error) error {
	code := exchange.CodeOf(err)

	var low *exchange.BidTooLowError
	var funds *exchange.InsufficientFundsError
	switch {
	case errors.As(err, &low):
		return SendError(c, http.StatusUnprocessableEntity, code, err.Error(), map[string]string{
			"minimum": strconv.FormatUint(low.Minimum, 10),
		})
	case errors.As(err, &funds):
		return SendError(c, http.StatusPaymentRequired, code, err.Error(), map[string]string{
			"currency":  string(funds.Currency),
			"required":  strconv.FormatUint(funds.Required, 10),
			"available": strconv.FormatUint(funds.Available, 10),
		})
	case errors.Is(err, exchange.ErrNotFound):
		return SendError(c, http.StatusNotFound, code, err.Error(), nil)
	case errors.Is(err, exchange.ErrForbidden):
		return SendError(c, http.StatusForbidden, code, err.Error(), nil)
	case errors.Is(err, exchange.ErrInvalid):
		return SendError(c, http.StatusUnprocessableEntity, code, err.Error(), nil)
	}

	switch exchange.ClassOf(err) {
	case exchange.ClassValidation:
		return SendError(c, http.StatusBadRequest, code, err.Error(), nil)
	case exchange.ClassConflict:
		return SendError(c, http.StatusConflict, code, err.Error(), nil)
	case exchange.ClassExhaustion:
		return SendError(c, http.StatusPaymentRequired, code, err.Error(), nil)
	}

	slog.Error("Unhandled exchange error",
		slog.String("type", "error"),
		slog.String("path", c.Path()),
		slog.Any("error", err))
	return SendInternalServerError(c, "Internal server error")
}

// HandleValidationErrors converts validation errors to API response
func HandleValidationErrors(c *fiber.Ctx, errs []models.ValidationError) error {
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field] = err.Description
	}
	return SendUnprocessableEntity(c, "Validation failed", details)
}

// AccountID returns the authenticated account, or "" outside AccountRequired.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(AccountLocal).(string)
	return id
}

// GetIPAddress extracts the client IP address
func GetIPAddress(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := c.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return c.IP()
}

func GetUserAgent(c *fiber.Ctx) string {
	return c.Get("User-Agent")
}

// QueryInt reads a positive integer query parameter, falling back to def.
func QueryInt(c *fiber.Ctx, key string, def int) int {
	v := c.QueryInt(key, def)
	if v <= 0 {
		return def
	}
	return v
}
