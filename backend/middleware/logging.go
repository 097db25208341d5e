package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/backend/utils"
)

// LoggingMiddleware logs HTTP requests in a structured format
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		statusCode := c.Response().StatusCode()
		logLevel := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if statusCode >= 500 {
			logLevel = slog.LevelError
		}

		logger := slog.With(
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("took", duration),
			slog.String("ip", utils.GetIPAddress(c)),
			slog.Int("size", len(c.Response().Body())),
		)
		if account := utils.AccountID(c); account != "" {
			logger = logger.With(slog.String("account", account))
		}
		if ua := utils.GetUserAgent(c); ua != "" {
			logger = logger.With(slog.String("user_agent", ua))
		}

		message := "HTTP request processed"
		if err != nil {
			message = "HTTP request failed"
			logger = logger.With(slog.String("error", err.Error()))
		}
		logger.Log(c.Context(), logLevel, message)

		return err
	}
}
