package logger

import (
	"log/slog"
	"time"
)

// LogRPC logs one exchange operation on behalf of an account.
func LogRPC(name, account string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "rpc"),
		slog.String("name", name),
		slog.String("account", account),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Warn("RPC rejected", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("RPC executed", append(attrs, slog.String("status", "ok"))...)
	}
}

func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
