package logger

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
)

type QueryLogger struct {
	Operation string
	Query     string
	Args      []any
	StartTime time.Time
}

func NewQueryLogger(operation, query string, args ...any) *QueryLogger {
	return &QueryLogger{
		Operation: operation,
		Query:     query,
		Args:      args,
		StartTime: time.Now(),
	}
}

func (l *QueryLogger) Log(err error, rowsAffected int64) {
	duration := time.Since(l.StartTime)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", l.Operation),
			slog.String("query", l.Query),
			slog.Any("args", l.Args),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", l.Operation),
		slog.String("query", l.Query),
		slog.Any("args", l.Args),
		slog.Duration("took", duration),
		slog.Int64("affected_rows", rowsAffected),
	)
}

// QueryHook logs bun queries. Queries slower than Slow are logged at warn
// level; everything else goes to debug unless Verbose is off.
type QueryHook struct {
	Slow    time.Duration
	Verbose bool
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(slow time.Duration, verbose bool) *QueryHook {
	return &QueryHook{Slow: slow, Verbose: verbose}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)

	var rows int64
	if event.Result != nil {
		rows, _ = event.Result.RowsAffected()
	}

	attrs := []any{
		slog.String("type", "db"),
		slog.String("operation", event.Operation()),
		slog.String("query", event.Query),
		slog.Duration("took", took),
	}

	switch {
	case event.Err != nil && !isNoRows(event.Err):
		slog.Error("Query failed", append(attrs, slog.Any("error", event.Err))...)
	case h.Slow > 0 && took > h.Slow:
		slog.Warn("Slow query", append(attrs, slog.Int64("affected_rows", rows))...)
	case h.Verbose:
		slog.Debug("Query executed", append(attrs, slog.Int64("affected_rows", rows))...)
	}
}

// Lookups that miss are normal control flow for the repositories.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
