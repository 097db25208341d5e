package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/cardforge/cardforge/internal/domain/exchange"
)

// notFound turns a missing row into the exchange NotFound error and wraps
// anything else with the failed operation.
func notFound(err error, what, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Wrap(exchange.ErrNotFound, "%s %s not found", what, id)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func mustAffect(res sql.Result, what, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return exchange.Wrap(exchange.ErrNotFound, "%s %s not found", what, id)
	}
	return nil
}
