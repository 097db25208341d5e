package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/repositories"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
)

// UnitOfWork runs exchange operations in Postgres transactions. Events
// published inside Do reach the notifier only after a successful commit.
type UnitOfWork struct {
	db       *bun.DB
	notifier exchange.Notifier
}

var _ exchange.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *bun.DB, notifier exchange.Notifier) *UnitOfWork {
	if db == nil {
		panic("database is required")
	}
	if notifier == nil {
		notifier = exchange.NopNotifier
	}
	return &UnitOfWork{db: db, notifier: notifier}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s exchange.Stores) error) error {
	var events []exchange.Event
	err := u.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		stores := repositories.NewStores(tx, true)
		if err := fn(ctx, stores); err != nil {
			return err
		}
		events = stores.Events()
		return nil
	})
	if err != nil {
		return translate(err)
	}

	for _, event := range events {
		u.notifier.Notify(ctx, event)
	}
	return nil
}

func (u *UnitOfWork) View(ctx context.Context, fn func(ctx context.Context, s exchange.Stores) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := u.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, repositories.NewStores(tx, false))
	})
	return translate(err)
}

// translate maps driver failures onto the exchange error taxonomy. Errors
// that already belong to it pass through untouched.
func translate(err error) error {
	if err == nil || exchange.ClassOf(err) != 0 {
		return err
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return exchange.Wrap(exchange.ErrConcurrentModification, "state changed concurrently: %s", pgErr.Field('M'))
		case pgUniqueViolation:
			return exchange.Wrap(exchange.ErrAlreadyLocked, "conflicting row: %s", pgErr.Field('n'))
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Wrap(exchange.ErrNotFound, "record not found")
	}
	return fmt.Errorf("unit of work failed: %w", err)
}
