package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/cardforge/cardforge/internal/domain/logger"
)

const (
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	SSLMode      string `toml:"ssl_mode"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
	// SlowQueryMS marks queries slower than this as warnings. Zero disables.
	SlowQueryMS int  `toml:"slow_query_ms"`
	LogQueries  bool `toml:"log_queries"`
}

// URL renders the config as a postgres:// connection string.
func (c DBConfig) URL() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// DB keeps a pgx pool for raw statements next to the bun handle the
// repositories run on.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
	url   string
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	db, err := createDB(ctx, poolConfig, cfg.URL())
	if err != nil {
		return nil, err
	}
	db.bunDB.AddQueryHook(logger.NewQueryHook(time.Duration(cfg.SlowQueryMS)*time.Millisecond, cfg.LogQueries))

	if err := db.waitReady(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewFromURL opens a database from a ready connection string.
func NewFromURL(ctx context.Context, connString string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	db, err := createDB(ctx, poolConfig, connString)
	if err != nil {
		return nil, err
	}
	if err := db.waitReady(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func createDB(ctx context.Context, poolConfig *pgxpool.Config, connString string) (*DB, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connString)))
	if n := poolConfig.MaxConns; n > 0 {
		sqldb.SetMaxOpenConns(int(n))
	}

	return &DB{
		pool:  pool,
		bunDB: bun.NewDB(sqldb, pgdialect.New()),
		url:   connString,
	}, nil
}

func (db *DB) waitReady(ctx context.Context) error {
	var err error
	for i := 0; i < defaultMaxRetries; i++ {
		if err = db.Ping(ctx); err == nil {
			return nil
		}
		slog.Warn("Database not ready",
			slog.String("type", "db"),
			slog.Int("attempt", i+1),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultRetryInterval):
		}
	}
	return fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) URL() string {
	return db.url
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping pool: %w", err)
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping bun: %w", err)
	}
	return nil
}

// ResetTables truncates every exchange table. Used by the seed command
// when asked to start from scratch.
func (db *DB) ResetTables(ctx context.Context) error {
	_, err := db.ExecWithLog(ctx, `TRUNCATE TABLE
		ledger_entries, exchange_transactions, listing_bids, listings,
		trade_offers, card_instances, card_definitions, accounts
		RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

func (db *DB) ExecWithLog(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	ql := logger.NewQueryLogger("exec", query, args...)
	result, err := db.pool.Exec(ctx, query, args...)
	ql.Log(err, result.RowsAffected())
	return result, err
}

func (db *DB) Close() {
	if db.bunDB != nil {
		if err := db.bunDB.Close(); err != nil {
			slog.Error("Failed to close bun database",
				slog.String("type", "db"),
				slog.Any("error", err),
			)
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
}
