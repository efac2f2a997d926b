// Package meta is the relational metadata store. It persists datasets,
// revisions, data tables, column roles, dimensions, measures, lookup tables
// and build logs in Postgres, and owns the per-revision cube schemas that
// the analytical engine attaches and writes into.
package meta

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/jonboulle/clockwork"
)

// Config holds the Postgres connection settings. The pool is bounded so a
// leaked connection is noticed instead of exhausting the server.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// MaxConns bounds open connections; MaxConnLifetime recycles
	// connections so no single one is used indefinitely; MaxConnIdleTime
	// closes idle connections.
	MaxConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	Logger *slog.Logger
	Clock  clockwork.Clock
}

// DSN renders the config as a postgres connection string.
func (c Config) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, c.Database, sslmode)
	if c.Username != "" {
		dsn += " user=" + c.Username
	}
	if c.Password != "" {
		dsn += " password=" + c.Password
	}
	return dsn
}

// Store is the Postgres-backed metadata store.
type Store struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewStore opens the metadata database and applies the pool bounds.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	dsn := cfg.DSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping metadata store: %w", err)
	}

	logger.Debug("metadata store connected", "host", cfg.Host, "database", cfg.Database)
	return &Store{db: db, dsn: dsn, logger: logger, clock: clock}, nil
}

// NewStoreWithDB wraps an existing connection; used by tests.
func NewStoreWithDB(db *sql.DB, logger *slog.Logger, clock clockwork.Clock) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, logger: logger, clock: clock}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DSN returns the connection string, used by the analytical engine to
// attach the metadata database as a foreign schema.
func (s *Store) DSN() string {
	return s.dsn
}

// DB exposes the underlying pool for callers that execute generated SQL
// against published cube schemas.
func (s *Store) DB() *sql.DB {
	return s.db
}

// execTx runs statements inside one transaction, rolling back on the first
// failure.
func (s *Store) execTx(ctx context.Context, stmts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute %q: %w", firstWords(stmt), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func firstWords(stmt string) string {
	if len(stmt) > 48 {
		return stmt[:48] + "..."
	}
	return stmt
}
