// Package engine wraps the embedded DuckDB analytical engine behind an
// explicit session model. Every ingestion, build and query operation
// acquires a session, runs its statements on that one connection, and
// releases it on all paths. Connection-scoped state (temporary tables,
// attached schemas) therefore never leaks between operations.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Config holds the analytical engine configuration.
type Config struct {
	// Path is the DuckDB database file; empty for in-memory.
	Path string
	// Threads bounds DuckDB's internal worker pool. Zero keeps the engine
	// default.
	Threads int
	// MemoryLimit is passed to DuckDB verbatim, e.g. "2GB".
	MemoryLimit string
	// TempDirectory is where DuckDB spills oversized operators.
	TempDirectory string
	// SettleInterval is how long callers wait after a checkpoint before the
	// underlying file may be reused.
	SettleInterval time.Duration
	// Logger is optional; a discard logger is used when nil.
	Logger *slog.Logger
	// Clock is optional; the real clock is used when nil.
	Clock clockwork.Clock
}

// Engine owns the DuckDB handle and hands out sessions.
type Engine struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
	clock  clockwork.Clock
}

// Open opens the DuckDB database and applies the configured resource limits.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	e := &Engine{db: db, cfg: cfg, logger: logger, clock: clock}
	if err := e.applySettings(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("analytical engine opened", "path", path, "threads", cfg.Threads)
	return e, nil
}

func (e *Engine) applySettings(ctx context.Context) error {
	if e.cfg.Threads > 0 {
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", e.cfg.Threads)); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	if e.cfg.MemoryLimit != "" {
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf("SET memory_limit = '%s'", e.cfg.MemoryLimit)); err != nil {
			return fmt.Errorf("failed to set memory limit: %w", err)
		}
	}
	if e.cfg.TempDirectory != "" {
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf("SET temp_directory = '%s'", e.cfg.TempDirectory)); err != nil {
			return fmt.Errorf("failed to set temp directory: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Acquire checks out a dedicated connection. The caller must Release the
// session on every path.
func (e *Engine) Acquire(ctx context.Context) (*Session, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire engine session: %w", err)
	}
	return &Session{conn: conn, logger: e.logger}, nil
}

// Checkpoint forces a WAL checkpoint and then waits the configured settle
// interval so the database file is durable before reuse.
func (e *Engine) Checkpoint(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	if e.cfg.SettleInterval > 0 {
		e.clock.Sleep(e.cfg.SettleInterval)
	}
	return nil
}

// Session is a dedicated engine connection.
type Session struct {
	conn   *sql.Conn
	logger *slog.Logger
}

// Release returns the connection to the pool.
func (s *Session) Release() error {
	return s.conn.Close()
}

// Exec executes a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	s.logger.Debug("engine exec", "sql", truncateSQL(query))
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("engine exec failed: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows. rows.Err must be checked by
// the caller after iteration.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.logger.Debug("engine query", "sql", truncateSQL(query))
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("engine query failed: %w", err)
	}
	return rows, nil
}

// QueryRow executes a statement expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	s.logger.Debug("engine query row", "sql", truncateSQL(query))
	return s.conn.QueryRowContext(ctx, query, args...)
}

// Count runs a COUNT(*) wrapper around the given SELECT.
func (s *Session) Count(ctx context.Context, selectSQL string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) t", selectSQL)
	if err := s.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// AttachPostgres attaches a foreign Postgres database under the given alias,
// giving the engine direct read/write access to relational-store schemas.
func (s *Session) AttachPostgres(ctx context.Context, alias, dsn string) error {
	stmt := fmt.Sprintf("ATTACH '%s' AS %s (TYPE postgres)", dsn, QuoteIdent(alias))
	s.logger.Debug("engine attach", "alias", alias)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to attach postgres as %s: %w", alias, err)
	}
	return nil
}

// Detach removes a previously attached database.
func (s *Session) Detach(ctx context.Context, alias string) error {
	if _, err := s.conn.ExecContext(ctx, "DETACH "+QuoteIdent(alias)); err != nil {
		return fmt.Errorf("failed to detach %s: %w", alias, err)
	}
	return nil
}

// QuoteIdent quotes an identifier for DuckDB SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal for DuckDB SQL.
func QuoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func truncateSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 160 {
		return q[:160] + "..."
	}
	return q
}
