// Package query caches generated, locale-parametrized SQL per consumer
// request fingerprint and regenerates cached entries when their revision's
// cube is rebuilt.
package query

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leapstack-labs/statcube/pkg/core"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // sqlite driver for the query cache
)

//go:embed migrations/*.sql
var migrations embed.FS

// Cache is the sqlite-backed query entry store. The cache is local state; a
// lost cache only costs regeneration.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
	clock  clockwork.Clock
}

// OpenCache opens (or creates) the cache database at path and applies
// pending migrations.
func OpenCache(ctx context.Context, path string, logger *slog.Logger, clock clockwork.Clock) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open query cache: %w", err)
	}
	// sqlite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY under concurrent generation.
	db.SetMaxOpenConns(1)

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate query cache: %w", err)
	}

	return &Cache{db: db, logger: logger, clock: clock}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

const entryColumns = "id, dataset_id, revision_id, fingerprint, options, sql_by_locale, total_rows, column_mapping, created_at, updated_at"

// GetByFingerprint returns the entry for a request hash, or nil on a miss.
func (c *Cache) GetByFingerprint(ctx context.Context, fingerprint string) (*core.QueryEntry, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM query_entries WHERE fingerprint = ?", fingerprint)
	return scanEntry(row.Scan)
}

// GetByID returns the entry with the given token, or nil.
func (c *Cache) GetByID(ctx context.Context, id string) (*core.QueryEntry, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM query_entries WHERE id = ?", id)
	return scanEntry(row.Scan)
}

// Insert stores a new entry.
func (c *Cache) Insert(ctx context.Context, e *core.QueryEntry) error {
	opts, sqlJSON, mapping, err := encodeEntry(e)
	if err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO query_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DatasetID.String(), e.RevisionID.String(), e.Fingerprint,
		opts, sqlJSON, e.TotalRows, mapping,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert query entry: %w", err)
	}
	return nil
}

// Update regenerates an entry in place, keeping its id and fingerprint.
func (c *Cache) Update(ctx context.Context, e *core.QueryEntry) error {
	_, sqlJSON, mapping, err := encodeEntry(e)
	if err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	e.UpdatedAt = now

	res, err := c.db.ExecContext(ctx, `
		UPDATE query_entries
		SET sql_by_locale = ?, total_rows = ?, column_mapping = ?, updated_at = ?
		WHERE id = ?`,
		sqlJSON, e.TotalRows, mapping, now.Format(time.RFC3339Nano), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update query entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("query entry not found: %s", e.ID)
	}
	return nil
}

// Delete removes one entry.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM query_entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete query entry: %w", err)
	}
	return nil
}

// ListByRevisions returns every entry owned by one of the revisions.
func (c *Cache) ListByRevisions(ctx context.Context, revisionIDs []uuid.UUID) ([]*core.QueryEntry, error) {
	var out []*core.QueryEntry
	for _, id := range revisionIDs {
		rows, err := c.db.QueryContext(ctx,
			"SELECT "+entryColumns+" FROM query_entries WHERE revision_id = ? ORDER BY created_at", id.String())
		if err != nil {
			return nil, fmt.Errorf("failed to list query entries: %w", err)
		}
		entries, err := scanEntries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// RevisionIDs returns the distinct revisions that own cached entries.
func (c *Cache) RevisionIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT revision_id FROM query_entries")
	if err != nil {
		return nil, fmt.Errorf("failed to list cached revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt revision id in cache: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteByRevision removes every entry owned by a revision and reports how
// many were removed.
func (c *Cache) DeleteByRevision(ctx context.Context, revisionID uuid.UUID) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM query_entries WHERE revision_id = ?", revisionID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to purge query entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func encodeEntry(e *core.QueryEntry) (opts, sqlJSON, mapping string, err error) {
	o, err := json.Marshal(e.Options)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode query options: %w", err)
	}
	s, err := json.Marshal(e.SQLByLocale)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode generated sql: %w", err)
	}
	m, err := json.Marshal(e.ColumnMapping)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode column mapping: %w", err)
	}
	return string(o), string(s), string(m), nil
}

func scanEntries(rows *sql.Rows) ([]*core.QueryEntry, error) {
	defer func() { _ = rows.Close() }()

	var out []*core.QueryEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(scan func(...any) error) (*core.QueryEntry, error) {
	var (
		e                      core.QueryEntry
		datasetID, revisionID  string
		opts, sqlJSON, mapping string
		createdAt, updatedAt   string
	)
	err := scan(&e.ID, &datasetID, &revisionID, &e.Fingerprint, &opts, &sqlJSON, &e.TotalRows, &mapping, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan query entry: %w", err)
	}

	if e.DatasetID, err = uuid.Parse(datasetID); err != nil {
		return nil, fmt.Errorf("corrupt dataset id in cache: %w", err)
	}
	if e.RevisionID, err = uuid.Parse(revisionID); err != nil {
		return nil, fmt.Errorf("corrupt revision id in cache: %w", err)
	}
	if err := json.Unmarshal([]byte(opts), &e.Options); err != nil {
		return nil, fmt.Errorf("corrupt query options in cache: %w", err)
	}
	if err := json.Unmarshal([]byte(sqlJSON), &e.SQLByLocale); err != nil {
		return nil, fmt.Errorf("corrupt generated sql in cache: %w", err)
	}
	if err := json.Unmarshal([]byte(mapping), &e.ColumnMapping); err != nil {
		return nil, fmt.Errorf("corrupt column mapping in cache: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at in cache: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at in cache: %w", err)
	}
	return &e, nil
}
