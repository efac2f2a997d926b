// Package ingest loads uploaded tables into the analytical engine, infers
// their column schema, and persists a durable copy of the raw bytes.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/internal/objstore"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// MetaStore is the slice of the metadata store the ingestor needs.
type MetaStore interface {
	GetRevision(ctx context.Context, id uuid.UUID) (*core.Revision, error)
	CreateDataTable(ctx context.Context, dt *core.DataTable) error
	GetDataTable(ctx context.Context, id uuid.UUID) (*core.DataTable, error)
}

// Config wires an Ingestor.
type Config struct {
	Engine  *engine.Engine
	Meta    MetaStore
	Storage objstore.Store
	// StagingDir receives the uploaded bytes as temporary files for the
	// engine's file readers. Defaults to the OS temp directory.
	StagingDir string
	Logger     *slog.Logger
	Clock      clockwork.Clock
}

// Validate checks required collaborators.
func (cfg *Config) Validate() error {
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Meta == nil {
		return errors.New("metadata store is required")
	}
	if cfg.Storage == nil {
		return errors.New("object storage is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	return nil
}

// Ingestor is the table ingestion pipeline.
type Ingestor struct {
	cfg Config
	log *slog.Logger
}

// New builds an Ingestor.
func New(cfg Config) (*Ingestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ingestor{cfg: cfg, log: cfg.Logger}, nil
}

// Ingest loads one uploaded file into the analytical engine, persists its
// inferred schema and a durable copy, and returns the new data table.
func (ing *Ingestor) Ingest(ctx context.Context, revisionID uuid.UUID, filename, mimeType string, data []byte, action core.DataTableAction) (*core.DataTable, error) {
	kind, err := DetectFileKind(mimeType, filename)
	if err != nil {
		return nil, err
	}

	rev, err := ing.cfg.Meta.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}

	dt := &core.DataTable{
		ID:         uuid.New(),
		RevisionID: rev.ID,
		Filename:   filename,
		FileType:   kind,
		MimeType:   mimeType,
		Hash:       hashBytes(data),
		Action:     action,
		UploadedAt: ing.cfg.Clock.Now().UTC(),
	}

	ing.log.Info("ingesting table", "data_table", dt.ID, "revision", rev.ID, "kind", kind, "bytes", len(data))

	staged, err := ing.stage(dt.ID, kind, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(staged) }()

	sess, err := ing.cfg.Engine.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Release() }()

	tempTable := "temp_" + engine.DataTableName(dt.ID)
	if err := LoadTemp(ctx, sess, tempTable, kind, staged); err != nil {
		return nil, err
	}
	defer func() { _ = sess.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable) }()

	cols, err := ing.validateLoaded(ctx, sess, tempTable, kind)
	if err != nil {
		return nil, err
	}
	dt.Columns = cols

	// Copy the temp table into the durable engine schema.
	if err := sess.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+engine.SchemaDataTables); err != nil {
		return nil, err
	}
	copyStmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", engine.DataTableRef(dt.ID), tempTable)
	if err := sess.Exec(ctx, copyStmt); err != nil {
		return nil, err
	}

	if err := ing.cfg.Storage.SaveBuffer(ctx, rev.ID.String(), engine.DataTableName(dt.ID)+Extension(kind), data); err != nil {
		return nil, fmt.Errorf("failed to persist durable copy: %w", err)
	}

	if err := ing.cfg.Meta.CreateDataTable(ctx, dt); err != nil {
		return nil, err
	}

	ing.log.Info("table ingested", "data_table", dt.ID, "columns", len(cols), "hash", dt.Hash)
	return dt, nil
}

// validateLoaded checks the loaded temp table has usable shape and returns
// its column descriptors.
func (ing *Ingestor) validateLoaded(ctx context.Context, sess *engine.Session, tempTable string, kind core.FileType) ([]core.ColumnDescriptor, error) {
	rowCount, err := sess.RowCount(ctx, tempTable)
	if err != nil {
		return nil, err
	}
	if rowCount == 0 {
		return nil, core.NewValidationError(core.ErrInvalidCsv, "file", "file contains no data rows")
	}

	cols, err := sess.TableColumns(ctx, tempTable)
	if err != nil {
		return nil, err
	}

	// A single inferred column on a CSV is symptomatic of a delimiter
	// mis-detection.
	if (kind == core.FileTypeCSV || kind == core.FileTypeGzipCSV) && len(cols) == 1 {
		return nil, core.NewValidationError(core.ErrInvalidCsv, "file",
			"only one column detected; the delimiter was probably not recognised")
	}
	return cols, nil
}

// Reingest reloads a data table's durable copy into the engine, used when
// the engine-side table was lost or a rebuild needs the raw data again.
func (ing *Ingestor) Reingest(ctx context.Context, dataTableID uuid.UUID) (*core.DataTable, error) {
	dt, err := ing.cfg.Meta.GetDataTable(ctx, dataTableID)
	if err != nil {
		return nil, err
	}

	data, err := ing.cfg.Storage.LoadBuffer(ctx, dt.RevisionID.String(), engine.DataTableName(dt.ID)+Extension(dt.FileType))
	if err != nil {
		return nil, fmt.Errorf("failed to reload durable copy: %w", err)
	}

	staged, err := ing.stage(dt.ID, dt.FileType, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(staged) }()

	sess, err := ing.cfg.Engine.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Release() }()

	tempTable := "temp_" + engine.DataTableName(dt.ID)
	if err := LoadTemp(ctx, sess, tempTable, dt.FileType, staged); err != nil {
		return nil, err
	}
	defer func() { _ = sess.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable) }()

	if err := sess.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+engine.SchemaDataTables); err != nil {
		return nil, err
	}
	copyStmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", engine.DataTableRef(dt.ID), tempTable)
	if err := sess.Exec(ctx, copyStmt); err != nil {
		return nil, err
	}
	return dt, nil
}

// Preview returns up to limit rows of an ingested table as strings,
// reloading the durable copy when the engine table is missing.
func (ing *Ingestor) Preview(ctx context.Context, dataTableID uuid.UUID, limit int) ([]string, [][]string, error) {
	if limit <= 0 {
		limit = 10
	}

	sess, err := ing.cfg.Engine.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = sess.Release() }()

	ref := engine.DataTableRef(dataTableID)
	exists, err := sess.TableExists(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		if _, err := ing.Reingest(ctx, dataTableID); err != nil {
			return nil, nil, err
		}
	}

	rows, err := sess.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", ref, limit))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	headers, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read preview columns: %w", err)
	}

	var out [][]string
	for rows.Next() {
		values := make([]any, len(headers))
		ptrs := make([]any, len(headers))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan preview row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				row[i] = ""
				continue
			}
			row[i] = fmt.Sprintf("%v", v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating preview rows: %w", err)
	}
	return headers, out, nil
}

// stage writes the uploaded bytes where the engine's file readers can see
// them, with the extension the readers key off.
func (ing *Ingestor) stage(id uuid.UUID, kind core.FileType, data []byte) (string, error) {
	name := filepath.Join(ing.cfg.StagingDir, engine.DataTableName(id)+Extension(kind))
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return name, nil
}

func hashBytes(data []byte) string {
	h := sha256.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
