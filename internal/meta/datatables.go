package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// CreateDataTable persists a data table and its column descriptions in one
// transaction.
func (s *Store) CreateDataTable(ctx context.Context, dt *core.DataTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO data_tables (id, revision_id, filename, file_type, mime_type, hash, action, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dt.ID, dt.RevisionID, dt.Filename, string(dt.FileType), dt.MimeType, dt.Hash, string(dt.Action), dt.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create data table: %w", err)
	}

	for _, col := range dt.Columns {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO data_table_columns (data_table_id, name, col_index, data_type)
			VALUES ($1, $2, $3, $4)`,
			dt.ID, col.Name, col.Index, col.DataType)
		if err != nil {
			return fmt.Errorf("failed to persist column %q: %w", col.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit data table: %w", err)
	}
	return nil
}

// GetDataTable loads a data table with its column descriptions.
func (s *Store) GetDataTable(ctx context.Context, id uuid.UUID) (*core.DataTable, error) {
	var dt core.DataTable
	var fileType, action string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, revision_id, filename, file_type, mime_type, hash, action, uploaded_at
		FROM data_tables WHERE id = $1`, id).
		Scan(&dt.ID, &dt.RevisionID, &dt.Filename, &fileType, &dt.MimeType, &dt.Hash, &action, &dt.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data table not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data table: %w", err)
	}
	dt.FileType = core.FileType(fileType)
	dt.Action = core.DataTableAction(action)

	cols, err := s.dataTableColumns(ctx, id)
	if err != nil {
		return nil, err
	}
	dt.Columns = cols
	return &dt, nil
}

// ListDataTables returns every data table belonging to the given revisions,
// ordered by upload time, oldest first. The cube builder concatenates them
// in exactly this order.
func (s *Store) ListDataTables(ctx context.Context, revisionIDs []uuid.UUID) ([]*core.DataTable, error) {
	if len(revisionIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(revisionIDs))
	for i, id := range revisionIDs {
		ids[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, revision_id, filename, file_type, mime_type, hash, action, uploaded_at
		FROM data_tables
		WHERE revision_id::text = ANY($1)
		ORDER BY uploaded_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list data tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []*core.DataTable
	for rows.Next() {
		var dt core.DataTable
		var fileType, action string
		if err := rows.Scan(&dt.ID, &dt.RevisionID, &dt.Filename, &fileType, &dt.MimeType, &dt.Hash, &action, &dt.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan data table: %w", err)
		}
		dt.FileType = core.FileType(fileType)
		dt.Action = core.DataTableAction(action)
		tables = append(tables, &dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data tables: %w", err)
	}

	for _, dt := range tables {
		cols, err := s.dataTableColumns(ctx, dt.ID)
		if err != nil {
			return nil, err
		}
		dt.Columns = cols
	}
	return tables, nil
}

func (s *Store) dataTableColumns(ctx context.Context, id uuid.UUID) ([]core.ColumnDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, col_index, data_type
		FROM data_table_columns
		WHERE data_table_id = $1
		ORDER BY col_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load data table columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []core.ColumnDescriptor
	for rows.Next() {
		var col core.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.Index, &col.DataType); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return cols, nil
}
