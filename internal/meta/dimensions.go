package meta

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// ReplaceDimensions swaps a dataset's dimension declarations.
func (s *Store) ReplaceDimensions(ctx context.Context, datasetID uuid.UUID, dims []core.Dimension) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dimensions WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to clear dimensions: %w", err)
	}

	for i := range dims {
		d := &dims[i]
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dimensions (id, dataset_id, column_name, dim_type, lookup_table_id)
			VALUES ($1, $2, $3, $4, $5)`,
			d.ID, datasetID, d.ColumnName, string(d.Type), d.LookupTableID)
		if err != nil {
			return fmt.Errorf("failed to persist dimension %q: %w", d.ColumnName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dimensions: %w", err)
	}
	return nil
}

// UpdateDimension sets a dimension's type and lookup table reference.
func (s *Store) UpdateDimension(ctx context.Context, id uuid.UUID, dimType core.DimensionType, lookupTableID *uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE dimensions SET dim_type = $1, lookup_table_id = $2 WHERE id = $3`,
		string(dimType), lookupTableID, id)
	if err != nil {
		return fmt.Errorf("failed to update dimension: %w", err)
	}
	return nil
}

// ListDimensions returns a dataset's dimensions ordered by column name.
func (s *Store) ListDimensions(ctx context.Context, datasetID uuid.UUID) ([]*core.Dimension, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, column_name, dim_type, lookup_table_id
		FROM dimensions WHERE dataset_id = $1
		ORDER BY column_name`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dimensions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dims []*core.Dimension
	for rows.Next() {
		var d core.Dimension
		var dimType string
		var lookupID uuid.NullUUID
		if err := rows.Scan(&d.ID, &d.DatasetID, &d.ColumnName, &dimType, &lookupID); err != nil {
			return nil, fmt.Errorf("failed to scan dimension: %w", err)
		}
		d.Type = core.DimensionType(dimType)
		if lookupID.Valid {
			d.LookupTableID = &lookupID.UUID
		}
		dims = append(dims, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dimensions: %w", err)
	}
	return dims, nil
}

// ReplaceDimensionRows swaps the per-locale lookup rows of a dimension.
func (s *Store) ReplaceDimensionRows(ctx context.Context, dimensionID uuid.UUID, rows []core.DimensionRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dimension_rows WHERE dimension_id = $1`, dimensionID); err != nil {
		return fmt.Errorf("failed to clear dimension rows: %w", err)
	}

	for _, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dimension_rows (dimension_id, reference, locale, description, notes, sort_order, hierarchy)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			dimensionID, r.Reference, r.Locale, r.Description, r.Notes, r.SortOrder, r.Hierarchy)
		if err != nil {
			return fmt.Errorf("failed to persist dimension row %q/%s: %w", r.Reference, r.Locale, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dimension rows: %w", err)
	}
	return nil
}

// ListDimensionRows loads a dimension's lookup rows.
func (s *Store) ListDimensionRows(ctx context.Context, dimensionID uuid.UUID) ([]core.DimensionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, locale, description, notes, sort_order, hierarchy
		FROM dimension_rows WHERE dimension_id = $1
		ORDER BY sort_order, reference, locale`, dimensionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dimension rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.DimensionRow
	for rows.Next() {
		var r core.DimensionRow
		if err := rows.Scan(&r.Reference, &r.Locale, &r.Description, &r.Notes, &r.SortOrder, &r.Hierarchy); err != nil {
			return nil, fmt.Errorf("failed to scan dimension row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dimension rows: %w", err)
	}
	return out, nil
}

// UpsertMeasure stores the dataset's singular measure.
func (s *Store) UpsertMeasure(ctx context.Context, m *core.Measure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO measures (dataset_id, column_name, join_column, lookup_table_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dataset_id) DO UPDATE
		SET column_name = EXCLUDED.column_name,
		    join_column = EXCLUDED.join_column,
		    lookup_table_id = EXCLUDED.lookup_table_id`,
		m.DatasetID, m.ColumnName, m.JoinColumn, m.LookupTableID)
	if err != nil {
		return fmt.Errorf("failed to upsert measure: %w", err)
	}
	return nil
}

// GetMeasure loads the dataset's measure with its per-locale rows. Returns
// nil when no measure is declared.
func (s *Store) GetMeasure(ctx context.Context, datasetID uuid.UUID) (*core.Measure, error) {
	var m core.Measure
	var lookupID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, `
		SELECT dataset_id, column_name, join_column, lookup_table_id
		FROM measures WHERE dataset_id = $1`, datasetID).
		Scan(&m.DatasetID, &m.ColumnName, &m.JoinColumn, &lookupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measure: %w", err)
	}
	if lookupID.Valid {
		m.LookupTableID = &lookupID.UUID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, locale, description, notes, sort_order, format, decimals, measure_type, hierarchy
		FROM measure_rows WHERE dataset_id = $1
		ORDER BY sort_order, reference, locale`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list measure rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r core.MeasureRow
		if err := rows.Scan(&r.Reference, &r.Locale, &r.Description, &r.Notes, &r.SortOrder, &r.Format, &r.Decimals, &r.MeasureType, &r.Hierarchy); err != nil {
			return nil, fmt.Errorf("failed to scan measure row: %w", err)
		}
		m.Rows = append(m.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measure rows: %w", err)
	}
	return &m, nil
}

// ReplaceMeasureRows swaps the measure's per-locale rows.
func (s *Store) ReplaceMeasureRows(ctx context.Context, datasetID uuid.UUID, rows []core.MeasureRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM measure_rows WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to clear measure rows: %w", err)
	}

	for _, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO measure_rows (dataset_id, reference, locale, description, notes, sort_order, format, decimals, measure_type, hierarchy)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			datasetID, r.Reference, r.Locale, r.Description, r.Notes, r.SortOrder, r.Format, r.Decimals, r.MeasureType, r.Hierarchy)
		if err != nil {
			return fmt.Errorf("failed to persist measure row %q/%s: %w", r.Reference, r.Locale, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit measure rows: %w", err)
	}
	return nil
}

// CreateLookupTable persists a parsed lookup table shape.
func (s *Store) CreateLookupTable(ctx context.Context, lt *core.LookupTable) error {
	desc, err := json.Marshal(lt.DescriptionColumns)
	if err != nil {
		return fmt.Errorf("failed to encode description columns: %w", err)
	}
	notes, err := json.Marshal(lt.NotesColumns)
	if err != nil {
		return fmt.Errorf("failed to encode notes columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lookup_tables (id, shape, join_column, sort_column, format_column, decimal_column,
			measure_type_column, hierarchy_column, language_column, description_columns, notes_columns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lt.ID, string(lt.Shape), lt.JoinColumn, lt.SortColumn, lt.FormatColumn, lt.DecimalColumn,
		lt.MeasureTypeColumn, lt.HierarchyColumn, lt.LanguageColumn, desc, notes)
	if err != nil {
		return fmt.Errorf("failed to create lookup table: %w", err)
	}
	return nil
}

// GetLookupTable loads a lookup table shape by id.
func (s *Store) GetLookupTable(ctx context.Context, id uuid.UUID) (*core.LookupTable, error) {
	var lt core.LookupTable
	var shape string
	var desc, notes []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shape, join_column, sort_column, format_column, decimal_column,
			measure_type_column, hierarchy_column, language_column, description_columns, notes_columns
		FROM lookup_tables WHERE id = $1`, id).
		Scan(&lt.ID, &shape, &lt.JoinColumn, &lt.SortColumn, &lt.FormatColumn, &lt.DecimalColumn,
			&lt.MeasureTypeColumn, &lt.HierarchyColumn, &lt.LanguageColumn, &desc, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup table not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lookup table: %w", err)
	}
	lt.Shape = core.LookupShape(shape)

	if err := json.Unmarshal(desc, &lt.DescriptionColumns); err != nil {
		return nil, fmt.Errorf("failed to decode description columns: %w", err)
	}
	if err := json.Unmarshal(notes, &lt.NotesColumns); err != nil {
		return nil, fmt.Errorf("failed to decode notes columns: %w", err)
	}
	return &lt, nil
}
