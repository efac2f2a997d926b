package engine

// metadata.go - table introspection over DuckDB's information_schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/statcube/pkg/core"
)

// TableColumns returns the column descriptors of schema.table in ordinal
// order. Index is zero-based to match source file positions.
func (s *Session) TableColumns(ctx context.Context, table string) ([]core.ColumnDescriptor, error) {
	schema := "main"
	name := table
	if parts := strings.Split(table, "."); len(parts) == 2 {
		schema = parts[0]
		name = parts[1]
	}

	query := `
		SELECT column_name, data_type, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := s.Query(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []core.ColumnDescriptor
	for rows.Next() {
		var (
			col core.ColumnDescriptor
			pos int
		)
		if err := rows.Scan(&col.Name, &col.DataType, &pos); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Index = pos - 1
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

// TableExists reports whether schema.table exists.
func (s *Session) TableExists(ctx context.Context, table string) (bool, error) {
	_, err := s.TableColumns(ctx, table)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RowCount returns the number of rows in schema.table.
func (s *Session) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualify(table)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// qualify quotes each dotted part of a table reference.
func qualify(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}
