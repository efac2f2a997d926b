package meta

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// ReplaceFactTableColumns swaps the dataset's column role declarations in
// one transaction.
func (s *Store) ReplaceFactTableColumns(ctx context.Context, datasetID uuid.UUID, cols []core.FactTableColumn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fact_table_columns WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to clear fact table columns: %w", err)
	}

	for _, col := range cols {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fact_table_columns (dataset_id, name, col_index, role)
			VALUES ($1, $2, $3, $4)`,
			datasetID, col.Name, col.Index, string(col.Role))
		if err != nil {
			return fmt.Errorf("failed to persist role for %q: %w", col.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fact table columns: %w", err)
	}
	return nil
}

// GetRoleMap loads the dataset's validated column role mapping.
func (s *Store) GetRoleMap(ctx context.Context, datasetID uuid.UUID) (core.RoleMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, role FROM fact_table_columns WHERE dataset_id = $1`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role map: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rm := core.RoleMap{}
	for rows.Next() {
		var name, role string
		if err := rows.Scan(&name, &role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		rm[name] = core.ColumnRole(role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	if len(rm) == 0 {
		return nil, fmt.Errorf("dataset %s has no classified columns", datasetID)
	}
	return rm, nil
}
