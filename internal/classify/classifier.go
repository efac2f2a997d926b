// Package classify validates and applies a publisher's column-to-role
// assignment for a dataset's fact table.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// RoleAssignment is one requested column role.
type RoleAssignment struct {
	ColumnName string
	Role       core.ColumnRole
}

// MetaStore is the slice of the metadata store the classifier needs.
type MetaStore interface {
	FirstRevision(ctx context.Context, datasetID uuid.UUID) (*core.Revision, error)
	ListDataTables(ctx context.Context, revisionIDs []uuid.UUID) ([]*core.DataTable, error)
	ReplaceFactTableColumns(ctx context.Context, datasetID uuid.UUID, cols []core.FactTableColumn) error
	ReplaceDimensions(ctx context.Context, datasetID uuid.UUID, dims []core.Dimension) error
	UpsertMeasure(ctx context.Context, m *core.Measure) error
}

// Classifier applies role assignments.
type Classifier struct {
	meta MetaStore
	log  *slog.Logger
}

// New builds a Classifier.
func New(meta MetaStore, logger *slog.Logger) (*Classifier, error) {
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{meta: meta, log: logger}, nil
}

// Classify validates the assignment against the dataset's first data table
// and persists the resulting role map, dimensions and measure. It is only
// accepted while the dataset's first revision is unpublished.
func (c *Classifier) Classify(ctx context.Context, datasetID uuid.UUID, assignments []RoleAssignment) (core.RoleMap, error) {
	first, err := c.meta.FirstRevision(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if first.Published() {
		return nil, fmt.Errorf("dataset %s: column roles are immutable once the first revision is published", datasetID)
	}

	tables, err := c.meta.ListDataTables(ctx, []uuid.UUID{first.ID})
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, core.NewValidationError(core.ErrNoDraftRevision, "", "revision %s has no ingested data table", first.ID)
	}
	physical := tables[0].Columns

	roleMap, err := Validate(physical, assignments)
	if err != nil {
		return nil, err
	}

	if err := c.persist(ctx, datasetID, physical, roleMap); err != nil {
		return nil, err
	}

	c.log.Info("columns classified", "dataset", datasetID,
		"dimensions", len(roleMap.DimensionColumns()),
		"measure", roleMap.MeasureColumn(),
		"note_codes", roleMap.NoteCodesColumn())
	return roleMap, nil
}

// Validate checks the assignment covers every physical column exactly once
// with a legal role multiset. It is exported for reuse by the cube builder's
// safety net.
func Validate(physical []core.ColumnDescriptor, assignments []RoleAssignment) (core.RoleMap, error) {
	known := make(map[string]bool, len(physical))
	for _, col := range physical {
		known[col.Name] = true
	}

	roleMap := core.RoleMap{}
	counts := map[core.ColumnRole]int{}
	for _, a := range assignments {
		if !known[a.ColumnName] {
			return nil, core.NewValidationError(core.ErrBadRoleAssignment, a.ColumnName,
				"column %q does not exist in the fact table", a.ColumnName)
		}
		if _, dup := roleMap[a.ColumnName]; dup {
			return nil, core.NewValidationError(core.ErrBadRoleAssignment, a.ColumnName,
				"column %q is assigned more than once", a.ColumnName)
		}
		if !core.ValidRole(a.Role) || a.Role == core.RoleUnknown {
			return nil, core.NewValidationError(core.ErrBadRoleAssignment, a.ColumnName,
				"column %q has invalid role %q", a.ColumnName, a.Role)
		}
		roleMap[a.ColumnName] = a.Role
		counts[a.Role]++
	}

	for _, col := range physical {
		if _, ok := roleMap[col.Name]; !ok {
			return nil, core.NewValidationError(core.ErrBadRoleAssignment, col.Name,
				"column %q has no role assigned", col.Name)
		}
	}

	if counts[core.RoleDataValues] != 1 {
		return nil, core.NewValidationError(core.ErrBadRoleAssignment, "",
			"exactly one data_values column is required, got %d", counts[core.RoleDataValues])
	}
	if counts[core.RoleMeasure] > 1 {
		return nil, core.NewValidationError(core.ErrBadRoleAssignment, "",
			"at most one measure column is allowed, got %d", counts[core.RoleMeasure])
	}
	if counts[core.RoleNoteCodes] > 1 {
		return nil, core.NewValidationError(core.ErrBadRoleAssignment, "",
			"at most one note_codes column is allowed, got %d", counts[core.RoleNoteCodes])
	}
	return roleMap, nil
}

func (c *Classifier) persist(ctx context.Context, datasetID uuid.UUID, physical []core.ColumnDescriptor, roleMap core.RoleMap) error {
	cols := make([]core.FactTableColumn, 0, len(physical))
	for _, pc := range physical {
		cols = append(cols, core.FactTableColumn{
			DatasetID: datasetID,
			Name:      pc.Name,
			Index:     pc.Index,
			Role:      roleMap[pc.Name],
		})
	}
	if err := c.meta.ReplaceFactTableColumns(ctx, datasetID, cols); err != nil {
		return err
	}

	var dims []core.Dimension
	for _, name := range roleMap.DimensionColumns() {
		dims = append(dims, core.Dimension{
			DatasetID:  datasetID,
			ColumnName: name,
			Type:       core.DimensionRaw,
		})
	}
	if err := c.meta.ReplaceDimensions(ctx, datasetID, dims); err != nil {
		return err
	}

	if mc := roleMap.MeasureColumn(); mc != "" {
		measure := &core.Measure{
			DatasetID:  datasetID,
			ColumnName: mc,
			JoinColumn: mc,
		}
		if err := c.meta.UpsertMeasure(ctx, measure); err != nil {
			return err
		}
	}
	return nil
}
