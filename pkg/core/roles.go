package core

import (
	"sort"

	"github.com/google/uuid"
)

// ColumnRole classifies a physical fact table column.
type ColumnRole string

const (
	RoleDataValues ColumnRole = "data_values"
	RoleMeasure    ColumnRole = "measure"
	RoleNoteCodes  ColumnRole = "note_codes"
	RoleDimension  ColumnRole = "dimension"
	RoleIgnore     ColumnRole = "ignore"
	RoleUnknown    ColumnRole = "unknown"
)

// ValidRole reports whether r is one of the declared roles.
func ValidRole(r ColumnRole) bool {
	switch r {
	case RoleDataValues, RoleMeasure, RoleNoteCodes, RoleDimension, RoleIgnore, RoleUnknown:
		return true
	}
	return false
}

// FactTableColumn is the dataset-scoped declaration of one physical column's
// role. Assigned once while the first revision is unpublished; immutable
// afterward.
type FactTableColumn struct {
	DatasetID uuid.UUID
	Name      string
	Index     int
	Role      ColumnRole
}

// RoleMap is the validated column name to role mapping consumed by the fact
// table validator and the cube builder. Construct through classify.Classify
// or NewRoleMap; a zero RoleMap is not usable.
type RoleMap map[string]ColumnRole

// DataValuesColumn returns the single data values column.
func (m RoleMap) DataValuesColumn() string {
	return m.single(RoleDataValues)
}

// MeasureColumn returns the measure column, or "" when none is declared.
func (m RoleMap) MeasureColumn() string {
	return m.single(RoleMeasure)
}

// NoteCodesColumn returns the note codes column, or "" when none is declared.
func (m RoleMap) NoteCodesColumn() string {
	return m.single(RoleNoteCodes)
}

// DimensionColumns returns the dimension columns in map iteration-stable
// order: sorted by name.
func (m RoleMap) DimensionColumns() []string {
	return m.all(RoleDimension)
}

// KeyColumns returns the candidate composite primary key: every dimension
// column plus the measure column, when present.
func (m RoleMap) KeyColumns() []string {
	key := m.DimensionColumns()
	if mc := m.MeasureColumn(); mc != "" {
		key = append(key, mc)
	}
	return key
}

func (m RoleMap) single(role ColumnRole) string {
	for name, r := range m {
		if r == role {
			return name
		}
	}
	return ""
}

func (m RoleMap) all(role ColumnRole) []string {
	var cols []string
	for name, r := range m {
		if r == role {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)
	return cols
}
