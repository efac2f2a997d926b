package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/statcube/pkg/core"
)

type fakeMeta struct {
	revision *core.Revision
	tables   []*core.DataTable

	savedColumns    []core.FactTableColumn
	savedDimensions []core.Dimension
	savedMeasure    *core.Measure
}

func (f *fakeMeta) FirstRevision(_ context.Context, _ uuid.UUID) (*core.Revision, error) {
	return f.revision, nil
}

func (f *fakeMeta) ListDataTables(_ context.Context, _ []uuid.UUID) ([]*core.DataTable, error) {
	return f.tables, nil
}

func (f *fakeMeta) ReplaceFactTableColumns(_ context.Context, _ uuid.UUID, cols []core.FactTableColumn) error {
	f.savedColumns = cols
	return nil
}

func (f *fakeMeta) ReplaceDimensions(_ context.Context, _ uuid.UUID, dims []core.Dimension) error {
	f.savedDimensions = dims
	return nil
}

func (f *fakeMeta) UpsertMeasure(_ context.Context, m *core.Measure) error {
	f.savedMeasure = m
	return nil
}

func physicalColumns() []core.ColumnDescriptor {
	return []core.ColumnDescriptor{
		{Name: "YearCode", Index: 0, DataType: "BIGINT"},
		{Name: "AreaCode", Index: 1, DataType: "VARCHAR"},
		{Name: "Data", Index: 2, DataType: "DOUBLE"},
		{Name: "RowRef", Index: 3, DataType: "BIGINT"},
		{Name: "Measure", Index: 4, DataType: "VARCHAR"},
		{Name: "NoteCodes", Index: 5, DataType: "VARCHAR"},
	}
}

func fullAssignment() []RoleAssignment {
	return []RoleAssignment{
		{ColumnName: "YearCode", Role: core.RoleDimension},
		{ColumnName: "AreaCode", Role: core.RoleDimension},
		{ColumnName: "Data", Role: core.RoleDataValues},
		{ColumnName: "RowRef", Role: core.RoleIgnore},
		{ColumnName: "Measure", Role: core.RoleMeasure},
		{ColumnName: "NoteCodes", Role: core.RoleNoteCodes},
	}
}

func TestValidate(t *testing.T) {
	roleMap, err := Validate(physicalColumns(), fullAssignment())
	require.NoError(t, err)
	assert.Equal(t, "Data", roleMap.DataValuesColumn())
	assert.Equal(t, "Measure", roleMap.MeasureColumn())
	assert.Equal(t, []string{"AreaCode", "YearCode"}, roleMap.DimensionColumns())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]RoleAssignment) []RoleAssignment
	}{
		{"unknown column", func(a []RoleAssignment) []RoleAssignment {
			return append(a, RoleAssignment{ColumnName: "Ghost", Role: core.RoleDimension})
		}},
		{"duplicate assignment", func(a []RoleAssignment) []RoleAssignment {
			return append(a, RoleAssignment{ColumnName: "YearCode", Role: core.RoleIgnore})
		}},
		{"uncovered column", func(a []RoleAssignment) []RoleAssignment {
			return a[:len(a)-1]
		}},
		{"no data values", func(a []RoleAssignment) []RoleAssignment {
			a[2].Role = core.RoleDimension
			return a
		}},
		{"two data values", func(a []RoleAssignment) []RoleAssignment {
			a[0].Role = core.RoleDataValues
			return a
		}},
		{"two measures", func(a []RoleAssignment) []RoleAssignment {
			a[0].Role = core.RoleMeasure
			return a
		}},
		{"two note codes", func(a []RoleAssignment) []RoleAssignment {
			a[0].Role = core.RoleNoteCodes
			return a
		}},
		{"unknown role", func(a []RoleAssignment) []RoleAssignment {
			a[0].Role = "weight"
			return a
		}},
		{"explicit unknown role", func(a []RoleAssignment) []RoleAssignment {
			a[0].Role = core.RoleUnknown
			return a
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(physicalColumns(), tt.mutate(fullAssignment()))
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			// A bad assignment is the publisher's mistake, not an internal
			// failure.
			assert.Equal(t, core.ErrBadRoleAssignment, verr.Kind)
			assert.Equal(t, 400, verr.StatusCode())
		})
	}
}

func TestClassifyPersists(t *testing.T) {
	datasetID := uuid.New()
	meta := &fakeMeta{
		revision: &core.Revision{ID: uuid.New(), DatasetID: datasetID, Index: 0},
		tables: []*core.DataTable{
			{ID: uuid.New(), Columns: physicalColumns()},
		},
	}
	cls, err := New(meta, nil)
	require.NoError(t, err)

	roleMap, err := cls.Classify(context.Background(), datasetID, fullAssignment())
	require.NoError(t, err)
	assert.Len(t, roleMap, 6)

	require.Len(t, meta.savedColumns, 6)
	assert.Equal(t, core.RoleDimension, meta.savedColumns[0].Role)
	assert.Equal(t, "YearCode", meta.savedColumns[0].Name)

	require.Len(t, meta.savedDimensions, 2)
	for _, d := range meta.savedDimensions {
		assert.Equal(t, core.DimensionRaw, d.Type)
	}

	require.NotNil(t, meta.savedMeasure)
	assert.Equal(t, "Measure", meta.savedMeasure.ColumnName)
	assert.Equal(t, "Measure", meta.savedMeasure.JoinColumn)
}

func TestClassifyLockedAfterPublish(t *testing.T) {
	now := time.Now()
	meta := &fakeMeta{
		revision: &core.Revision{ID: uuid.New(), PublishedAt: &now},
	}
	cls, err := New(meta, nil)
	require.NoError(t, err)

	_, err = cls.Classify(context.Background(), uuid.New(), fullAssignment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")
}

func TestClassifyNeedsIngestedTable(t *testing.T) {
	meta := &fakeMeta{revision: &core.Revision{ID: uuid.New()}}
	cls, err := New(meta, nil)
	require.NoError(t, err)

	_, err = cls.Classify(context.Background(), uuid.New(), fullAssignment())
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrNoDraftRevision, verr.Kind)
}
