package cube

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/pkg/core"
)

func buildRoleMap() core.RoleMap {
	return core.RoleMap{
		"YearCode":  core.RoleDimension,
		"AreaCode":  core.RoleDimension,
		"Data":      core.RoleDataValues,
		"Measure":   core.RoleMeasure,
		"NoteCodes": core.RoleNoteCodes,
		"RowRef":    core.RoleIgnore,
	}
}

func buildTables() []*core.DataTable {
	cols := []core.ColumnDescriptor{
		{Name: "YearCode", Index: 0},
		{Name: "AreaCode", Index: 1},
		{Name: "Data", Index: 2},
		{Name: "RowRef", Index: 3},
		{Name: "Measure", Index: 4},
		{Name: "NoteCodes", Index: 5},
	}
	return []*core.DataTable{
		{ID: uuid.New(), Action: core.ActionAdd, Columns: cols},
		{ID: uuid.New(), Action: core.ActionAddRevise, Columns: cols},
	}
}

func TestFactColumns(t *testing.T) {
	cols, err := factColumns(buildTables(), buildRoleMap())
	require.NoError(t, err)
	// Ordinal order with the ignored column dropped.
	assert.Equal(t, []string{"YearCode", "AreaCode", "Data", "Measure", "NoteCodes"}, cols)
}

func TestFactColumnsRejectsUnassigned(t *testing.T) {
	roleMap := buildRoleMap()
	delete(roleMap, "RowRef")

	_, err := factColumns(buildTables(), roleMap)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrUnknownSourcesStillPresent, verr.Kind)
}

func TestFactColumnsRejectsUnknownRole(t *testing.T) {
	roleMap := buildRoleMap()
	roleMap["RowRef"] = core.RoleUnknown

	_, err := factColumns(buildTables(), roleMap)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrUnknownSourcesStillPresent, verr.Kind)
}

func TestFactColumnsNoTables(t *testing.T) {
	_, err := factColumns(nil, buildRoleMap())
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrNoDraftRevision, verr.Kind)
}

func TestConcatSQL(t *testing.T) {
	tables := buildTables()
	roleMap := buildRoleMap()
	cols, err := factColumns(tables, roleMap)
	require.NoError(t, err)

	sql := concatSQL(tables, cols, roleMap)

	// One branch per ancestor table, oldest first, each tagged with its
	// upload position and action.
	assert.Contains(t, sql, "0 AS src_ord, 'add' AS src_action")
	assert.Contains(t, sql, "1 AS src_ord, 'add_revise' AS src_action")
	assert.Contains(t, sql, engine.DataTableRef(tables[0].ID))
	assert.Contains(t, sql, engine.DataTableRef(tables[1].ID))
	assert.Equal(t, 1, strings.Count(sql, "UNION ALL"))

	// Later uploads win on key collision.
	assert.Contains(t, sql, `max(src_ord) OVER (PARTITION BY "AreaCode", "YearCode", "Measure") AS last_ord`)
	assert.Contains(t, sql, "WHERE src_ord = last_ord")
	assert.Contains(t, sql, "src_ord > first_ord AND src_action = 'add_revise'")
	assert.Contains(t, sql, "was_revised")
}

func TestConcatSQLKeepsSameTableDuplicates(t *testing.T) {
	// Survivors are chosen by table position, not by a per-row rank: every
	// row of the winning table keeps src_ord = last_ord, so two rows sharing
	// a key within one upload both reach the staging table, where the
	// uniqueness check rejects them. A rank-based dedupe would silently drop
	// one of them before the check could fire.
	tables := buildTables()
	roleMap := buildRoleMap()
	cols, err := factColumns(tables, roleMap)
	require.NoError(t, err)

	sql := concatSQL(tables, cols, roleMap)
	assert.NotContains(t, sql, "row_number")
	assert.NotContains(t, sql, "rn = 1")
	assert.Contains(t, sql, "WHERE src_ord = last_ord")
}

func TestStripNoteCodesSQL(t *testing.T) {
	sql := stripNoteCodesSQL("NoteCodes")
	assert.Contains(t, sql, "WHERE was_revised")
	assert.Contains(t, sql, "'r'")
	assert.Contains(t, sql, "'p'")
	assert.Contains(t, sql, `"NoteCodes"`)
}

func TestWriteScratchSQL(t *testing.T) {
	sql := writeScratchSQL("metastore", "build_x")
	assert.Equal(t, `CREATE TABLE "metastore"."build_x".fact_table AS SELECT * FROM fact_build`, sql)
}
