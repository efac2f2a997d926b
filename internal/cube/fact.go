package cube

// fact.go - fact table concatenation and note code maintenance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// stagingTable is the engine-local temp table the fact table is assembled
// in before it is written to the scratch schema.
const stagingTable = "fact_build"

// factColumns returns the physical columns that survive into the fact
// table, in source ordinal order. Ignored columns are dropped.
func factColumns(tables []*core.DataTable, roleMap core.RoleMap) ([]string, error) {
	if len(tables) == 0 {
		return nil, core.NewValidationError(core.ErrNoDraftRevision, "", "no data tables to build from")
	}

	cols := make([]core.ColumnDescriptor, len(tables[0].Columns))
	copy(cols, tables[0].Columns)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Index < cols[j].Index })

	var out []string
	for _, c := range cols {
		role, ok := roleMap[c.Name]
		if !ok {
			return nil, core.NewValidationError(core.ErrUnknownSourcesStillPresent, c.Name,
				"column %q has no role assigned", c.Name)
		}
		if role == core.RoleUnknown {
			return nil, core.NewValidationError(core.ErrUnknownSourcesStillPresent, c.Name,
				"column %q still has role unknown", c.Name)
		}
		if role == core.RoleIgnore {
			continue
		}
		out = append(out, c.Name)
	}
	return out, nil
}

// concatSQL builds the statement that merges every ancestor data table
// (oldest upload first) into the staging table. For each composite key the
// latest table containing it wins, and a revised marker column records
// which surviving rows replaced an earlier table's row. Duplicate keys
// within one table all survive the merge; the post-merge structural checks
// reject them.
func concatSQL(tables []*core.DataTable, cols []string, roleMap core.RoleMap) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = engine.QuoteIdent(c)
	}
	colList := strings.Join(quoted, ", ")

	var keyQuoted []string
	for _, c := range roleMap.KeyColumns() {
		keyQuoted = append(keyQuoted, engine.QuoteIdent(c))
	}
	keyList := strings.Join(keyQuoted, ", ")

	parts := make([]string, len(tables))
	for i, dt := range tables {
		parts[i] = fmt.Sprintf("SELECT %s, %d AS src_ord, %s AS src_action FROM %s",
			colList, i, engine.QuoteLiteral(string(dt.Action)), engine.DataTableRef(dt.ID))
	}

	return fmt.Sprintf(
		`CREATE OR REPLACE TEMP TABLE %s AS
SELECT %s, (src_ord > first_ord AND src_action = %s) AS was_revised
FROM (
    SELECT *,
        max(src_ord) OVER (PARTITION BY %s) AS last_ord,
        min(src_ord) OVER (PARTITION BY %s) AS first_ord
    FROM (%s)
)
WHERE src_ord = last_ord`,
		stagingTable, colList, engine.QuoteLiteral(string(core.ActionAddRevise)),
		keyList, keyList, strings.Join(parts, " UNION ALL "))
}

// stripNoteCodesSQL rewrites the note codes of revised rows: the
// provisional marker "p" inherited from the superseded row is dropped and
// the revised marker "r" is appended.
func stripNoteCodesSQL(noteCol string) string {
	nc := engine.QuoteIdent(noteCol)
	cleaned := fmt.Sprintf(
		`array_to_string(list_distinct(list_append(list_filter(string_split(%s::VARCHAR, ','), c -> trim(c) <> '' AND lower(trim(c)) <> 'p'), 'r')), ',')`,
		nc)
	return fmt.Sprintf(
		`UPDATE %s SET %s = CASE WHEN %s IS NULL OR trim(%s::VARCHAR) = '' THEN 'r' ELSE %s END WHERE was_revised`,
		stagingTable, nc, nc, nc, cleaned)
}

// dropMarkerSQL removes the merge bookkeeping column once note maintenance
// is done.
func dropMarkerSQL() string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN was_revised", stagingTable)
}

// writeScratchSQL copies the staged fact table into the attached scratch
// schema.
func writeScratchSQL(attachAlias, scratchSchema string) string {
	return fmt.Sprintf("CREATE TABLE %s.%s.%s AS SELECT * FROM %s",
		engine.QuoteIdent(attachAlias), engine.QuoteIdent(scratchSchema), FactTableName, stagingTable)
}
