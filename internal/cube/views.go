package cube

// views.go - description tables, per-locale core views and the filter table

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/statcube/pkg/core"
)

// pgIdent double-quotes an identifier for the relational store's dialect.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func pgLit(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// descriptionTableSQL copies a dimension's lookup rows into the scratch
// schema so the published cube is self-contained.
func descriptionTableSQL(schema string, dim *core.Dimension) string {
	return fmt.Sprintf(
		`CREATE TABLE %s.%s AS
SELECT reference, locale, description, notes, sort_order, hierarchy
FROM dimension_rows WHERE dimension_id = %s`,
		pgIdent(schema), DimTableName(dim.ColumnName), pgLit(dim.ID.String()))
}

// measureTableSQL copies the measure's lookup rows into the scratch schema.
func measureTableSQL(schema string, m *core.Measure) string {
	return fmt.Sprintf(
		`CREATE TABLE %s.%s AS
SELECT reference, locale, description, notes, sort_order, format, decimals, measure_type, hierarchy
FROM measure_rows WHERE dataset_id = %s`,
		pgIdent(schema), MeasureTableName, pgLit(m.DatasetID.String()))
}

// coreViewSQL builds one locale's fully joined view over the fact table:
// every raw code column plus a display text column per described dimension
// and measure.
func coreViewSQL(schema, localeTag string, cols []string, roleMap core.RoleMap, described map[string]bool, hasMeasureTable bool) string {
	sch := pgIdent(schema)

	var selects []string
	var joins []string
	for _, col := range cols {
		raw := "f." + pgIdent(col)
		selects = append(selects, raw+" AS "+pgIdent(col))

		role := roleMap[col]
		switch {
		case role == core.RoleDimension && described[col]:
			alias := "d_" + sanitize(col)
			selects = append(selects,
				fmt.Sprintf("coalesce(%s.description, %s::text) AS %s", alias, raw, pgIdent(DescriptionColumn(col))))
			joins = append(joins, fmt.Sprintf(
				"LEFT JOIN %s.%s %s ON %s.reference = %s::text AND %s.locale = %s",
				sch, DimTableName(col), alias, alias, raw, alias, pgLit(localeTag)))
		case role == core.RoleMeasure && hasMeasureTable:
			selects = append(selects,
				fmt.Sprintf("coalesce(m.description, %s::text) AS %s", raw, pgIdent(DescriptionColumn(col))),
				"m.format AS "+pgIdent(DescriptionColumn(col)+"_format"),
				"m.decimals AS "+pgIdent(DescriptionColumn(col)+"_decimals"))
			joins = append(joins, fmt.Sprintf(
				"LEFT JOIN %s.%s m ON m.reference = %s::text AND m.locale = %s",
				sch, MeasureTableName, raw, pgLit(localeTag)))
		}
	}

	return fmt.Sprintf("CREATE VIEW %s.%s AS\nSELECT %s\nFROM %s.%s f\n%s",
		sch, CoreViewName(localeTag),
		strings.Join(selects, ",\n    "),
		sch, FactTableName,
		strings.Join(joins, "\n"))
}

// filterTableSQL creates and fills the (column, value, locale, label)
// enumeration UI filters are built from. Values without a lookup row fall
// back to the raw code as their label.
func filterTableSQL(schema string, locales []string, cols []string, roleMap core.RoleMap, described map[string]bool, hasMeasureTable bool) []string {
	sch := pgIdent(schema)
	stmts := []string{fmt.Sprintf(
		"CREATE TABLE %s.%s (column_name text NOT NULL, value text NOT NULL, locale text NOT NULL, label text NOT NULL)",
		sch, FilterTableName)}

	for _, col := range cols {
		role := roleMap[col]
		if role != core.RoleDimension && role != core.RoleMeasure {
			continue
		}

		lookupTable := ""
		switch {
		case role == core.RoleDimension && described[col]:
			lookupTable = DimTableName(col)
		case role == core.RoleMeasure && hasMeasureTable:
			lookupTable = MeasureTableName
		}

		for _, tag := range locales {
			if lookupTable == "" {
				stmts = append(stmts, fmt.Sprintf(
					`INSERT INTO %s.%s SELECT %s, v.value, %s, v.value
FROM (SELECT DISTINCT %s::text AS value FROM %s.%s) v`,
					sch, FilterTableName, pgLit(col), pgLit(tag),
					pgIdent(col), sch, FactTableName))
				continue
			}
			stmts = append(stmts, fmt.Sprintf(
				`INSERT INTO %s.%s SELECT %s, v.value, %s, coalesce(d.description, v.value)
FROM (SELECT DISTINCT %s::text AS value FROM %s.%s) v
LEFT JOIN %s.%s d ON d.reference = v.value AND d.locale = %s`,
				sch, FilterTableName, pgLit(col), pgLit(tag),
				pgIdent(col), sch, FactTableName,
				sch, lookupTable, pgLit(tag)))
		}
	}
	return stmts
}
