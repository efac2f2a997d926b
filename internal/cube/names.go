package cube

import (
	"strings"
)

// Object names inside a cube schema. The schema itself is named by
// engine.ScratchSchemaName during a build and engine.CubeSchemaName once
// published.
const (
	FactTableName    = "fact_table"
	MeasureTableName = "measure_table"
	FilterTableName  = "filter_table"
)

// DimTableName returns the description table name for a dimension column.
func DimTableName(column string) string {
	return "dim_" + sanitize(column)
}

// CoreViewName returns the per-locale core view name, e.g. core_en_gb.
func CoreViewName(localeTag string) string {
	return "core_" + sanitize(localeTag)
}

// DescriptionColumn returns the display column a core view exposes next to
// a raw code column.
func DescriptionColumn(column string) string {
	return column + "_desc"
}

// sanitize lowers a name and folds anything outside [a-z0-9] to an
// underscore so it is safe as an unquoted identifier fragment.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
