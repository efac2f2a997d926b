package engine

// names.go - canonical schema and table naming inside the engine

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// SchemaDataTables holds raw ingested tables keyed by data table id.
	SchemaDataTables = "data_tables"
	// SchemaLookupTables holds raw lookup tables keyed by lookup table id.
	SchemaLookupTables = "lookup_tables"
)

// ident turns a UUID into an identifier-safe suffix.
func ident(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

// DataTableName is the durable table name for an ingested data table.
func DataTableName(id uuid.UUID) string {
	return "dt_" + ident(id)
}

// DataTableRef is the schema-qualified reference to an ingested table.
func DataTableRef(id uuid.UUID) string {
	return SchemaDataTables + "." + DataTableName(id)
}

// LookupTableName is the durable table name for an uploaded lookup table.
func LookupTableName(id uuid.UUID) string {
	return "lt_" + ident(id)
}

// LookupTableRef is the schema-qualified reference to a lookup table.
func LookupTableRef(id uuid.UUID) string {
	return SchemaLookupTables + "." + LookupTableName(id)
}

// ScratchSchemaName is the relational-store schema one build writes into.
func ScratchSchemaName(buildID uuid.UUID) string {
	return "build_" + ident(buildID)
}

// CubeSchemaName is the canonical published schema for a revision.
func CubeSchemaName(revisionID uuid.UUID) string {
	return "cube_" + ident(revisionID)
}
