// Package core defines the shared entities of the cube pipeline: datasets,
// revisions, data tables, column roles, lookup tables, build logs and query
// store entries. Persistence lives in internal/meta and internal/query; this
// package carries no database dependencies.
package core

import (
	"time"

	"github.com/google/uuid"
)

// FileType identifies the format of an uploaded table.
type FileType string

const (
	FileTypeCSV         FileType = "csv"
	FileTypeGzipCSV     FileType = "csv.gz"
	FileTypeJSON        FileType = "json"
	FileTypeGzipJSON    FileType = "json.gz"
	FileTypeParquet     FileType = "parquet"
	FileTypeSpreadsheet FileType = "xlsx"
	FileTypeUnknown     FileType = ""
)

// DataTableAction describes how a data table joins a dataset's lineage.
type DataTableAction string

const (
	// ActionAdd is the first table in a dataset's lineage.
	ActionAdd DataTableAction = "add"
	// ActionAddRevise amends facts present in earlier revisions;
	// its rows supersede earlier rows sharing the same composite key.
	ActionAddRevise DataTableAction = "add_revise"
)

// ColumnDescriptor describes one physical column of an uploaded table.
type ColumnDescriptor struct {
	// Name is the column name as it appears in the source header row.
	Name string
	// Index is the zero-based ordinal position in the source file.
	Index int
	// DataType is the type inferred by the analytical engine.
	DataType string
}

// DataTable is one uploaded file. It is owned by exactly one revision and
// immutable once validated.
type DataTable struct {
	ID         uuid.UUID
	RevisionID uuid.UUID
	Filename   string
	FileType   FileType
	MimeType   string
	// Hash is the SHA-256 of the raw uploaded bytes, hex encoded.
	Hash       string
	Action     DataTableAction
	Columns    []ColumnDescriptor
	UploadedAt time.Time
}

// Dataset is the publisher-facing container. It owns the fact table column
// declarations, dimensions and the measure.
type Dataset struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
}

// Revision is one published (or draft) version of a dataset. It owns data
// tables and build log entries.
type Revision struct {
	ID          uuid.UUID
	DatasetID   uuid.UUID
	Index       int
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Published reports whether the revision has been published.
func (r *Revision) Published() bool {
	return r.PublishedAt != nil
}

// DimensionType selects which extractor shape applies to a dimension.
type DimensionType string

const (
	DimensionRaw         DimensionType = "raw"
	DimensionText        DimensionType = "text"
	DimensionNumeric     DimensionType = "numeric"
	DimensionSymbol      DimensionType = "symbol"
	DimensionLookupTable DimensionType = "lookup_table"
	DimensionTimePeriod  DimensionType = "time_period"
	DimensionTimePoint   DimensionType = "time_point"
)

// Dimension is one classified dimension column.
type Dimension struct {
	ID            uuid.UUID
	DatasetID     uuid.UUID
	ColumnName    string
	Type          DimensionType
	LookupTableID *uuid.UUID
}

// MeasureRow is one per-locale description row of the measure table.
type MeasureRow struct {
	Reference   string
	Locale      string
	Description string
	Notes       string
	SortOrder   int
	Format      string
	Decimals    int
	MeasureType string
	Hierarchy   string
}

// Measure is the singular per-dataset measure column with its lookup.
type Measure struct {
	DatasetID     uuid.UUID
	ColumnName    string
	JoinColumn    string
	LookupTableID *uuid.UUID
	Rows          []MeasureRow
}

// DimensionRow is one per-locale lookup row attached to a dimension.
type DimensionRow struct {
	Reference   string
	Locale      string
	Description string
	Notes       string
	SortOrder   int
	Hierarchy   string
}

// LookupShape distinguishes the two supported lookup table layouts.
type LookupShape string

const (
	// LookupShapeWide has one description/notes column pair per locale and
	// no language column.
	LookupShapeWide LookupShape = "wide"
	// LookupShapeLong has a language column and a single description/notes
	// pair, one row per reference per locale.
	LookupShapeLong LookupShape = "long"
)

// LookupTable is an uploaded reference table's parsed shape.
type LookupTable struct {
	ID         uuid.UUID
	Shape      LookupShape
	JoinColumn string
	// SortColumn, FormatColumn, DecimalColumn, MeasureTypeColumn and
	// HierarchyColumn name the identified special columns; empty when absent.
	SortColumn        string
	FormatColumn      string
	DecimalColumn     string
	MeasureTypeColumn string
	HierarchyColumn   string
	// LanguageColumn is set only for the long shape.
	LanguageColumn string
	// DescriptionColumns and NotesColumns map locale tag to column name.
	// For the long shape, both hold a single entry keyed by the empty string.
	DescriptionColumns map[string]string
	NotesColumns       map[string]string
}
