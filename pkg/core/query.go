package core

import (
	"time"

	"github.com/google/uuid"
)

// FilterOption restricts one column to a set of values. Column and Values
// may be given in either direction (raw fact column / dimension name,
// reference code / display text); the query store resolves them through the
// cube's filter table.
type FilterOption struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// SortOption orders output by one column.
type SortOption struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
}

// QueryOptions is the consumer-facing request shape fingerprinted by the
// query store.
type QueryOptions struct {
	Filters []FilterOption `json:"filters,omitempty"`
	Sort    []SortOption   `json:"sort,omitempty"`
	// PivotRows and PivotColumns name the axes for pivoted output.
	PivotRows    []string `json:"pivot_rows,omitempty"`
	PivotColumns []string `json:"pivot_columns,omitempty"`
	// DisplayColumnNames selects human-readable column names over raw fact
	// column names.
	DisplayColumnNames bool `json:"display_column_names,omitempty"`
	// DisplayValues selects human-readable values over reference codes.
	DisplayValues bool `json:"display_values,omitempty"`
	// FormatValues applies the measure's display format to data values.
	FormatValues bool `json:"format_values,omitempty"`
}

// QueryEntry is one cached generated query. ID is a short random token, not
// derived from the fingerprint.
type QueryEntry struct {
	ID         string
	DatasetID  uuid.UUID
	RevisionID uuid.UUID
	// Fingerprint is the stable hash of (dataset, revision, options).
	Fingerprint string
	// Options is kept so the entry can be regenerated in place after its
	// revision's cube is rebuilt.
	Options QueryOptions
	// SQLByLocale maps locale tag to the generated SELECT.
	SQLByLocale map[string]string
	TotalRows   int64
	// ColumnMapping maps raw fact column names to dimension display names.
	ColumnMapping map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
