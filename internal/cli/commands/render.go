package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/statcube/pkg/core"
)

// newTable returns a writer with the house table style.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderBuildLog prints one build log in full, including its recorded
// script and error.
func renderBuildLog(w io.Writer, bl *core.BuildLog) {
	t := newTable(w)
	t.AppendRow(table.Row{"id", bl.ID})
	if bl.RevisionID != nil {
		t.AppendRow(table.Row{"revision", *bl.RevisionID})
	}
	t.AppendRow(table.Row{"type", bl.Type})
	t.AppendRow(table.Row{"status", bl.Status})
	t.AppendRow(table.Row{"started", bl.StartedAt.Format(time.RFC3339)})
	if bl.CompletedAt != nil {
		t.AppendRow(table.Row{"completed", bl.CompletedAt.Format(time.RFC3339)})
		t.AppendRow(table.Row{"elapsed", bl.Elapsed.Round(time.Millisecond)})
	}
	if bl.Error != "" {
		t.AppendRow(table.Row{"error", bl.Error})
	}
	t.Render()
	if bl.Script != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bl.Script)
	}
}

// renderValidationError expands a data-shape failure so the publisher can
// see the offending headers and rows, not just the message.
func renderValidationError(w io.Writer, err error) bool {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	fmt.Fprintf(w, "%s\n", verr.Error())
	if len(verr.Headers) > 0 {
		fmt.Fprintf(w, "headers: %v\n", verr.Headers)
	}
	if len(verr.Samples) > 0 {
		fmt.Fprintf(w, "offending rows (%d shown):\n", len(verr.Samples))
		t := newTable(w)
		cols := sampleColumns(verr.Samples)
		header := make(table.Row, len(cols))
		for i, c := range cols {
			header[i] = c
		}
		t.AppendHeader(header)
		for _, s := range verr.Samples {
			row := make(table.Row, len(cols))
			for i, c := range cols {
				row[i] = s[c]
			}
			t.AppendRow(row)
		}
		t.Render()
	}
	return true
}

// renderLookupTable prints a lookup table's detected shape and the special
// columns that were identified in it.
func renderLookupTable(w io.Writer, lt *core.LookupTable) {
	t := newTable(w)
	t.AppendRow(table.Row{"id", lt.ID})
	t.AppendRow(table.Row{"shape", lt.Shape})
	t.AppendRow(table.Row{"join column", lt.JoinColumn})
	if lt.SortColumn != "" {
		t.AppendRow(table.Row{"sort column", lt.SortColumn})
	}
	if lt.FormatColumn != "" {
		t.AppendRow(table.Row{"format column", lt.FormatColumn})
	}
	if lt.DecimalColumn != "" {
		t.AppendRow(table.Row{"decimal column", lt.DecimalColumn})
	}
	if lt.MeasureTypeColumn != "" {
		t.AppendRow(table.Row{"measure type column", lt.MeasureTypeColumn})
	}
	if lt.HierarchyColumn != "" {
		t.AppendRow(table.Row{"hierarchy column", lt.HierarchyColumn})
	}
	if lt.LanguageColumn != "" {
		t.AppendRow(table.Row{"language column", lt.LanguageColumn})
	}
	for _, loc := range sortedKeys(lt.DescriptionColumns) {
		t.AppendRow(table.Row{"description " + localeLabel(loc), lt.DescriptionColumns[loc]})
	}
	for _, loc := range sortedKeys(lt.NotesColumns) {
		t.AppendRow(table.Row{"notes " + localeLabel(loc), lt.NotesColumns[loc]})
	}
	t.Render()
}

// localeLabel names the locale a column serves; the long shape keys its
// single column by the empty string.
func localeLabel(loc string) string {
	if loc == "" {
		return "(all locales)"
	}
	return "(" + loc + ")"
}

// renderDimensionRows prints a dimension's extracted lookup rows.
func renderDimensionRows(w io.Writer, rows []core.DimensionRow) {
	t := newTable(w)
	t.AppendHeader(table.Row{"reference", "locale", "description", "notes", "sort", "hierarchy"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Reference, r.Locale, r.Description, r.Notes, r.SortOrder, r.Hierarchy})
	}
	t.Render()
}

// renderRows streams a result set into a table.
func renderRows(w io.Writer, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	t := newTable(w)
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		row := make(table.Row, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[i] = v
		}
		t.AppendRow(row)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.Render()
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sampleColumns derives a stable column order from the first sample row,
// putting the synthetic line_number first when present.
func sampleColumns(samples []core.SampleRow) []string {
	if len(samples) == 0 {
		return nil
	}
	var rest []string
	for k := range samples[0] {
		if k != "line_number" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	var cols []string
	if _, ok := samples[0]["line_number"]; ok {
		cols = append(cols, "line_number")
	}
	return append(cols, rest...)
}
