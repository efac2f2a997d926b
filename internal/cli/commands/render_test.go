package commands

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/statcube/internal/classify"
	"github.com/leapstack-labs/statcube/pkg/core"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{
		"YearCode=dimension",
		"Data=data_values",
		"NoteCodes=note_codes",
		"RowRef=ignore",
	})
	require.NoError(t, err)
	assert.Equal(t, []classify.RoleAssignment{
		{ColumnName: "YearCode", Role: core.RoleDimension},
		{ColumnName: "Data", Role: core.RoleDataValues},
		{ColumnName: "NoteCodes", Role: core.RoleNoteCodes},
		{ColumnName: "RowRef", Role: core.RoleIgnore},
	}, got)
}

func TestParseAssignmentsRejects(t *testing.T) {
	for _, bad := range []string{"YearCode", "=dimension", "YearCode=", "YearCode=boss", "YearCode=unknown"} {
		_, err := parseAssignments([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSampleColumns(t *testing.T) {
	samples := []core.SampleRow{{
		"line_number": "12",
		"Zeta":        "z",
		"Alpha":       "a",
	}}
	assert.Equal(t, []string{"line_number", "Alpha", "Zeta"}, sampleColumns(samples))

	assert.Nil(t, sampleColumns(nil))
	assert.Equal(t, []string{"Alpha"}, sampleColumns([]core.SampleRow{{"Alpha": "a"}}))
}

func TestRenderLookupTable(t *testing.T) {
	lt := &core.LookupTable{
		ID:         uuid.New(),
		Shape:      core.LookupShapeWide,
		JoinColumn: "AreaCode",
		SortColumn: "Sort Order",
		DescriptionColumns: map[string]string{
			"en-GB": "Description",
			"cy-GB": "Disgrifiad",
		},
		NotesColumns: map[string]string{"": "Notes"},
	}

	var buf strings.Builder
	renderLookupTable(&buf, lt)
	out := buf.String()
	assert.Contains(t, out, "wide")
	assert.Contains(t, out, "AreaCode")
	assert.Contains(t, out, "description (cy-GB)")
	assert.Contains(t, out, "Disgrifiad")
	assert.Contains(t, out, "notes (all locales)")
}

func TestRenderDimensionRows(t *testing.T) {
	rows := []core.DimensionRow{
		{Reference: "W06000001", Locale: "en-GB", Description: "Isle of Anglesey", SortOrder: 1},
		{Reference: "W06000001", Locale: "cy-GB", Description: "Ynys Môn", SortOrder: 1},
	}

	var buf strings.Builder
	renderDimensionRows(&buf, rows)
	out := buf.String()
	assert.Contains(t, out, "Isle of Anglesey")
	assert.Contains(t, out, "Ynys Môn")
	assert.Contains(t, out, "REFERENCE")
}

func TestRenderValidationError(t *testing.T) {
	verr := core.NewValidationError(core.ErrBadNoteCodes, "NoteCodes", "unrecognised note code %q", "q").
		WithHeaders([]string{"YearCode", "NoteCodes"}).
		WithSamples([]core.SampleRow{{"line_number": "3", "NoteCodes": "q"}})

	var buf strings.Builder
	assert.True(t, renderValidationError(&buf, verr))
	out := buf.String()
	assert.Contains(t, out, "NoteCodes")
	assert.Contains(t, out, "line_number")
	assert.Contains(t, out, "offending rows (1 shown)")

	buf.Reset()
	assert.False(t, renderValidationError(&buf, errors.New("plain failure")))
	assert.Empty(t, buf.String())
}
