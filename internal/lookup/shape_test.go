package lookup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/statcube/internal/locale"
	"github.com/leapstack-labs/statcube/pkg/core"
)

func testRegistry(t *testing.T) *locale.Registry {
	t.Helper()
	reg, err := locale.NewRegistry([]string{"en-GB", "cy-GB"}, "")
	require.NoError(t, err)
	return reg
}

func descriptors(names ...string) []core.ColumnDescriptor {
	cols := make([]core.ColumnDescriptor, len(names))
	for i, n := range names {
		cols[i] = core.ColumnDescriptor{Name: n, Index: i, DataType: "VARCHAR"}
	}
	return cols
}

func TestDetectShapeWide(t *testing.T) {
	cols := descriptors("AreaCode", "Description", "Description_cy", "Notes", "Notes_cy", "SortOrder", "Hierarchy")
	lt, err := DetectShape(cols, "en-GB", testRegistry(t), nil)
	require.NoError(t, err)

	assert.Equal(t, core.LookupShapeWide, lt.Shape)
	assert.Equal(t, "AreaCode", lt.JoinColumn)
	assert.Equal(t, "SortOrder", lt.SortColumn)
	assert.Equal(t, "Hierarchy", lt.HierarchyColumn)
	assert.Empty(t, lt.LanguageColumn)

	// The bare description pair counts for the header locale.
	assert.Equal(t, "Description", lt.DescriptionColumns["en-GB"])
	assert.Equal(t, "Description_cy", lt.DescriptionColumns["cy-GB"])
	assert.Equal(t, "Notes", lt.NotesColumns["en-GB"])
	assert.Equal(t, "Notes_cy", lt.NotesColumns["cy-GB"])
}

func TestDetectShapeWideWelshHeaders(t *testing.T) {
	cols := descriptors("Cod", "Disgrifiad", "Disgrifiad_en", "Trefn")
	lt, err := DetectShape(cols, "cy-GB", testRegistry(t), nil)
	require.NoError(t, err)

	assert.Equal(t, core.LookupShapeWide, lt.Shape)
	assert.Equal(t, "Cod", lt.JoinColumn)
	assert.Equal(t, "Disgrifiad", lt.DescriptionColumns["cy-GB"])
	assert.Equal(t, "Disgrifiad_en", lt.DescriptionColumns["en-GB"])
	assert.Equal(t, "Trefn", lt.SortColumn)
}

func TestDetectShapeLong(t *testing.T) {
	cols := descriptors("MeasureCode", "Language", "Description", "Notes", "Format", "Decimals")
	lt, err := DetectShape(cols, "en-GB", testRegistry(t), nil)
	require.NoError(t, err)

	assert.Equal(t, core.LookupShapeLong, lt.Shape)
	assert.Equal(t, "MeasureCode", lt.JoinColumn)
	assert.Equal(t, "Language", lt.LanguageColumn)
	assert.Equal(t, "Format", lt.FormatColumn)
	assert.Equal(t, "Decimals", lt.DecimalColumn)
	assert.Equal(t, map[string]string{"": "Description"}, lt.DescriptionColumns)
	assert.Equal(t, map[string]string{"": "Notes"}, lt.NotesColumns)
}

func TestDetectShapeMissingLanguages(t *testing.T) {
	cols := descriptors("AreaCode", "Description")
	_, err := DetectShape(cols, "en-GB", testRegistry(t), nil)

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrMissingLanguages, verr.Kind)
	assert.Equal(t, []string{"AreaCode", "Description"}, verr.Headers)
}

func TestDetectShapeLongNeedsDescription(t *testing.T) {
	cols := descriptors("Code", "Language", "SortOrder")
	_, err := DetectShape(cols, "en-GB", testRegistry(t), nil)

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrMissingLanguages, verr.Kind)
}

func TestDetectShapeNoJoinColumn(t *testing.T) {
	cols := descriptors("Description", "Description_cy")
	_, err := DetectShape(cols, "en-GB", testRegistry(t), nil)

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrLookupNoJoinColumn, verr.Kind)
}

func TestDetectShapeJoinColumnOverride(t *testing.T) {
	cols := descriptors("RowID", "AreaCode", "Description", "Description_cy")
	lt, err := DetectShape(cols, "en-GB", testRegistry(t), &Override{JoinColumn: "AreaCode"})
	require.NoError(t, err)
	assert.Equal(t, "AreaCode", lt.JoinColumn)

	_, err = DetectShape(cols, "en-GB", testRegistry(t), &Override{JoinColumn: "Ghost"})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrLookupNoJoinColumn, verr.Kind)
}

func TestDetectShapeColumnOverrides(t *testing.T) {
	cols := descriptors("AreaCode", "NameEnglish", "NameWelsh")
	ov := &Override{
		DescriptionColumns: map[string]string{"en-GB": "NameEnglish", "cy-GB": "NameWelsh"},
	}
	lt, err := DetectShape(cols, "en-GB", testRegistry(t), ov)
	require.NoError(t, err)

	assert.Equal(t, "AreaCode", lt.JoinColumn)
	assert.Equal(t, "NameEnglish", lt.DescriptionColumns["en-GB"])
	assert.Equal(t, "NameWelsh", lt.DescriptionColumns["cy-GB"])
}
