package meta

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/statcube/pkg/core"
)

func TestGetLookupTable(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM lookup_tables WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "shape", "join_column", "sort_column", "format_column", "decimal_column",
			"measure_type_column", "hierarchy_column", "language_column", "description_columns", "notes_columns",
		}).AddRow(id.String(), "wide", "AreaCode", "Sort Order", "", "", "", "", "",
			[]byte(`{"en-GB":"Description","cy-GB":"Disgrifiad"}`), []byte(`{}`)))

	lt, err := store.GetLookupTable(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.LookupShapeWide, lt.Shape)
	assert.Equal(t, "AreaCode", lt.JoinColumn)
	assert.Equal(t, "Sort Order", lt.SortColumn)
	assert.Equal(t, map[string]string{"en-GB": "Description", "cy-GB": "Disgrifiad"}, lt.DescriptionColumns)
	assert.Empty(t, lt.NotesColumns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLookupTableMissing(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM lookup_tables WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetLookupTable(context.Background(), id)
	assert.ErrorContains(t, err, "lookup table not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDimensionRows(t *testing.T) {
	store, mock, _ := newMockStore(t)
	dimensionID := uuid.New()

	mock.ExpectQuery(`FROM dimension_rows WHERE dimension_id`).
		WithArgs(dimensionID).
		WillReturnRows(sqlmock.NewRows([]string{
			"reference", "locale", "description", "notes", "sort_order", "hierarchy",
		}).
			AddRow("W06000001", "en-GB", "Isle of Anglesey", "", 1, "").
			AddRow("W06000001", "cy-GB", "Ynys Môn", "", 1, ""))

	rows, err := store.ListDimensionRows(context.Background(), dimensionID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Isle of Anglesey", rows[0].Description)
	assert.Equal(t, "cy-GB", rows[1].Locale)
	assert.NoError(t, mock.ExpectationsWereMet())
}
