package meta

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDataset(t *testing.T) {
	store, mock, clock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO datasets`).
		WithArgs(sqlmock.AnyArg(), "School census", clock.Now().UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ds, err := store.CreateDataset(context.Background(), "School census")
	require.NoError(t, err)
	assert.Equal(t, "School census", ds.Title)
	assert.NotEqual(t, uuid.Nil, ds.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRevisionAssignsNextIndex(t *testing.T) {
	store, mock, _ := newMockStore(t)
	datasetID := uuid.New()

	mock.ExpectQuery(`INSERT INTO revisions`).
		WithArgs(sqlmock.AnyArg(), datasetID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"revision_index"}).AddRow(3))

	rev, err := store.CreateRevision(context.Background(), datasetID)
	require.NoError(t, err)
	assert.Equal(t, 3, rev.Index)
	assert.Equal(t, datasetID, rev.DatasetID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRevisionScansPublishedAt(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()
	datasetID := uuid.New()
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	published := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM revisions WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "dataset_id", "revision_index", "created_at", "published_at"}).
			AddRow(id.String(), datasetID.String(), 1, created, published))

	rev, err := store.GetRevision(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, rev.Published())
	require.NotNil(t, rev.PublishedAt)
	assert.Equal(t, published, *rev.PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRevisionDraft(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM revisions WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "dataset_id", "revision_index", "created_at", "published_at"}).
			AddRow(id.String(), uuid.New().String(), 1, time.Now().UTC(), nil))

	rev, err := store.GetRevision(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, rev.Published())
	assert.Nil(t, rev.PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishRevisionAlreadyPublished(t *testing.T) {
	store, mock, clock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE revisions SET published_at`).
		WithArgs(clock.Now().UTC(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.PublishRevision(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already published")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDataset(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM datasets WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at"}).
			AddRow(id.String(), "Population estimates", time.Now().UTC()))

	ds, err := store.GetDataset(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Population estimates", ds.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDatasetMissing(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM datasets WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetDataset(context.Background(), id)
	assert.ErrorContains(t, err, "dataset not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
