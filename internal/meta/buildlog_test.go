package meta

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/statcube/pkg/core"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, clockwork.Clock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewStoreWithDB(db, nil, clock), mock, clock
}

func TestStartBuild(t *testing.T) {
	store, mock, clock := newMockStore(t)
	revisionID := uuid.New()

	mock.ExpectExec(`INSERT INTO build_logs`).
		WithArgs(sqlmock.AnyArg(), &revisionID, string(core.BuildFullCube), string(core.BuildQueued), clock.Now().UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	bl, err := store.StartBuild(context.Background(), core.BuildFullCube, &revisionID)
	require.NoError(t, err)
	assert.Equal(t, core.BuildQueued, bl.Status)
	assert.Equal(t, core.BuildFullCube, bl.Type)
	assert.Equal(t, &revisionID, bl.RevisionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBuildStatusMissingLog(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE build_logs`).
		WithArgs(string(core.BuildBuilding), "CREATE SCHEMA build_x;", id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateBuildStatus(context.Background(), id, core.BuildBuilding, "CREATE SCHEMA build_x;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteBuildRequiresTerminalStatus(t *testing.T) {
	store, _, _ := newMockStore(t)

	err := store.CompleteBuild(context.Background(), uuid.New(), core.BuildBuilding, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestGetBuildLogScansNulls(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()
	started := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "revision_id", "build_type", "status", "started_at", "completed_at", "elapsed_ms", "script", "error",
	}).AddRow(id.String(), nil, string(core.BuildDraftCubes), string(core.BuildBuilding), started, nil, int64(0), "", "")

	mock.ExpectQuery(`FROM build_logs WHERE id`).
		WithArgs(id).
		WillReturnRows(rows)

	bl, err := store.GetBuildLog(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, bl.RevisionID)
	assert.Nil(t, bl.CompletedAt)
	assert.Equal(t, core.BuildDraftCubes, bl.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveBuildsScopedToRevision(t *testing.T) {
	store, mock, _ := newMockStore(t)
	revisionID := uuid.New()
	started := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "revision_id", "build_type", "status", "started_at", "completed_at", "elapsed_ms", "script", "error",
	}).AddRow(uuid.New().String(), revisionID.String(), string(core.BuildFullCube), string(core.BuildMaterializing), started, nil, int64(0), "", "")

	mock.ExpectQuery(`FROM build_logs\s+WHERE status NOT IN`).
		WithArgs(string(core.BuildCompleted), string(core.BuildFailed), revisionID).
		WillReturnRows(rows)

	active, err := store.ListActiveBuilds(context.Background(), &revisionID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, core.BuildMaterializing, active[0].Status)
	require.NotNil(t, active[0].RevisionID)
	assert.Equal(t, revisionID, *active[0].RevisionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
