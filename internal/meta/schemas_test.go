package meta

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSchemaIsTransactional(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "cube_abc" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER SCHEMA "build_x" RENAME TO "cube_abc"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.PublishSchema(context.Background(), "build_x", "cube_abc")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishSchemaRejectsBadNames(t *testing.T) {
	store, _, _ := newMockStore(t)

	err := store.PublishSchema(context.Background(), "build_x; DROP TABLE datasets", "cube_abc")
	require.Error(t, err)

	err = store.PublishSchema(context.Background(), "build_x", "cube-abc")
	require.Error(t, err)
}

func TestCreateSchemaDropsStale(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "build_x" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE SCHEMA "build_x"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, store.CreateSchema(context.Background(), "build_x"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaExists(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery(`FROM information_schema.schemata WHERE schema_name`).
		WithArgs("build_x").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`FROM information_schema.schemata WHERE schema_name`).
		WithArgs("cube_gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := store.SchemaExists(context.Background(), "build_x")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.SchemaExists(context.Background(), "cube_gone")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
