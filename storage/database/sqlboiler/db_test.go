package boiledrepos

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
)

func mockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestTrapErr(t *testing.T) {
	notFound := core.NewNotFoundError("thing")

	assert.Nil(t, trapErr(nil, notFound, "msg"))
	assert.Equal(t, notFound, trapErr(sql.ErrNoRows, notFound, "msg"))

	err := trapErr(&pq.Error{Code: foreignKeyViolation, Table: "child_notes"}, notFound, "msg")
	pErr, ok := core.AsPersistenceError(err)
	require.True(t, ok)
	assert.Equal(t, "child_notes", pErr.Table)

	err = trapErr(sql.ErrConnDone, notFound, "deleting thing")
	assert.EqualError(t, err, "deleting thing: "+sql.ErrConnDone.Error())
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pq.Error{Code: uniqueViolation, Constraint: profileEmailKey}
	assert.True(t, isUniqueViolation(err, profileEmailKey))
	assert.True(t, isUniqueViolation(err, ""))
	assert.False(t, isUniqueViolation(err, caseFileChildKey))
	assert.False(t, isUniqueViolation(&pq.Error{Code: foreignKeyViolation}, ""))
}

func TestOrderBy(t *testing.T) {
	cols := map[string]string{"name": "name", "created_at": "created_at"}
	assert.Nil(t, orderBy(nil, cols))
	assert.Nil(t, orderBy([]core.DBOrdering{{Field: "password_hash"}}, cols))
	assert.Len(t, orderBy([]core.DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, cols), 1)
}
