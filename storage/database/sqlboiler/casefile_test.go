package boiledrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core/casefile"
)

func TestCaseFileRepository_CreateCaseFile(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewCaseFileRepository(db)
	cf := casefile.CaseFile{
		InstitutionID: uuid.New().String(),
		ChildID:       uuid.New().String(),
		Status:        casefile.StatusDraft,
		Content:       casefile.Content{ChildName: "Ana"},
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO case_files`).WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := repo.CreateCaseFile(context.Background(), cf)
		require.NoError(t, err)
		_, err = uuid.Parse(created.ID)
		assert.NoError(t, err)
	})

	t.Run("child already has a case file", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO case_files`).
			WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: caseFileChildKey})

		_, err := repo.CreateCaseFile(context.Background(), cf)
		assert.Equal(t, casefile.ErrCaseFileExists, err)
	})
}

func TestCaseFileRepository_GetCaseFile(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewCaseFileRepository(db)
	id, childID := uuid.New().String(), uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)
	content := []byte(`{"child_name":"Ana","disabilities":["visual"],"reference_contacts":[{"name":"Rita"}]}`)

	rows := sqlmock.NewRows(caseFileColumns).
		AddRow(id, uuid.New().String(), childID, "finalized", "Ana", content, now, now, "p1", now, "p2")
	mock.ExpectQuery(`SELECT .+ FROM "case_files" WHERE \(child_id = \$1\) LIMIT 1`).WithArgs(childID).WillReturnRows(rows)

	cf, err := repo.GetCaseFile(context.Background(), casefile.GetFilter{ChildID: childID})
	require.NoError(t, err)
	assert.Equal(t, id, cf.ID)
	assert.True(t, cf.IsFinalized())
	assert.Equal(t, "Ana", cf.ChildName)
	assert.Equal(t, []string{"visual"}, cf.Disabilities)
	require.Len(t, cf.ReferenceContacts, 1)
	assert.Equal(t, "Rita", cf.ReferenceContacts[0].Name)

	_, err = repo.GetCaseFile(context.Background(), casefile.GetFilter{})
	assert.Equal(t, casefile.ErrNotFound, err)
}

func TestCaseFileRepository_QueryHistory(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewCaseFileRepository(db)
	cfID := uuid.New().String()
	older := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	newer := older.AddDate(0, 3, 0)

	rows := sqlmock.NewRows(historyColumns).
		AddRow(uuid.New().String(), cfID, "c1", "i1", []byte(`{"id":"`+cfID+`","child_name":"Ana v2"}`), newer, "p1").
		AddRow(uuid.New().String(), cfID, "c1", "i1", []byte(`{"id":"`+cfID+`","child_name":"Ana v1"}`), older, "p1")
	mock.ExpectQuery(`SELECT .+ FROM "case_file_history" WHERE \(case_file_id = \$1\) ORDER BY created_at DESC`).
		WithArgs(cfID).WillReturnRows(rows)

	entries, err := repo.QueryHistory(context.Background(), cfID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ana v2", entries[0].Snapshot.ChildName)
	assert.Equal(t, cfID, entries[1].Snapshot.ID)
}

func TestCaseFileRepository_UpdateCaseFile(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewCaseFileRepository(db)
	cf := casefile.CaseFile{ID: uuid.New().String(), Status: casefile.StatusDraft}

	mock.ExpectExec(`UPDATE case_files SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateCaseFile(context.Background(), cf)
	assert.Equal(t, casefile.ErrNotFound, err)
}
