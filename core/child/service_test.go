package child_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/services/blob"
	"github.com/trezcool/acolher/services/logger"
	"github.com/trezcool/acolher/storage/database/dummy"
	"github.com/trezcool/acolher/tests"
)

var (
	staff = core.Session{ActorID: "s", Role: core.RoleStaff, InstitutionID: "i1"}

	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
)

func setup() (*child.Service, *dummydb.DB, *blobsvc.MemoryStore) {
	db := dummydb.Open()
	blobs := blobsvc.NewMemoryStore("https://files.test")
	return child.NewService(db, dummydb.NewChildRepository(db), blobs, logsvc.NewNopLogger()), db, blobs
}

func TestService_CRUD(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	ana, err := svc.Create(ctx, staff, child.NewChild{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "i1", ana.InstitutionID)
	assert.True(t, ana.IsSheltered())

	_, err = svc.Get(ctx, core.Session{ActorID: "o", Role: core.RoleStaff, InstitutionID: "i2"}, ana.ID)
	assert.True(t, core.IsNotFound(err))

	uc := child.UpdateChild{Name: "Ana Clara"}
	uc.DischargeDate.SetValid("2024-06-30")
	upd, err := svc.Update(ctx, staff, ana, uc)
	require.NoError(t, err)
	assert.False(t, upd.IsSheltered())

	bTrue := true
	sheltered, err := svc.Query(ctx, staff, &child.QueryFilter{Sheltered: &bTrue}, nil)
	require.NoError(t, err)
	assert.Empty(t, sheltered)
}

func TestService_Photos(t *testing.T) {
	svc, _, blobs := setup()
	ctx := context.Background()
	ana, err := svc.Create(ctx, staff, child.NewChild{Name: "Ana"})
	require.NoError(t, err)

	_, err = svc.AddPhoto(ctx, staff, ana, child.NewPhoto{Filename: "notes.txt", Data: []byte("hello there")})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr), "non-image upload; got %v", err)

	photo, err := svc.AddPhoto(ctx, staff, ana, child.NewPhoto{Filename: "ana.png", Caption: " Aniversário ", Data: pngData})
	require.NoError(t, err)
	assert.Equal(t, "image/png", photo.ContentType)
	assert.Equal(t, "Aniversário", photo.Caption)
	assert.True(t, strings.HasPrefix(photo.Key, core.InstitutionBlobPrefix("i1")))
	assert.True(t, strings.HasPrefix(photo.URL, "https://files.test/"))
	assert.Equal(t, 1, blobs.Len())

	require.NoError(t, svc.DeletePhoto(ctx, staff, ana, photo.ID))
	assert.Equal(t, 0, blobs.Len())
}

func TestService_Delete(t *testing.T) {
	svc, db, blobs := setup()
	ctx := context.Background()
	ana, err := svc.Create(ctx, staff, child.NewChild{Name: "Ana"})
	require.NoError(t, err)
	_, err = svc.AddNote(ctx, staff, ana, child.NewNote{Body: "Chegou hoje."})
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, staff, ana, child.NewPhoto{Filename: "ana.png", Data: pngData})
	require.NoError(t, err)

	t.Run("blocked by the case file", func(t *testing.T) {
		testutil.CreateCaseFile(t, dummydb.NewCaseFileRepository(db), ana, time.Now())
		err := svc.Delete(ctx, staff, ana)
		pErr, ok := core.AsPersistenceError(err)
		require.True(t, ok, "want *core.PersistenceError; got %v", err)
		assert.Equal(t, string(institution.TableCaseFiles), pErr.Table)

		// rolled back
		notes, err := svc.QueryNotes(ctx, staff, ana)
		require.NoError(t, err)
		assert.Len(t, notes, 1)
		photos, err := svc.QueryPhotos(ctx, staff, ana)
		require.NoError(t, err)
		assert.Len(t, photos, 1)
		assert.Equal(t, 1, blobs.Len())
	})

	t.Run("ok", func(t *testing.T) {
		bia, err := svc.Create(ctx, staff, child.NewChild{Name: "Bia"})
		require.NoError(t, err)
		_, err = svc.AddPhoto(ctx, staff, bia, child.NewPhoto{Filename: "bia.png", Data: pngData})
		require.NoError(t, err)
		require.Equal(t, 2, blobs.Len())

		require.NoError(t, svc.Delete(ctx, staff, bia))
		_, err = svc.Get(ctx, staff, bia.ID)
		assert.True(t, core.IsNotFound(err))
		assert.Equal(t, 1, blobs.Len())
	})
}
