package institution_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
	"github.com/trezcool/acolher/core/schedule"
	"github.com/trezcool/acolher/services/blob"
	"github.com/trezcool/acolher/services/logger"
	"github.com/trezcool/acolher/storage/database/dummy"
	"github.com/trezcool/acolher/tests"
)

var (
	admin = core.Session{ActorID: "platform-admin", Role: core.RoleAdmin}

	// smallest valid PNG
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
)

type fixture struct {
	db    *dummydb.DB
	blobs *blobsvc.MemoryStore
	svc   *institution.Service

	instRepo  institution.Repository
	profRepo  profile.Repository
	childRepo child.Repository
	cfRepo    casefile.Repository
	postRepo  community.Repository
	taskRepo  schedule.Repository
	finRepo   finance.Repository
	childSvc  *child.Service
}

func setup() fixture {
	db := dummydb.Open()
	blobs := blobsvc.NewMemoryStore("https://files.test")
	instRepo := dummydb.NewInstitutionRepository(db)
	childRepo := dummydb.NewChildRepository(db)
	return fixture{
		db:        db,
		blobs:     blobs,
		svc:       institution.NewService(db, instRepo, blobs, logsvc.NewNopLogger()),
		instRepo:  instRepo,
		profRepo:  dummydb.NewProfileRepository(db),
		childRepo: childRepo,
		cfRepo:    dummydb.NewCaseFileRepository(db),
		postRepo:  dummydb.NewCommunityRepository(db),
		taskRepo:  dummydb.NewTaskRepository(db),
		finRepo:   dummydb.NewFinanceRepository(db),
		childSvc:  child.NewService(db, childRepo, blobs, logsvc.NewNopLogger()),
	}
}

// populate gives inst a row in every dependent table.
func (f fixture) populate(t *testing.T, inst institution.Institution, email string) child.Child {
	ctx := context.Background()
	now := time.Now().UTC()

	coord := testutil.CreateProfile(t, f.profRepo, inst.ID, "Coord", email, "", core.RoleCoordinator, true)
	sess := coord.Session()
	_, err := f.profRepo.CreateInvite(ctx, profile.Invite{InstitutionID: inst.ID, Email: "new." + email, Role: core.RoleStaff, InvitedBy: coord.ID, CreatedAt: now})
	require.NoError(t, err)

	chd := testutil.CreateChild(t, f.childRepo, inst.ID, "Ana")
	cf := testutil.CreateCaseFile(t, f.cfRepo, chd, now)
	_, err = f.cfRepo.CreateHistoryEntry(ctx, casefile.HistoryEntry{CaseFileID: cf.ID, ChildID: chd.ID, InstitutionID: inst.ID, Snapshot: cf, CreatedAt: now})
	require.NoError(t, err)
	_, err = f.childSvc.AddNote(ctx, sess, chd, child.NewNote{Body: "Primeira visita da avó."})
	require.NoError(t, err)
	_, err = f.childSvc.AddPhoto(ctx, sess, chd, child.NewPhoto{Filename: "ana.png", Data: pngData})
	require.NoError(t, err)

	post, err := f.postRepo.CreatePost(ctx, community.Post{InstitutionID: inst.ID, AuthorID: coord.ID, Title: "Doações", Body: "Recebemos roupas.", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = f.postRepo.CreateComment(ctx, community.Comment{PostID: post.ID, InstitutionID: inst.ID, AuthorID: coord.ID, Body: "Obrigado!", CreatedAt: now})
	require.NoError(t, err)

	_, err = f.taskRepo.CreateTask(ctx, schedule.Task{InstitutionID: inst.ID, Title: "Consulta", StartsAt: now, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = f.finRepo.CreateRecord(ctx, finance.Record{InstitutionID: inst.ID, Kind: finance.KindIncome, Category: "Doação", AmountCents: 10000, Date: "2024-01-01", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	return chd
}

func TestService_Delete(t *testing.T) {
	f := setup()
	ctx := context.Background()

	inst := testutil.CreateInstitution(t, f.instRepo, "Lar Esperança")
	other := testutil.CreateInstitution(t, f.instRepo, "Casa Girassol")
	f.populate(t, inst, "coord@esperanca.br")
	otherChild := f.populate(t, other, "coord@girassol.br")
	f.db.ResetDeleteLog()

	require.NoError(t, f.svc.Delete(ctx, admin, inst.ID))

	want := make([]string, 0, len(institution.CascadeOrder)+1)
	for _, table := range institution.CascadeOrder {
		want = append(want, string(table))
	}
	want = append(want, string(institution.TableInstitutions))
	assert.Equal(t, want, f.db.DeleteLog())

	_, err := f.svc.Get(ctx, admin, inst.ID)
	assert.True(t, core.IsNotFound(err))

	blobs, err := f.blobs.List(ctx, core.InstitutionBlobPrefix(inst.ID))
	require.NoError(t, err)
	assert.Empty(t, blobs)

	// the other institution is untouched
	_, err = f.svc.Get(ctx, admin, other.ID)
	require.NoError(t, err)
	_, err = f.cfRepo.GetCaseFile(ctx, casefile.GetFilter{ChildID: otherChild.ID})
	require.NoError(t, err)
	blobs, err = f.blobs.List(ctx, core.InstitutionBlobPrefix(other.ID))
	require.NoError(t, err)
	assert.Len(t, blobs, 1)
}

func TestService_Delete_blockedStep(t *testing.T) {
	f := setup()
	ctx := context.Background()

	inst := testutil.CreateInstitution(t, f.instRepo, "Lar Esperança")
	chd := f.populate(t, inst, "coord@esperanca.br")
	f.db.ResetDeleteLog()
	f.db.FailOn(string(institution.TableChildren), dummydb.OpDelete, errors.New("violates foreign key constraint"))

	err := f.svc.Delete(ctx, admin, inst.ID)
	require.Error(t, err)

	pErr, ok := core.AsPersistenceError(err)
	require.True(t, ok, "want *core.PersistenceError; got %T", err)
	assert.Equal(t, string(institution.TableChildren), pErr.Table)
	assert.True(t, strings.Contains(pErr.Error(), "children"))

	log := f.db.DeleteLog()
	assert.Equal(t, string(institution.TableChildren), log[len(log)-1], "the cascade stops at the failing step")

	// nothing was purged
	f.db.ClearFaults()
	_, err = f.svc.Get(ctx, admin, inst.ID)
	require.NoError(t, err)
	cf, err := f.cfRepo.GetCaseFile(ctx, casefile.GetFilter{ChildID: chd.ID})
	require.NoError(t, err)
	history, err := f.cfRepo.QueryHistory(ctx, cf.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	blobs, err := f.blobs.List(ctx, core.InstitutionBlobPrefix(inst.ID))
	require.NoError(t, err)
	assert.Len(t, blobs, 1)
}

func TestService_Delete_permissions(t *testing.T) {
	f := setup()
	ctx := context.Background()
	inst := testutil.CreateInstitution(t, f.instRepo, "Lar Esperança")

	coord := core.Session{ActorID: "c", Role: core.RoleCoordinator, InstitutionID: inst.ID}
	assert.Equal(t, core.ErrPermissionDenied, f.svc.Delete(ctx, coord, inst.ID))
	assert.Equal(t, core.ErrReadOnly, f.svc.Delete(ctx, admin.WithViewing(inst.ID), inst.ID))
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, admin, "missing")))

	_, err := f.svc.Get(ctx, admin, inst.ID)
	assert.NoError(t, err)
}

func TestService_CreateUpdate(t *testing.T) {
	f := setup()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, core.Session{ActorID: "c", Role: core.RoleCoordinator, InstitutionID: "x"}, institution.NewInstitution{Name: "Nope"})
	assert.Equal(t, core.ErrPermissionDenied, err)

	inst, err := f.svc.Create(ctx, admin, institution.NewInstitution{Name: "Lar Esperança", City: "Recife", State: "PE"})
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)

	coord := core.Session{ActorID: "c", Role: core.RoleCoordinator, InstitutionID: inst.ID}
	upd, err := f.svc.Update(ctx, coord, inst, institution.UpdateInstitution{Name: "Lar Esperança II", City: "Olinda", State: "PE"})
	require.NoError(t, err)
	assert.Equal(t, "Olinda", upd.City)

	staff := core.Session{ActorID: "s", Role: core.RoleStaff, InstitutionID: inst.ID}
	_, err = f.svc.Update(ctx, staff, inst, institution.UpdateInstitution{Name: "Hack"})
	assert.Equal(t, core.ErrPermissionDenied, err)

	_, err = f.svc.Update(ctx, admin.WithViewing(inst.ID), inst, institution.UpdateInstitution{Name: "Hack"})
	assert.Equal(t, core.ErrReadOnly, err)
}
