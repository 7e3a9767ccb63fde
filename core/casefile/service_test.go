package casefile_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/services/cache"
	"github.com/trezcool/acolher/services/logger"
	"github.com/trezcool/acolher/storage/database/dummy"
	"github.com/trezcool/acolher/tests"
)

type fixture struct {
	db        *dummydb.DB
	repo      casefile.Repository
	childRepo child.Repository
	svc       *casefile.Service
	staff     core.Session
	chd       child.Child
}

func setup(t *testing.T, cache ...core.Cache) fixture {
	db := dummydb.Open()
	instRepo := dummydb.NewInstitutionRepository(db)
	profRepo := dummydb.NewProfileRepository(db)
	childRepo := dummydb.NewChildRepository(db)
	repo := dummydb.NewCaseFileRepository(db)

	var c core.Cache
	if len(cache) > 0 {
		c = cache[0]
	}
	conf := core.NewTestConfig()
	conf.Redis.OverdueCacheTTL = time.Hour

	inst := testutil.CreateInstitution(t, instRepo, "Lar Esperança")
	staff := testutil.CreateProfile(t, profRepo, inst.ID, "Staff", "staff@test.br", "", core.RoleStaff, true)

	return fixture{
		db:        db,
		repo:      repo,
		childRepo: childRepo,
		svc:       casefile.NewService(db, repo, childRepo, c, conf, logsvc.NewNopLogger()),
		staff:     staff.Session(),
		chd:       testutil.CreateChild(t, childRepo, inst.ID, "Ana"),
	}
}

func freezeTime(t *testing.T, now time.Time) *time.Time {
	clock := now
	casefile.NowFunc = func() time.Time { return clock }
	t.Cleanup(func() { casefile.NowFunc = time.Now })
	return &clock
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	clock := freezeTime(t, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	cf, err := f.svc.Create(ctx, f.staff, casefile.NewCaseFile{
		ChildID: f.chd.ID,
		Status:  casefile.StatusDraft,
		Content: casefile.Content{ChildName: "Ana", Disabilities: []string{"Visual", "Visual"}},
	})
	require.NoError(t, err)
	assert.Equal(t, f.chd.InstitutionID, cf.InstitutionID)
	assert.Equal(t, []string{"Visual"}, cf.Disabilities)
	assert.Equal(t, []string{}, cf.DrugsUsed)
	assert.True(t, clock.Equal(cf.LastReviewAt))
	assert.Equal(t, f.staff.ActorID, cf.CreatedBy)

	history, err := f.svc.ListHistory(ctx, f.staff, f.chd.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	t.Run("one per child", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.staff, casefile.NewCaseFile{ChildID: f.chd.ID, Status: casefile.StatusDraft, Content: casefile.Content{ChildName: "Ana"}})
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "want validation error; got %v", err)
	})
	t.Run("unknown child", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.staff, casefile.NewCaseFile{ChildID: "nope", Status: casefile.StatusDraft, Content: casefile.Content{ChildName: "X"}})
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "want validation error; got %v", err)
	})
	t.Run("other institution", func(t *testing.T) {
		other := testutil.CreateChild(t, f.childRepo, "another-institution", "Bia")
		_, err := f.svc.Create(ctx, f.staff, casefile.NewCaseFile{ChildID: other.ID, Status: casefile.StatusDraft, Content: casefile.Content{ChildName: "Bia"}})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})
}

func TestService_Save(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)

	t.Run("plain", func(t *testing.T) {
		f := setup(t)
		clock := freezeTime(t, start)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)

		*clock = start.Add(24 * time.Hour)
		cf, err := f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{
			Status:  casefile.StatusFinalized,
			Content: casefile.Content{ChildName: "Ana Maria", SchoolName: "EMEF Paulo Freire"},
		}, casefile.ModePlain)
		require.NoError(t, err)
		assert.Equal(t, casefile.StatusFinalized, cf.Status)
		assert.Equal(t, "EMEF Paulo Freire", cf.SchoolName)
		assert.True(t, clock.Equal(cf.LastReviewAt))
		assert.Equal(t, f.staff.ActorID, cf.UpdatedBy)

		history, err := f.svc.ListHistory(ctx, f.staff, f.chd.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("renewal archives the previous state, newest first", func(t *testing.T) {
		f := setup(t)
		clock := freezeTime(t, start)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)

		for i, school := range []string{"Escola A", "Escola B", "Escola C"} {
			*clock = start.AddDate(0, i+1, 0)
			_, err := f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{
				Content: casefile.Content{ChildName: "Ana", SchoolName: school},
			}, casefile.ModeRenewal)
			require.NoError(t, err)
		}

		history, err := f.svc.ListHistory(ctx, f.staff, f.chd.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "Escola B", history[0].Snapshot.SchoolName)
		assert.Equal(t, "Escola A", history[1].Snapshot.SchoolName)
		assert.Equal(t, "", history[2].Snapshot.SchoolName)
		assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt))

		entry, err := f.svc.ViewHistoryEntry(ctx, f.staff, history[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "Escola A", entry.Snapshot.SchoolName)

		cf, err := f.svc.Get(ctx, f.staff, f.chd.ID)
		require.NoError(t, err)
		assert.Equal(t, "Escola C", cf.SchoolName)
	})

	t.Run("failed snapshot skips the update", func(t *testing.T) {
		f := setup(t)
		freezeTime(t, start)
		orig := testutil.CreateCaseFile(t, f.repo, f.chd, start)
		f.db.FailOn(string(institution.TableCaseFileHistory), dummydb.OpInsert, errors.New("disk full"))

		_, err := f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{
			Content: casefile.Content{ChildName: "Ana", SchoolName: "Escola Z"},
		}, casefile.ModeRenewal)
		require.Error(t, err)
		f.db.ClearFaults()

		cf, err := f.svc.Get(ctx, f.staff, f.chd.ID)
		require.NoError(t, err)
		assert.Equal(t, orig.SchoolName, cf.SchoolName)
		assert.True(t, orig.LastReviewAt.Equal(cf.LastReviewAt))
	})

	t.Run("failed update keeps no snapshot", func(t *testing.T) {
		f := setup(t)
		freezeTime(t, start)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)
		f.db.FailOn(string(institution.TableCaseFiles), dummydb.OpUpdate, errors.New("connection reset"))

		_, err := f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{
			Content: casefile.Content{ChildName: "Ana"},
		}, casefile.ModeRenewal)
		require.Error(t, err)
		f.db.ClearFaults()

		history, err := f.svc.ListHistory(ctx, f.staff, f.chd.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("sentinel conflict", func(t *testing.T) {
		f := setup(t)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)
		_, err := f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{
			Content: casefile.Content{ChildName: "Ana", DrugsUsed: []string{casefile.NoDrugUse, "Álcool"}},
		}, casefile.ModePlain)
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "want validation error; got %v", err)
	})

	t.Run("invalid mode", func(t *testing.T) {
		f := setup(t)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)
		_, err := f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{Content: casefile.Content{ChildName: "Ana"}}, casefile.Mode("draft"))
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "want validation error; got %v", err)
	})

	t.Run("read-only viewing", func(t *testing.T) {
		f := setup(t)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)
		admin := core.Session{ActorID: "admin", Role: core.RoleAdmin}.WithViewing(f.chd.InstitutionID)

		_, err := f.svc.Get(ctx, admin, f.chd.ID)
		require.NoError(t, err)
		_, err = f.svc.Save(ctx, admin, f.chd.ID, casefile.UpdateCaseFile{Content: casefile.Content{ChildName: "Ana"}}, casefile.ModePlain)
		assert.Equal(t, core.ErrReadOnly, errors.Cause(err))
	})

	t.Run("other institution", func(t *testing.T) {
		f := setup(t)
		testutil.CreateCaseFile(t, f.repo, f.chd, start)
		outsider := core.Session{ActorID: "someone", Role: core.RoleCoordinator, InstitutionID: "elsewhere"}

		_, err := f.svc.Get(ctx, outsider, f.chd.ID)
		assert.True(t, core.IsNotFound(err))
		_, err = f.svc.Save(ctx, outsider, f.chd.ID, casefile.UpdateCaseFile{Content: casefile.Content{ChildName: "Ana"}}, casefile.ModePlain)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_Toggle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateCaseFile(t, f.repo, f.chd, time.Now())

	toggle := func(g casefile.Group, v string, checked bool) casefile.CaseFile {
		cf, err := f.svc.Toggle(ctx, f.staff, f.chd.ID, casefile.ToggleRequest{Group: g, Value: v, Checked: checked})
		require.NoError(t, err)
		return cf
	}

	toggle(casefile.GroupDisabilities, "Visual", true)
	cf := toggle(casefile.GroupDisabilities, "Auditiva", true)
	assert.Equal(t, []string{"Visual", "Auditiva"}, cf.Disabilities)

	cf = toggle(casefile.GroupDisabilities, casefile.NoDisability, true)
	assert.Equal(t, []string{casefile.NoDisability}, cf.Disabilities)

	cf = toggle(casefile.GroupDisabilities, "Física", true)
	assert.Equal(t, []string{"Física"}, cf.Disabilities)

	cf = toggle(casefile.GroupDisabilities, "Física", false)
	assert.Equal(t, []string{}, cf.Disabilities)

	history, err := f.svc.ListHistory(ctx, f.staff, f.chd.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "toggles save in plain mode")
}

func TestService_Overdue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := setup(t, cachesvc.NewRedisCache(client, "test:"))
	ctx := context.Background()
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	old := testutil.CreateCaseFile(t, f.repo, f.chd, now.AddDate(0, -5, 0))
	older := testutil.CreateCaseFile(t, f.repo, testutil.CreateChild(t, f.childRepo, f.chd.InstitutionID, "Bia"), now.AddDate(-1, 0, 0))
	testutil.CreateCaseFile(t, f.repo, testutil.CreateChild(t, f.childRepo, f.chd.InstitutionID, "Caio"), now.AddDate(0, -1, 0))
	testutil.CreateCaseFile(t, f.repo, testutil.CreateChild(t, f.childRepo, "elsewhere", "Duda"), now.AddDate(-2, 0, 0))

	cfs, err := f.svc.Overdue(ctx, f.staff, now)
	require.NoError(t, err)
	require.Len(t, cfs, 2)
	assert.Equal(t, older.ID, cfs[0].ID)
	assert.Equal(t, old.ID, cfs[1].ID)
	assert.Len(t, mr.Keys(), 1)

	// a save reviews the case file and drops the cached list
	_, err = f.svc.Save(ctx, f.staff, f.chd.ID, casefile.UpdateCaseFile{Content: casefile.Content{ChildName: "Ana"}}, casefile.ModePlain)
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())

	cfs, err = f.svc.Overdue(ctx, f.staff, now)
	require.NoError(t, err)
	require.Len(t, cfs, 1)
	assert.Equal(t, older.ID, cfs[0].ID)

	bTrue := true
	cfs, err = f.svc.Query(ctx, f.staff, &casefile.QueryFilter{Overdue: &bTrue}, nil)
	require.NoError(t, err)
	assert.Len(t, cfs, 1)
}

func TestService_Overdue_cachedAcrossDueInstant(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := setup(t, cachesvc.NewRedisCache(client, "test:"))
	ctx := context.Background()
	reviewed := time.Date(2024, time.January, 15, 14, 0, 0, 0, time.UTC)
	cf := testutil.CreateCaseFile(t, f.repo, f.chd, reviewed)

	before := time.Date(2024, time.April, 15, 13, 59, 0, 0, time.UTC)
	cfs, err := f.svc.Overdue(ctx, f.staff, before)
	require.NoError(t, err)
	assert.Empty(t, cfs)
	assert.False(t, casefile.NeedsReview(cf, before))
	require.Len(t, mr.Keys(), 1)

	after := before.Add(2 * time.Minute)
	cfs, err = f.svc.Overdue(ctx, f.staff, after)
	require.NoError(t, err)
	require.Len(t, cfs, 1, "the cached list is re-evaluated at the requested instant")
	assert.Equal(t, cf.ID, cfs[0].ID)
	assert.True(t, casefile.NeedsReview(cf, after))

	cfs, err = f.svc.Overdue(ctx, f.staff, before)
	require.NoError(t, err)
	assert.Empty(t, cfs)
}

func TestService_ViewHistoryEntry_notFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.ViewHistoryEntry(context.Background(), f.staff, "missing")
	assert.True(t, core.IsNotFound(err))
}
