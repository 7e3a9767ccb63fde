package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/schedule"
	"github.com/trezcool/acolher/storage/database/dummy"
	"github.com/trezcool/acolher/tests"
)

func TestService(t *testing.T) {
	db := dummydb.Open()
	childRepo := dummydb.NewChildRepository(db)
	svc := schedule.NewService(dummydb.NewTaskRepository(db), childRepo)
	ctx := context.Background()

	staff := core.Session{ActorID: "s", Role: core.RoleStaff, InstitutionID: "i1"}
	chd := testutil.CreateChild(t, childRepo, "i1", "Ana")
	stranger := testutil.CreateChild(t, childRepo, "i2", "Bia")
	monday := time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)

	consulta, err := svc.Create(ctx, staff, schedule.NewTask{ChildID: null.StringFrom(chd.ID), Title: "Pediatra", StartsAt: monday})
	require.NoError(t, err)
	reuniao, err := svc.Create(ctx, staff, schedule.NewTask{Title: "Reunião de equipe", StartsAt: monday.AddDate(0, 0, 2)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, staff, schedule.NewTask{ChildID: null.StringFrom(stranger.ID), Title: "Visita", StartsAt: monday})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr), "child of another institution; got %v", err)

	tasks, err := svc.Query(ctx, staff, &schedule.QueryFilter{ChildID: chd.ID}, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, consulta.ID, tasks[0].ID)

	tasks, err = svc.Query(ctx, staff, &schedule.QueryFilter{From: monday.AddDate(0, 0, 1)}, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, reuniao.ID, tasks[0].ID)

	bTrue := true
	done, err := svc.Update(ctx, staff, consulta, schedule.UpdateTask{ChildID: consulta.ChildID, Title: consulta.Title, StartsAt: consulta.StartsAt, Done: &bTrue})
	require.NoError(t, err)
	assert.True(t, done.Done)

	tasks, err = svc.Query(ctx, staff, &schedule.QueryFilter{Done: &bTrue}, nil)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	viewer := core.Session{ActorID: "a", Role: core.RoleAdmin}.WithViewing("i1")
	_, err = svc.Get(ctx, viewer, reuniao.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ErrReadOnly, svc.Delete(ctx, viewer, reuniao))

	require.NoError(t, svc.Delete(ctx, staff, reuniao))
	_, err = svc.Get(ctx, staff, reuniao.ID)
	assert.True(t, core.IsNotFound(err))
}
