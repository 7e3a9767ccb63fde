package community_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/storage/database/dummy"
)

func TestService(t *testing.T) {
	db := dummydb.Open()
	svc := community.NewService(db, dummydb.NewCommunityRepository(db))
	ctx := context.Background()

	tick := time.Date(2024, time.April, 1, 10, 0, 0, 0, time.UTC)
	community.NowFunc = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	defer func() { community.NowFunc = time.Now }()

	ana := core.Session{ActorID: "ana", Role: core.RoleCoordinator, InstitutionID: "i1"}
	ze := core.Session{ActorID: "ze", Role: core.RoleStaff, InstitutionID: "i2"}
	viewer := core.Session{ActorID: "adm", Role: core.RoleAdmin}.WithViewing("i1")

	post, err := svc.CreatePost(ctx, ana, community.NewPost{Title: "Bazar beneficente", Body: "Sábado, 9h."})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, viewer, community.NewPost{Title: "x", Body: "y"})
	assert.Equal(t, core.ErrReadOnly, err)

	// every institution reads and comments on the board
	cmt, err := svc.AddComment(ctx, ze, post, community.NewComment{Body: "Podemos ajudar!"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, ana, post, community.NewComment{Body: "Obrigada"})
	require.NoError(t, err)

	got, err := svc.GetPost(ctx, ze, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, cmt.ID, got.Comments[0].ID)

	posts, err := svc.QueryPosts(ctx, ze, &community.QueryFilter{Search: "bazar"}, nil)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	// only the author institution edits a post
	_, err = svc.UpdatePost(ctx, ze, post, community.UpdatePost{Title: "Hack", Body: "Hack"})
	assert.Equal(t, core.ErrPermissionDenied, err)
	assert.Equal(t, core.ErrPermissionDenied, svc.DeletePost(ctx, ze, post))

	// the post's institution moderates comments
	assert.Equal(t, core.ErrReadOnly, svc.DeleteComment(ctx, viewer, cmt.ID))
	require.NoError(t, svc.DeleteComment(ctx, ana, cmt.ID))

	require.NoError(t, svc.DeletePost(ctx, ana, post))
	_, err = svc.GetPost(ctx, ana, post.ID)
	assert.True(t, core.IsNotFound(err))
}
