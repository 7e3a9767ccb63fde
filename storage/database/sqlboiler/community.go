package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/community"
)

var (
	postColumns    = []string{"id", "institution_id", "author_id", "title", "body", "created_at", "updated_at"}
	commentColumns = []string{"id", "post_id", "institution_id", "author_id", "body", "created_at"}
)

type (
	postRow struct {
		ID            string    `boil:"id"`
		InstitutionID string    `boil:"institution_id"`
		AuthorID      string    `boil:"author_id"`
		Title         string    `boil:"title"`
		Body          string    `boil:"body"`
		CreatedAt     time.Time `boil:"created_at"`
		UpdatedAt     time.Time `boil:"updated_at"`
	}

	commentRow struct {
		ID            string    `boil:"id"`
		PostID        string    `boil:"post_id"`
		InstitutionID string    `boil:"institution_id"`
		AuthorID      string    `boil:"author_id"`
		Body          string    `boil:"body"`
		CreatedAt     time.Time `boil:"created_at"`
	}
)

func (r postRow) unboil() community.Post {
	return community.Post{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		AuthorID:      r.AuthorID,
		Title:         r.Title,
		Body:          r.Body,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r commentRow) unboil() community.Comment {
	return community.Comment{
		ID:            r.ID,
		PostID:        r.PostID,
		InstitutionID: r.InstitutionID,
		AuthorID:      r.AuthorID,
		Body:          r.Body,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type communityRepository struct {
	repository
}

var _ community.Repository = (*communityRepository)(nil) // interface compliance check

func NewCommunityRepository(exec core.DBExecutor) *communityRepository {
	return &communityRepository{repository{exec: exec}}
}

func (repo communityRepository) CreatePost(ctx context.Context, post community.Post, exec ...core.DBExecutor) (community.Post, error) {
	post.ID = uuid.New().String()
	post.Comments = nil
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO community_posts (id, institution_id, author_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.InstitutionID, post.AuthorID, post.Title, post.Body, post.CreatedAt.UTC(), post.UpdatedAt.UTC())
	if err != nil {
		return community.Post{}, trapErr(err, nil, "inserting post")
	}
	return post, nil
}

func (repo communityRepository) GetPost(ctx context.Context, id string, exec ...core.DBExecutor) (community.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return community.Post{}, community.ErrPostNotFound
	}
	var row postRow
	err := newQuery("community_posts", qm.Select(postColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return community.Post{}, trapErr(err, community.ErrPostNotFound, "finding post")
	}
	return row.unboil(), nil
}

func (repo communityRepository) QueryPosts(
	ctx context.Context,
	filter *community.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]community.Post, error) {
	mods := []qm.QueryMod{qm.Select(postColumns...)}
	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			mods = append(mods, qm.Where("title ILIKE ? OR body ILIKE ?", val, val))
		}
		if filter.InstitutionID != "" {
			mods = append(mods, qm.Where("institution_id = ?", filter.InstitutionID))
		}
	}
	if ord := orderBy(ordering, map[string]string{"title": "title", "created_at": "created_at", "updated_at": "updated_at"}); ord != nil {
		mods = append(mods, ord...)
	} else {
		mods = append(mods, qm.OrderBy("created_at DESC"))
	}

	var rows []postRow
	if err := newQuery("community_posts", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	posts := make([]community.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.unboil())
	}
	return posts, nil
}

func (repo communityRepository) UpdatePost(ctx context.Context, post community.Post, exec ...core.DBExecutor) (community.Post, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE community_posts SET title = $2, body = $3, updated_at = $4 WHERE id = $1`,
		post.ID, post.Title, post.Body, post.UpdatedAt.UTC())
	if err != nil {
		return community.Post{}, errors.Wrap(err, "updating post")
	}
	if n == 0 {
		return community.Post{}, community.ErrPostNotFound
	}
	post.Comments = nil
	return post, nil
}

func (repo communityRepository) DeletePost(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM community_posts WHERE id = $1`, id)
	return trapErr(err, community.ErrPostNotFound, "deleting post")
}

func (repo communityRepository) CreateComment(ctx context.Context, cmt community.Comment, exec ...core.DBExecutor) (community.Comment, error) {
	cmt.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO community_comments (id, post_id, institution_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cmt.ID, cmt.PostID, cmt.InstitutionID, cmt.AuthorID, cmt.Body, cmt.CreatedAt.UTC())
	if err != nil {
		return community.Comment{}, trapErr(err, nil, "inserting comment")
	}
	return cmt, nil
}

func (repo communityRepository) GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (community.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return community.Comment{}, community.ErrCommentNotFound
	}
	var row commentRow
	err := newQuery("community_comments", qm.Select(commentColumns...), qm.Where("id = ?", id), qm.Limit(1)).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return community.Comment{}, trapErr(err, community.ErrCommentNotFound, "finding comment")
	}
	return row.unboil(), nil
}

func (repo communityRepository) QueryComments(ctx context.Context, postID string, exec ...core.DBExecutor) ([]community.Comment, error) {
	var rows []commentRow
	err := newQuery("community_comments",
		qm.Select(commentColumns...),
		qm.Where("post_id = ?", postID),
		qm.OrderBy("created_at ASC"),
	).Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]community.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, r.unboil())
	}
	return comments, nil
}

func (repo communityRepository) DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM community_comments WHERE id = $1`, id)
	return trapErr(err, community.ErrCommentNotFound, "deleting comment")
}

func (repo communityRepository) DeletePostComments(ctx context.Context, postID string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM community_comments WHERE post_id = $1`, postID)
	return trapErr(err, nil, "deleting post comments")
}
