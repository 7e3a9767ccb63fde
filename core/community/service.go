package community

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

var (
	// errors
	ErrPostNotFound    = core.NewNotFoundError("post")
	ErrCommentNotFound = core.NewNotFoundError("comment")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreatePost(ctx context.Context, post Post, exec ...core.DBExecutor) (Post, error)
		GetPost(ctx context.Context, id string, exec ...core.DBExecutor) (Post, error)
		// QueryPosts lists posts of every institution.
		// QueryFilter.Search does a case-insensitive match on Title or Body.
		QueryPosts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Post, error)
		UpdatePost(ctx context.Context, post Post, exec ...core.DBExecutor) (Post, error)
		DeletePost(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateComment(ctx context.Context, cmt Comment, exec ...core.DBExecutor) (Comment, error)
		GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (Comment, error)
		// QueryComments lists the comments of a post, oldest first.
		QueryComments(ctx context.Context, postID string, exec ...core.DBExecutor) ([]Comment, error)
		DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error
		// DeletePostComments removes every comment of a post.
		DeletePostComments(ctx context.Context, postID string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx   core.Transactor
		repo Repository
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	return &Service{tx: tx, repo: repo}
}

func (svc *Service) CreatePost(ctx context.Context, sess core.Session, np NewPost) (Post, error) {
	if err := sess.CheckWrite(sess.InstitutionID); err != nil {
		return Post{}, err
	}
	now := NowFunc().UTC()
	return svc.repo.CreatePost(ctx, Post{
		InstitutionID: sess.InstitutionID,
		AuthorID:      sess.ActorID,
		Title:         np.Title,
		Body:          np.Body,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// GetPost returns a post with its comments. The board is readable by every authenticated profile.
func (svc *Service) GetPost(ctx context.Context, sess core.Session, id string) (Post, error) {
	if !sess.IsAuthenticated() {
		return Post{}, core.ErrPermissionDenied
	}
	post, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if post.Comments, err = svc.repo.QueryComments(ctx, post.ID); err != nil {
		return Post{}, errors.Wrap(err, "querying comments")
	}
	return post, nil
}

func (svc *Service) QueryPosts(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]Post, error) {
	if !sess.IsAuthenticated() {
		return nil, core.ErrPermissionDenied
	}
	ordering = core.OrderingAllowed(ordering, "title", "created_at", "updated_at")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryPosts(ctx, filter, ordering)
}

func (svc *Service) UpdatePost(ctx context.Context, sess core.Session, orig Post, up UpdatePost) (Post, error) {
	if err := sess.CheckWrite(orig.InstitutionID); err != nil {
		return Post{}, err
	}
	post := orig
	post.Title = up.Title
	post.Body = up.Body
	post.UpdatedAt = NowFunc().UTC()
	post.Comments = nil
	return svc.repo.UpdatePost(ctx, post)
}

// DeletePost removes a post and its comments.
func (svc *Service) DeletePost(ctx context.Context, sess core.Session, post Post) error {
	if err := sess.CheckWrite(post.InstitutionID); err != nil {
		return err
	}
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeletePostComments(ctx, post.ID, exec); err != nil {
			return errors.Wrap(err, "deleting comments")
		}
		return errors.Wrap(svc.repo.DeletePost(ctx, post.ID, exec), "deleting post")
	})
}

func (svc *Service) AddComment(ctx context.Context, sess core.Session, post Post, nc NewComment) (Comment, error) {
	if err := sess.CheckWrite(sess.InstitutionID); err != nil {
		return Comment{}, err
	}
	return svc.repo.CreateComment(ctx, Comment{
		PostID:        post.ID,
		InstitutionID: sess.InstitutionID,
		AuthorID:      sess.ActorID,
		Body:          nc.Body,
		CreatedAt:     NowFunc().UTC(),
	})
}

// DeleteComment is allowed to the comment's institution and to the post's institution.
func (svc *Service) DeleteComment(ctx context.Context, sess core.Session, id string) error {
	cmt, err := svc.repo.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err = sess.CheckWrite(cmt.InstitutionID); err != nil {
		if err == core.ErrReadOnly {
			return err
		}
		post, pErr := svc.repo.GetPost(ctx, cmt.PostID)
		if pErr != nil {
			return errors.Wrap(pErr, "finding post")
		}
		if err = sess.CheckWrite(post.InstitutionID); err != nil {
			return err
		}
	}
	return svc.repo.DeleteComment(ctx, cmt.ID)
}
