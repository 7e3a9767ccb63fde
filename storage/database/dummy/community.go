package dummydb

import (
	"context"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/institution"
)

type communityRepository struct {
	db *DB
}

var _ community.Repository = (*communityRepository)(nil) // interface compliance check

func NewCommunityRepository(db *DB) community.Repository {
	return &communityRepository{db: db}
}

var (
	postsTable    = string(institution.TableCommunityPosts)
	commentsTable = string(institution.TableCommunityComments)
)

func (repo *communityRepository) CreatePost(_ context.Context, post community.Post, _ ...core.DBExecutor) (community.Post, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(postsTable, OpInsert); err != nil {
		return community.Post{}, err
	}
	post.ID = newID()
	post.Comments = nil
	repo.db.tables.Posts[post.ID] = post
	return post, nil
}

func (repo *communityRepository) GetPost(_ context.Context, id string, _ ...core.DBExecutor) (community.Post, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if post, ok := repo.db.tables.Posts[id]; ok {
		return post, nil
	}
	return community.Post{}, community.ErrPostNotFound
}

func (repo *communityRepository) QueryPosts(
	_ context.Context,
	filter *community.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]community.Post, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(postsTable, OpSelect); err != nil {
		return nil, err
	}
	posts := make([]community.Post, 0)
	for _, p := range repo.db.tables.Posts {
		if filter != nil {
			if filter.Search != "" && !contains(p.Title, filter.Search) && !contains(p.Body, filter.Search) {
				continue
			}
			if filter.InstitutionID != "" && p.InstitutionID != filter.InstitutionID {
				continue
			}
		}
		posts = append(posts, p)
	}
	sortRows(posts, ordering, comparers[community.Post]{
		"title":      func(a, b community.Post) int { return cmpStrings(a.Title, b.Title) },
		"created_at": func(a, b community.Post) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at": func(a, b community.Post) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}, func(a, b community.Post) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return posts, nil
}

func (repo *communityRepository) UpdatePost(_ context.Context, post community.Post, _ ...core.DBExecutor) (community.Post, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(postsTable, OpUpdate); err != nil {
		return community.Post{}, err
	}
	if _, ok := repo.db.tables.Posts[post.ID]; !ok {
		return community.Post{}, community.ErrPostNotFound
	}
	post.Comments = nil
	repo.db.tables.Posts[post.ID] = post
	return post, nil
}

func (repo *communityRepository) DeletePost(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(postsTable)
	if err := repo.db.fault(postsTable, OpDelete); err != nil {
		return err
	}
	for _, c := range repo.db.tables.Comments {
		if c.PostID == id {
			return blocked(commentsTable)
		}
	}
	delete(repo.db.tables.Posts, id)
	return nil
}

func (repo *communityRepository) CreateComment(_ context.Context, cmt community.Comment, _ ...core.DBExecutor) (community.Comment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(commentsTable, OpInsert); err != nil {
		return community.Comment{}, err
	}
	if _, ok := repo.db.tables.Posts[cmt.PostID]; !ok {
		return community.Comment{}, community.ErrPostNotFound
	}
	cmt.ID = newID()
	repo.db.tables.Comments[cmt.ID] = cmt
	return cmt, nil
}

func (repo *communityRepository) GetComment(_ context.Context, id string, _ ...core.DBExecutor) (community.Comment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cmt, ok := repo.db.tables.Comments[id]; ok {
		return cmt, nil
	}
	return community.Comment{}, community.ErrCommentNotFound
}

func (repo *communityRepository) QueryComments(_ context.Context, postID string, _ ...core.DBExecutor) ([]community.Comment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	comments := make([]community.Comment, 0)
	for _, c := range repo.db.tables.Comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	sortRows(comments, nil, nil, func(a, b community.Comment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return comments, nil
}

func (repo *communityRepository) DeleteComment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(commentsTable)
	if err := repo.db.fault(commentsTable, OpDelete); err != nil {
		return err
	}
	delete(repo.db.tables.Comments, id)
	return nil
}

func (repo *communityRepository) DeletePostComments(_ context.Context, postID string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(commentsTable)
	if err := repo.db.fault(commentsTable, OpDelete); err != nil {
		return err
	}
	purge(repo.db.tables.Comments, func(c community.Comment) bool { return c.PostID == postID })
	return nil
}
