package community

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/acolher/core"
)

// Post is a message on the board shared by every institution.
type Post struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	AuthorID      string    `json:"author_id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC

	Comments []Comment `json:"comments,omitempty"`
}

type Comment struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post_id"`
	InstitutionID string    `json:"institution_id"`
	AuthorID      string    `json:"author_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

type NewPost struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Body = core.CleanString(np.Body)
	return validate.Struct(np)
}

type UpdatePost struct {
	Title string `json:"title" validate:"omitempty,max=200"`
	Body  string `json:"body"`
}

func (up *UpdatePost) Validate(orig Post, validate *validator.Validate) error {
	if title := core.CleanString(up.Title); title != "" {
		up.Title = title
	} else {
		up.Title = orig.Title
	}
	if body := core.CleanString(up.Body); body != "" {
		up.Body = body
	} else {
		up.Body = orig.Body
	}
	return validate.Struct(up)
}

type NewComment struct {
	Body string `json:"body" validate:"required"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search        string `query:"search"`
	InstitutionID string `query:"institution_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.InstitutionID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.InstitutionID = core.CleanString(qf.InstitutionID)
}
