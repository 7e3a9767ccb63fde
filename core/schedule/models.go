package schedule

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
)

// Task is an appointment or chore on an institution's agenda, optionally about one child.
type Task struct {
	ID            string      `json:"id"`
	InstitutionID string      `json:"institution_id"`
	ChildID       null.String `json:"child_id"`
	AssigneeID    null.String `json:"assignee_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	StartsAt      time.Time   `json:"starts_at"` // UTC
	EndsAt        null.Time   `json:"ends_at"`   // UTC
	Done          bool        `json:"done"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

type NewTask struct {
	ChildID     null.String `json:"child_id"`
	AssigneeID  null.String `json:"assignee_id"`
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description"`
	StartsAt    time.Time   `json:"starts_at" validate:"required"`
	EndsAt      null.Time   `json:"ends_at"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.ChildID = cleanRef(nt.ChildID)
	nt.AssigneeID = cleanRef(nt.AssigneeID)
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return checkPeriod(nt.StartsAt, nt.EndsAt)
}

type UpdateTask struct {
	ChildID     null.String `json:"child_id"`
	AssigneeID  null.String `json:"assignee_id"`
	Title       string      `json:"title" validate:"omitempty,max=200"`
	Description string      `json:"description"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      null.Time   `json:"ends_at"`
	Done        *bool       `json:"done"`
}

func (ut *UpdateTask) Validate(orig Task, validate *validator.Validate) error {
	ut.ChildID = cleanRef(ut.ChildID)
	ut.AssigneeID = cleanRef(ut.AssigneeID)
	if title := core.CleanString(ut.Title); title != "" {
		ut.Title = title
	} else {
		ut.Title = orig.Title
	}
	ut.Description = core.CleanString(ut.Description)
	if ut.StartsAt.IsZero() {
		ut.StartsAt = orig.StartsAt
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	return checkPeriod(ut.StartsAt, ut.EndsAt)
}

type QueryFilter struct {
	From    time.Time `query:"from"`
	To      time.Time `query:"to"`
	Done    *bool     `query:"done"`
	ChildID string    `query:"child_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.From.IsZero() && qf.To.IsZero() && qf.Done == nil && qf.ChildID == ""
}

func (qf *QueryFilter) Clean() {
	qf.ChildID = core.CleanString(qf.ChildID)
}

// Match reports whether t passes every set criterion of qf.
func (qf *QueryFilter) Match(t Task) bool {
	if qf == nil {
		return true
	}
	if !qf.From.IsZero() && t.StartsAt.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && t.StartsAt.After(qf.To) {
		return false
	}
	if qf.Done != nil && t.Done != *qf.Done {
		return false
	}
	if qf.ChildID != "" && t.ChildID.String != qf.ChildID {
		return false
	}
	return true
}

func cleanRef(ref null.String) null.String {
	if s := core.CleanString(ref.String); ref.Valid && s != "" {
		return null.StringFrom(s)
	}
	return null.String{}
}

var errEndsBeforeStart = "ends_at must not be before starts_at"

func checkPeriod(start time.Time, end null.Time) error {
	if end.Valid && end.Time.Before(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_at", Error: errEndsBeforeStart})
	}
	return nil
}
