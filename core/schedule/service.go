package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("task")

	errUnknownChild = errors.New("child not found in this institution")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTask(ctx context.Context, task Task, exec ...core.DBExecutor) (Task, error)
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		// QueryTasks lists the tasks of an institution matching filter.
		QueryTasks(ctx context.Context, institutionID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Task, error)
		UpdateTask(ctx context.Context, task Task, exec ...core.DBExecutor) (Task, error)
		DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo     Repository
		children child.Repository
	}
)

func NewService(repo Repository, children child.Repository) *Service {
	return &Service{repo: repo, children: children}
}

// checkChild makes sure a referenced child belongs to institutionID.
func (svc *Service) checkChild(ctx context.Context, childID null.String, institutionID string) error {
	if !childID.Valid {
		return nil
	}
	chd, err := svc.children.GetChild(ctx, childID.String)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding child")
	}
	if err != nil || chd.InstitutionID != institutionID {
		return core.NewValidationError(errUnknownChild, core.FieldError{Field: "child_id", Error: errUnknownChild.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, sess core.Session, nt NewTask) (Task, error) {
	if err := sess.CheckWrite(sess.InstitutionID); err != nil {
		return Task{}, err
	}
	if err := svc.checkChild(ctx, nt.ChildID, sess.InstitutionID); err != nil {
		return Task{}, err
	}
	now := NowFunc().UTC()
	return svc.repo.CreateTask(ctx, Task{
		InstitutionID: sess.InstitutionID,
		ChildID:       nt.ChildID,
		AssigneeID:    nt.AssigneeID,
		Title:         nt.Title,
		Description:   nt.Description,
		StartsAt:      nt.StartsAt.UTC(),
		EndsAt:        utcTime(nt.EndsAt),
		CreatedBy:     sess.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) Get(ctx context.Context, sess core.Session, id string) (Task, error) {
	task, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !sess.CanRead(task.InstitutionID) {
		return Task{}, ErrNotFound
	}
	return task, nil
}

func (svc *Service) Query(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error) {
	if sess.ReadScope() == "" {
		return []Task{}, nil
	}
	ordering = core.OrderingAllowed(ordering, "starts_at", "title", "created_at")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "starts_at", Ascending: true}}
	}
	return svc.repo.QueryTasks(ctx, sess.ReadScope(), filter, ordering)
}

func (svc *Service) Update(ctx context.Context, sess core.Session, orig Task, ut UpdateTask) (Task, error) {
	if err := sess.CheckWrite(orig.InstitutionID); err != nil {
		return Task{}, err
	}
	if err := svc.checkChild(ctx, ut.ChildID, orig.InstitutionID); err != nil {
		return Task{}, err
	}
	task := orig
	task.ChildID = ut.ChildID
	task.AssigneeID = ut.AssigneeID
	task.Title = ut.Title
	task.Description = ut.Description
	task.StartsAt = ut.StartsAt.UTC()
	task.EndsAt = utcTime(ut.EndsAt)
	if ut.Done != nil {
		task.Done = *ut.Done
	}
	task.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateTask(ctx, task)
}

func (svc *Service) Delete(ctx context.Context, sess core.Session, task Task) error {
	if err := sess.CheckWrite(task.InstitutionID); err != nil {
		return err
	}
	return svc.repo.DeleteTask(ctx, task.ID)
}

func utcTime(t null.Time) null.Time {
	if t.Valid {
		return null.TimeFrom(t.Time.UTC())
	}
	return t
}
