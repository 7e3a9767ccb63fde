package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/schedule"
)

var taskColumns = []string{
	"id", "institution_id", "child_id", "assignee_id", "title", "description",
	"starts_at", "ends_at", "done", "created_by", "created_at", "updated_at",
}

type taskRow struct {
	ID            string      `boil:"id"`
	InstitutionID string      `boil:"institution_id"`
	ChildID       null.String `boil:"child_id"`
	AssigneeID    null.String `boil:"assignee_id"`
	Title         string      `boil:"title"`
	Description   string      `boil:"description"`
	StartsAt      time.Time   `boil:"starts_at"`
	EndsAt        null.Time   `boil:"ends_at"`
	Done          bool        `boil:"done"`
	CreatedBy     string      `boil:"created_by"`
	CreatedAt     time.Time   `boil:"created_at"`
	UpdatedAt     time.Time   `boil:"updated_at"`
}

func (r taskRow) unboil() schedule.Task {
	return schedule.Task{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		ChildID:       r.ChildID,
		AssigneeID:    r.AssigneeID,
		Title:         r.Title,
		Description:   r.Description,
		StartsAt:      r.StartsAt.UTC(),
		EndsAt:        utcNullTime(r.EndsAt),
		Done:          r.Done,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type taskRepository struct {
	repository
}

var _ schedule.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(exec core.DBExecutor) *taskRepository {
	return &taskRepository{repository{exec: exec}}
}

func (repo taskRepository) CreateTask(ctx context.Context, task schedule.Task, exec ...core.DBExecutor) (schedule.Task, error) {
	task.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO scheduled_tasks (id, institution_id, child_id, assignee_id, title, description,
			starts_at, ends_at, done, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID, task.InstitutionID, task.ChildID, task.AssigneeID, task.Title, task.Description,
		task.StartsAt.UTC(), utcNullTime(task.EndsAt), task.Done, task.CreatedBy, task.CreatedAt.UTC(), task.UpdatedAt.UTC())
	if err != nil {
		return schedule.Task{}, trapErr(err, nil, "inserting task")
	}
	return task, nil
}

func (repo taskRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (schedule.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Task{}, schedule.ErrNotFound
	}
	var row taskRow
	err := newQuery("scheduled_tasks", qm.Select(taskColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return schedule.Task{}, trapErr(err, schedule.ErrNotFound, "finding task")
	}
	return row.unboil(), nil
}

func (repo taskRepository) QueryTasks(
	ctx context.Context,
	institutionID string,
	filter *schedule.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]schedule.Task, error) {
	mods := []qm.QueryMod{
		qm.Select(taskColumns...),
		qm.Where("institution_id = ?", institutionID),
	}
	if filter != nil {
		if !filter.From.IsZero() {
			mods = append(mods, qm.Where("starts_at >= ?", filter.From.UTC()))
		}
		if !filter.To.IsZero() {
			mods = append(mods, qm.Where("starts_at <= ?", filter.To.UTC()))
		}
		if filter.Done != nil {
			mods = append(mods, qm.Where("done = ?", *filter.Done))
		}
		if filter.ChildID != "" {
			mods = append(mods, qm.Where("child_id = ?", filter.ChildID))
		}
	}
	if ord := orderBy(ordering, map[string]string{"starts_at": "starts_at", "title": "title", "created_at": "created_at"}); ord != nil {
		mods = append(mods, ord...)
	} else {
		mods = append(mods, qm.OrderBy("starts_at ASC"))
	}

	var rows []taskRow
	if err := newQuery("scheduled_tasks", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]schedule.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.unboil())
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, task schedule.Task, exec ...core.DBExecutor) (schedule.Task, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE scheduled_tasks SET child_id = $2, assignee_id = $3, title = $4, description = $5,
			starts_at = $6, ends_at = $7, done = $8, updated_at = $9
		WHERE id = $1`,
		task.ID, task.ChildID, task.AssigneeID, task.Title, task.Description,
		task.StartsAt.UTC(), utcNullTime(task.EndsAt), task.Done, task.UpdatedAt.UTC())
	if err != nil {
		return schedule.Task{}, trapErr(err, nil, "updating task")
	}
	if n == 0 {
		return schedule.Task{}, schedule.ErrNotFound
	}
	return task, nil
}

func (repo taskRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM scheduled_tasks WHERE id = $1`, id)
	return trapErr(err, schedule.ErrNotFound, "deleting task")
}
