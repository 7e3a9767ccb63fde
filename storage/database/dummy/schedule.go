package dummydb

import (
	"context"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/schedule"
)

type taskRepository struct {
	db *DB
}

var _ schedule.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) schedule.Repository {
	return &taskRepository{db: db}
}

var tasksTable = string(institution.TableScheduledTasks)

func (repo *taskRepository) CreateTask(_ context.Context, task schedule.Task, _ ...core.DBExecutor) (schedule.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(tasksTable, OpInsert); err != nil {
		return schedule.Task{}, err
	}
	task.ID = newID()
	repo.db.tables.Tasks[task.ID] = task
	return task, nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string, _ ...core.DBExecutor) (schedule.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if task, ok := repo.db.tables.Tasks[id]; ok {
		return task, nil
	}
	return schedule.Task{}, schedule.ErrNotFound
}

func (repo *taskRepository) QueryTasks(
	_ context.Context,
	institutionID string,
	filter *schedule.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]schedule.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(tasksTable, OpSelect); err != nil {
		return nil, err
	}
	tasks := make([]schedule.Task, 0)
	for _, task := range repo.db.tables.Tasks {
		if task.InstitutionID == institutionID && filter.Match(task) {
			tasks = append(tasks, task)
		}
	}
	sortRows(tasks, ordering, comparers[schedule.Task]{
		"starts_at":  func(a, b schedule.Task) int { return a.StartsAt.Compare(b.StartsAt) },
		"title":      func(a, b schedule.Task) int { return cmpStrings(a.Title, b.Title) },
		"created_at": func(a, b schedule.Task) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, func(a, b schedule.Task) int { return a.StartsAt.Compare(b.StartsAt) })
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, task schedule.Task, _ ...core.DBExecutor) (schedule.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(tasksTable, OpUpdate); err != nil {
		return schedule.Task{}, err
	}
	if _, ok := repo.db.tables.Tasks[task.ID]; !ok {
		return schedule.Task{}, schedule.ErrNotFound
	}
	repo.db.tables.Tasks[task.ID] = task
	return task, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(tasksTable)
	if err := repo.db.fault(tasksTable, OpDelete); err != nil {
		return err
	}
	delete(repo.db.tables.Tasks, id)
	return nil
}
