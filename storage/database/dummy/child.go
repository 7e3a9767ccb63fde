package dummydb

import (
	"context"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/institution"
)

type childRepository struct {
	db *DB
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(db *DB) child.Repository {
	return &childRepository{db: db}
}

var (
	childrenTable = string(institution.TableChildren)
	notesTable    = string(institution.TableChildNotes)
	photosTable   = string(institution.TableChildPhotos)
)

func (repo *childRepository) CreateChild(_ context.Context, chd child.Child, _ ...core.DBExecutor) (child.Child, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(childrenTable, OpInsert); err != nil {
		return child.Child{}, err
	}
	chd.ID = newID()
	repo.db.tables.Children[chd.ID] = chd
	return chd, nil
}

func (repo *childRepository) GetChild(_ context.Context, id string, _ ...core.DBExecutor) (child.Child, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(childrenTable, OpSelect); err != nil {
		return child.Child{}, err
	}
	if chd, ok := repo.db.tables.Children[id]; ok {
		return chd, nil
	}
	return child.Child{}, child.ErrNotFound
}

func (repo *childRepository) QueryChildren(
	_ context.Context,
	institutionID string,
	filter *child.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]child.Child, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(childrenTable, OpSelect); err != nil {
		return nil, err
	}
	children := make([]child.Child, 0)
	for _, chd := range repo.db.tables.Children {
		if chd.InstitutionID != institutionID {
			continue
		}
		if filter != nil {
			if filter.Search != "" && !contains(chd.Name, filter.Search) {
				continue
			}
			if filter.Sheltered != nil && chd.IsSheltered() != *filter.Sheltered {
				continue
			}
		}
		children = append(children, chd)
	}
	sortRows(children, ordering, comparers[child.Child]{
		"name":           func(a, b child.Child) int { return cmpStrings(a.Name, b.Name) },
		"birth_date":     func(a, b child.Child) int { return strings.Compare(a.BirthDate.String, b.BirthDate.String) },
		"admission_date": func(a, b child.Child) int { return strings.Compare(a.AdmissionDate.String, b.AdmissionDate.String) },
		"created_at":     func(a, b child.Child) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, func(a, b child.Child) int { return cmpStrings(a.Name, b.Name) })
	return children, nil
}

func (repo *childRepository) UpdateChild(_ context.Context, chd child.Child, _ ...core.DBExecutor) (child.Child, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(childrenTable, OpUpdate); err != nil {
		return child.Child{}, err
	}
	if _, ok := repo.db.tables.Children[chd.ID]; !ok {
		return child.Child{}, child.ErrNotFound
	}
	repo.db.tables.Children[chd.ID] = chd
	return chd, nil
}

func (repo *childRepository) DeleteChild(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(childrenTable)
	if err := repo.db.fault(childrenTable, OpDelete); err != nil {
		return err
	}
	if dep := repo.db.childDependent(id); dep != "" {
		return blocked(dep)
	}
	repo.db.unlinkTasks(id)
	delete(repo.db.tables.Children, id)
	return nil
}

// unlinkTasks emulates ON DELETE SET NULL of scheduled_tasks.child_id. Must be called with db.mu held.
func (db *DB) unlinkTasks(childID string) {
	for id, task := range db.tables.Tasks {
		if task.ChildID.Valid && task.ChildID.String == childID {
			task.ChildID = null.String{}
			db.tables.Tasks[id] = task
		}
	}
}

// childDependent names a table still referencing child id. Must be called with db.mu held.
func (db *DB) childDependent(id string) string {
	t := &db.tables
	for _, cf := range t.CaseFiles {
		if cf.ChildID == id {
			return string(institution.TableCaseFiles)
		}
	}
	for _, n := range t.Notes {
		if n.ChildID == id {
			return notesTable
		}
	}
	for _, p := range t.Photos {
		if p.ChildID == id {
			return photosTable
		}
	}
	return ""
}

func (repo *childRepository) CreateNote(_ context.Context, note child.Note, _ ...core.DBExecutor) (child.Note, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(notesTable, OpInsert); err != nil {
		return child.Note{}, err
	}
	note.ID = newID()
	repo.db.tables.Notes[note.ID] = note
	return note, nil
}

func (repo *childRepository) GetNote(_ context.Context, id string, _ ...core.DBExecutor) (child.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if note, ok := repo.db.tables.Notes[id]; ok {
		return note, nil
	}
	return child.Note{}, child.ErrNoteNotFound
}

func (repo *childRepository) QueryNotes(_ context.Context, childID string, _ ...core.DBExecutor) ([]child.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(notesTable, OpSelect); err != nil {
		return nil, err
	}
	notes := make([]child.Note, 0)
	for _, n := range repo.db.tables.Notes {
		if n.ChildID == childID {
			notes = append(notes, n)
		}
	}
	sortRows(notes, nil, nil, func(a, b child.Note) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return notes, nil
}

func (repo *childRepository) DeleteNote(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(notesTable)
	if err := repo.db.fault(notesTable, OpDelete); err != nil {
		return err
	}
	delete(repo.db.tables.Notes, id)
	return nil
}

func (repo *childRepository) CreatePhoto(_ context.Context, photo child.Photo, _ ...core.DBExecutor) (child.Photo, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(photosTable, OpInsert); err != nil {
		return child.Photo{}, err
	}
	photo.ID = newID()
	repo.db.tables.Photos[photo.ID] = photo
	return photo, nil
}

func (repo *childRepository) GetPhoto(_ context.Context, id string, _ ...core.DBExecutor) (child.Photo, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if photo, ok := repo.db.tables.Photos[id]; ok {
		return photo, nil
	}
	return child.Photo{}, child.ErrPhotoNotFound
}

func (repo *childRepository) QueryPhotos(_ context.Context, childID string, _ ...core.DBExecutor) ([]child.Photo, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(photosTable, OpSelect); err != nil {
		return nil, err
	}
	photos := make([]child.Photo, 0)
	for _, p := range repo.db.tables.Photos {
		if p.ChildID == childID {
			photos = append(photos, p)
		}
	}
	sortRows(photos, nil, nil, func(a, b child.Photo) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return photos, nil
}

func (repo *childRepository) DeletePhoto(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(photosTable)
	if err := repo.db.fault(photosTable, OpDelete); err != nil {
		return err
	}
	delete(repo.db.tables.Photos, id)
	return nil
}
