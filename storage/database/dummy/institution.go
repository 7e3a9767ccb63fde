package dummydb

import (
	"context"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
	"github.com/trezcool/acolher/core/schedule"
)

type institutionRepository struct {
	db *DB
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *DB) institution.Repository {
	return &institutionRepository{db: db}
}

func (repo *institutionRepository) CreateInstitution(_ context.Context, inst institution.Institution, _ ...core.DBExecutor) (institution.Institution, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(string(institution.TableInstitutions), OpInsert); err != nil {
		return institution.Institution{}, err
	}
	inst.ID = newID()
	repo.db.tables.Institutions[inst.ID] = inst
	return inst, nil
}

func (repo *institutionRepository) GetInstitution(_ context.Context, id string, _ ...core.DBExecutor) (institution.Institution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(string(institution.TableInstitutions), OpSelect); err != nil {
		return institution.Institution{}, err
	}
	if inst, ok := repo.db.tables.Institutions[id]; ok {
		return inst, nil
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) QueryInstitutions(
	_ context.Context,
	filter *institution.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]institution.Institution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(string(institution.TableInstitutions), OpSelect); err != nil {
		return nil, err
	}
	insts := make([]institution.Institution, 0, len(repo.db.tables.Institutions))
	for _, inst := range repo.db.tables.Institutions {
		if filter != nil && filter.Search != "" && !contains(inst.Name, filter.Search) && !contains(inst.City, filter.Search) {
			continue
		}
		insts = append(insts, inst)
	}
	sortRows(insts, ordering, comparers[institution.Institution]{
		"name":       func(a, b institution.Institution) int { return cmpStrings(a.Name, b.Name) },
		"city":       func(a, b institution.Institution) int { return cmpStrings(a.City, b.City) },
		"created_at": func(a, b institution.Institution) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, func(a, b institution.Institution) int { return cmpStrings(a.Name, b.Name) })
	return insts, nil
}

func (repo *institutionRepository) UpdateInstitution(_ context.Context, inst institution.Institution, _ ...core.DBExecutor) (institution.Institution, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(string(institution.TableInstitutions), OpUpdate); err != nil {
		return institution.Institution{}, err
	}
	if _, ok := repo.db.tables.Institutions[inst.ID]; !ok {
		return institution.Institution{}, institution.ErrNotFound
	}
	repo.db.tables.Institutions[inst.ID] = inst
	return inst, nil
}

func (repo *institutionRepository) DeleteInstitution(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(string(institution.TableInstitutions))
	if err := repo.db.fault(string(institution.TableInstitutions), OpDelete); err != nil {
		return err
	}
	if table := repo.db.dependentOf(id); table != "" {
		return blocked(table)
	}
	delete(repo.db.tables.Institutions, id)
	return nil
}

// dependentOf names a table still holding rows of institution id. Must be called with db.mu held.
func (db *DB) dependentOf(id string) string {
	t := &db.tables
	for _, p := range t.Profiles {
		if p.InstitutionID == id {
			return string(institution.TableProfiles)
		}
	}
	for _, inv := range t.Invites {
		if inv.InstitutionID == id {
			return string(institution.TableInvites)
		}
	}
	for _, c := range t.Children {
		if c.InstitutionID == id {
			return string(institution.TableChildren)
		}
	}
	for _, p := range t.Posts {
		if p.InstitutionID == id {
			return string(institution.TableCommunityPosts)
		}
	}
	for _, c := range t.Comments {
		if c.InstitutionID == id {
			return string(institution.TableCommunityComments)
		}
	}
	for _, task := range t.Tasks {
		if task.InstitutionID == id {
			return string(institution.TableScheduledTasks)
		}
	}
	for _, r := range t.Records {
		if r.InstitutionID == id {
			return string(institution.TableFinancialRecords)
		}
	}
	return ""
}

func (repo *institutionRepository) PurgeTable(_ context.Context, table institution.Table, institutionID string, _ ...core.DBExecutor) (int64, error) {
	db := repo.db
	db.mu.Lock()
	defer db.mu.Unlock()

	db.logDelete(string(table))
	if err := db.fault(string(table), OpDelete); err != nil {
		return 0, err
	}

	t := &db.tables
	var n int64
	switch table {
	case institution.TableCaseFileHistory:
		n = purge(t.History, func(e casefile.HistoryEntry) bool { return e.InstitutionID == institutionID })
	case institution.TableChildPhotos:
		n = purge(t.Photos, func(p child.Photo) bool { return p.InstitutionID == institutionID })
	case institution.TableChildNotes:
		n = purge(t.Notes, func(nt child.Note) bool { return nt.InstitutionID == institutionID })
	case institution.TableCaseFiles:
		for _, e := range t.History {
			if e.InstitutionID == institutionID {
				return 0, blocked(string(institution.TableCaseFileHistory))
			}
		}
		n = purge(t.CaseFiles, func(cf casefile.CaseFile) bool { return cf.InstitutionID == institutionID })
	case institution.TableChildren:
		for id, c := range t.Children {
			if c.InstitutionID != institutionID {
				continue
			}
			if dep := db.childDependent(id); dep != "" {
				return 0, blocked(dep)
			}
			db.unlinkTasks(id)
		}
		n = purge(t.Children, func(c child.Child) bool { return c.InstitutionID == institutionID })
	case institution.TableScheduledTasks:
		n = purge(t.Tasks, func(task schedule.Task) bool { return task.InstitutionID == institutionID })
	case institution.TableFinancialRecords:
		n = purge(t.Records, func(r finance.Record) bool { return r.InstitutionID == institutionID })
	case institution.TableCommunityComments:
		n = purge(t.Comments, func(c community.Comment) bool {
			return c.InstitutionID == institutionID || t.Posts[c.PostID].InstitutionID == institutionID
		})
	case institution.TableCommunityPosts:
		for _, c := range t.Comments {
			if t.Posts[c.PostID].InstitutionID == institutionID {
				return 0, blocked(string(institution.TableCommunityComments))
			}
		}
		n = purge(t.Posts, func(p community.Post) bool { return p.InstitutionID == institutionID })
	case institution.TableInvites:
		n = purge(t.Invites, func(inv profile.Invite) bool { return inv.InstitutionID == institutionID })
	case institution.TableProfiles:
		n = purge(t.Profiles, func(p profile.Profile) bool { return p.InstitutionID == institutionID })
	}
	return n, nil
}

func purge[T any](table map[string]T, match func(T) bool) int64 {
	var n int64
	for id, row := range table {
		if match(row) {
			delete(table, id)
			n++
		}
	}
	return n
}
