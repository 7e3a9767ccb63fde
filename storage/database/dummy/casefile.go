package dummydb

import (
	"context"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/institution"
)

type caseFileRepository struct {
	db *DB
}

var _ casefile.Repository = (*caseFileRepository)(nil) // interface compliance check

func NewCaseFileRepository(db *DB) casefile.Repository {
	return &caseFileRepository{db: db}
}

var (
	caseFilesTable = string(institution.TableCaseFiles)
	historyTable   = string(institution.TableCaseFileHistory)
)

func (repo *caseFileRepository) CreateCaseFile(_ context.Context, cf casefile.CaseFile, _ ...core.DBExecutor) (casefile.CaseFile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(caseFilesTable, OpInsert); err != nil {
		return casefile.CaseFile{}, err
	}
	for _, existing := range repo.db.tables.CaseFiles {
		if existing.ChildID == cf.ChildID {
			return casefile.CaseFile{}, casefile.ErrCaseFileExists
		}
	}
	cf.ID = newID()
	repo.db.tables.CaseFiles[cf.ID] = deepCopy(cf)
	return cf, nil
}

func (repo *caseFileRepository) GetCaseFile(_ context.Context, filter casefile.GetFilter, _ ...core.DBExecutor) (casefile.CaseFile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(caseFilesTable, OpSelect); err != nil {
		return casefile.CaseFile{}, err
	}
	for _, cf := range repo.db.tables.CaseFiles {
		if (filter.ID == "" || cf.ID == filter.ID) && (filter.ChildID == "" || cf.ChildID == filter.ChildID) {
			return deepCopy(cf), nil
		}
	}
	return casefile.CaseFile{}, casefile.ErrNotFound
}

func (repo *caseFileRepository) QueryCaseFiles(
	_ context.Context,
	institutionID string,
	filter *casefile.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]casefile.CaseFile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(caseFilesTable, OpSelect); err != nil {
		return nil, err
	}
	cfs := make([]casefile.CaseFile, 0)
	for _, cf := range repo.db.tables.CaseFiles {
		if cf.InstitutionID != institutionID {
			continue
		}
		if filter != nil {
			if filter.Search != "" && !contains(cf.ChildName, filter.Search) {
				continue
			}
			if filter.Status != "" && cf.Status != filter.Status {
				continue
			}
		}
		cfs = append(cfs, deepCopy(cf))
	}
	sortRows(cfs, ordering, comparers[casefile.CaseFile]{
		"child_name":     func(a, b casefile.CaseFile) int { return cmpStrings(a.ChildName, b.ChildName) },
		"status":         func(a, b casefile.CaseFile) int { return cmpStrings(string(a.Status), string(b.Status)) },
		"last_review_at": func(a, b casefile.CaseFile) int { return a.LastReviewAt.Compare(b.LastReviewAt) },
		"created_at":     func(a, b casefile.CaseFile) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at":     func(a, b casefile.CaseFile) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}, func(a, b casefile.CaseFile) int { return cmpStrings(a.ChildName, b.ChildName) })
	return cfs, nil
}

func (repo *caseFileRepository) UpdateCaseFile(_ context.Context, cf casefile.CaseFile, _ ...core.DBExecutor) (casefile.CaseFile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(caseFilesTable, OpUpdate); err != nil {
		return casefile.CaseFile{}, err
	}
	orig, ok := repo.db.tables.CaseFiles[cf.ID]
	if !ok {
		return casefile.CaseFile{}, casefile.ErrNotFound
	}
	// immutable columns
	cf.ChildID = orig.ChildID
	cf.InstitutionID = orig.InstitutionID
	cf.CreatedAt = orig.CreatedAt
	cf.CreatedBy = orig.CreatedBy

	repo.db.tables.CaseFiles[cf.ID] = deepCopy(cf)
	return cf, nil
}

func (repo *caseFileRepository) CreateHistoryEntry(_ context.Context, entry casefile.HistoryEntry, _ ...core.DBExecutor) (casefile.HistoryEntry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(historyTable, OpInsert); err != nil {
		return casefile.HistoryEntry{}, err
	}
	entry.ID = newID()
	repo.db.tables.History[entry.ID] = deepCopy(entry)
	return entry, nil
}

func (repo *caseFileRepository) GetHistoryEntry(_ context.Context, id string, _ ...core.DBExecutor) (casefile.HistoryEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(historyTable, OpSelect); err != nil {
		return casefile.HistoryEntry{}, err
	}
	if entry, ok := repo.db.tables.History[id]; ok {
		return deepCopy(entry), nil
	}
	return casefile.HistoryEntry{}, casefile.ErrHistoryNotFound
}

func (repo *caseFileRepository) QueryHistory(_ context.Context, caseFileID string, _ ...core.DBExecutor) ([]casefile.HistoryEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(historyTable, OpSelect); err != nil {
		return nil, err
	}
	entries := make([]casefile.HistoryEntry, 0)
	for _, e := range repo.db.tables.History {
		if e.CaseFileID == caseFileID {
			entries = append(entries, deepCopy(e))
		}
	}
	sortRows(entries, nil, nil, func(a, b casefile.HistoryEntry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return entries, nil
}
