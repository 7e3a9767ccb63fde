package dummydb

import (
	"context"
	"strings"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) finance.Repository {
	return &financeRepository{db: db}
}

var recordsTable = string(institution.TableFinancialRecords)

func (repo *financeRepository) CreateRecord(_ context.Context, rec finance.Record, _ ...core.DBExecutor) (finance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(recordsTable, OpInsert); err != nil {
		return finance.Record{}, err
	}
	rec.ID = newID()
	repo.db.tables.Records[rec.ID] = rec
	return rec, nil
}

func (repo *financeRepository) GetRecord(_ context.Context, id string, _ ...core.DBExecutor) (finance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rec, ok := repo.db.tables.Records[id]; ok {
		return rec, nil
	}
	return finance.Record{}, finance.ErrNotFound
}

func (repo *financeRepository) QueryRecords(
	_ context.Context,
	institutionID string,
	filter *finance.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]finance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(recordsTable, OpSelect); err != nil {
		return nil, err
	}
	recs := make([]finance.Record, 0)
	for _, rec := range repo.db.tables.Records {
		if rec.InstitutionID == institutionID && filter.Match(rec) {
			recs = append(recs, rec)
		}
	}
	sortRows(recs, ordering, comparers[finance.Record]{
		"date": func(a, b finance.Record) int { return strings.Compare(a.Date, b.Date) },
		"amount_cents": func(a, b finance.Record) int {
			switch {
			case a.AmountCents < b.AmountCents:
				return -1
			case a.AmountCents > b.AmountCents:
				return 1
			}
			return 0
		},
		"category":   func(a, b finance.Record) int { return cmpStrings(a.Category, b.Category) },
		"created_at": func(a, b finance.Record) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, func(a, b finance.Record) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return recs, nil
}

func (repo *financeRepository) UpdateRecord(_ context.Context, rec finance.Record, _ ...core.DBExecutor) (finance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(recordsTable, OpUpdate); err != nil {
		return finance.Record{}, err
	}
	if _, ok := repo.db.tables.Records[rec.ID]; !ok {
		return finance.Record{}, finance.ErrNotFound
	}
	repo.db.tables.Records[rec.ID] = rec
	return rec, nil
}

func (repo *financeRepository) DeleteRecord(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(recordsTable)
	if err := repo.db.fault(recordsTable, OpDelete); err != nil {
		return err
	}
	delete(repo.db.tables.Records, id)
	return nil
}
