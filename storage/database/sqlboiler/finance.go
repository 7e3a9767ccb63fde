package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/finance"
)

var recordColumns = []string{
	"id", "institution_id", "kind", "category", "description", "amount_cents",
	dateColumn("date"), "created_by", "created_at", "updated_at",
}

type recordRow struct {
	ID            string    `boil:"id"`
	InstitutionID string    `boil:"institution_id"`
	Kind          string    `boil:"kind"`
	Category      string    `boil:"category"`
	Description   string    `boil:"description"`
	AmountCents   int64     `boil:"amount_cents"`
	Date          string    `boil:"date"`
	CreatedBy     string    `boil:"created_by"`
	CreatedAt     time.Time `boil:"created_at"`
	UpdatedAt     time.Time `boil:"updated_at"`
}

func (r recordRow) unboil() finance.Record {
	return finance.Record{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		Kind:          finance.Kind(r.Kind),
		Category:      r.Category,
		Description:   r.Description,
		AmountCents:   r.AmountCents,
		Date:          r.Date,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type financeRepository struct {
	repository
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(exec core.DBExecutor) *financeRepository {
	return &financeRepository{repository{exec: exec}}
}

func (repo financeRepository) CreateRecord(ctx context.Context, rec finance.Record, exec ...core.DBExecutor) (finance.Record, error) {
	rec.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO financial_records (id, institution_id, kind, category, description, amount_cents, date,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.InstitutionID, string(rec.Kind), rec.Category, rec.Description, rec.AmountCents, rec.Date,
		rec.CreatedBy, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return finance.Record{}, trapErr(err, nil, "inserting financial record")
	}
	return rec, nil
}

func (repo financeRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return finance.Record{}, finance.ErrNotFound
	}
	var row recordRow
	err := newQuery("financial_records", qm.Select(recordColumns...), qm.Where("id = ?", id), qm.Limit(1)).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return finance.Record{}, trapErr(err, finance.ErrNotFound, "finding financial record")
	}
	return row.unboil(), nil
}

func (repo financeRepository) QueryRecords(
	ctx context.Context,
	institutionID string,
	filter *finance.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]finance.Record, error) {
	mods := []qm.QueryMod{
		qm.Select(recordColumns...),
		qm.Where("institution_id = ?", institutionID),
	}
	if filter != nil {
		if filter.Kind != "" {
			mods = append(mods, qm.Where("kind = ?", string(filter.Kind)))
		}
		if filter.Category != "" {
			mods = append(mods, qm.Where("category = ?", filter.Category))
		}
		if filter.From != "" {
			mods = append(mods, qm.Where("financial_records.date >= ?", filter.From))
		}
		if filter.To != "" {
			mods = append(mods, qm.Where("financial_records.date <= ?", filter.To))
		}
	}
	if ord := orderBy(ordering, map[string]string{
		"date":         "date",
		"amount_cents": "amount_cents",
		"category":     "category",
		"created_at":   "created_at",
	}); ord != nil {
		mods = append(mods, ord...)
	} else {
		mods = append(mods, qm.OrderBy("created_at ASC"))
	}

	var rows []recordRow
	if err := newQuery("financial_records", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying financial records")
	}
	recs := make([]finance.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.unboil())
	}
	return recs, nil
}

func (repo financeRepository) UpdateRecord(ctx context.Context, rec finance.Record, exec ...core.DBExecutor) (finance.Record, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE financial_records SET kind = $2, category = $3, description = $4, amount_cents = $5, date = $6, updated_at = $7
		WHERE id = $1`,
		rec.ID, string(rec.Kind), rec.Category, rec.Description, rec.AmountCents, rec.Date, rec.UpdatedAt.UTC())
	if err != nil {
		return finance.Record{}, errors.Wrap(err, "updating financial record")
	}
	if n == 0 {
		return finance.Record{}, finance.ErrNotFound
	}
	return rec, nil
}

func (repo financeRepository) DeleteRecord(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM financial_records WHERE id = $1`, id)
	return trapErr(err, finance.ErrNotFound, "deleting financial record")
}
