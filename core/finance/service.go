package finance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("financial record")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		// QueryRecords lists the records of an institution matching filter.
		QueryRecords(ctx context.Context, institutionID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		DeleteRecord(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, sess core.Session, nr NewRecord) (Record, error) {
	if err := sess.CheckWrite(sess.InstitutionID); err != nil {
		return Record{}, err
	}
	now := NowFunc().UTC()
	return svc.repo.CreateRecord(ctx, Record{
		InstitutionID: sess.InstitutionID,
		Kind:          nr.Kind,
		Category:      nr.Category,
		Description:   nr.Description,
		AmountCents:   nr.AmountCents,
		Date:          nr.Date,
		CreatedBy:     sess.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) Get(ctx context.Context, sess core.Session, id string) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !sess.CanRead(rec.InstitutionID) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (svc *Service) Query(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.query(ctx, sess.ReadScope(), filter, ordering)
}

func (svc *Service) query(ctx context.Context, institutionID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	if institutionID == "" {
		return []Record{}, nil
	}
	ordering = core.OrderingAllowed(ordering, "date", "amount_cents", "category", "created_at")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "date", Ascending: true}}
	}
	return svc.repo.QueryRecords(ctx, institutionID, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, sess core.Session, orig Record, ur UpdateRecord) (Record, error) {
	if err := sess.CheckWrite(orig.InstitutionID); err != nil {
		return Record{}, err
	}
	rec := orig
	rec.Kind = ur.Kind
	rec.Category = ur.Category
	rec.Description = ur.Description
	rec.AmountCents = ur.AmountCents
	rec.Date = ur.Date
	rec.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateRecord(ctx, rec)
}

func (svc *Service) Delete(ctx context.Context, sess core.Session, rec Record) error {
	if err := sess.CheckWrite(rec.InstitutionID); err != nil {
		return err
	}
	return svc.repo.DeleteRecord(ctx, rec.ID)
}

// Summary totals the records visible to the session that match filter.
func (svc *Service) Summary(ctx context.Context, sess core.Session, filter *QueryFilter) (Summary, error) {
	recs, err := svc.Query(ctx, sess, filter, nil)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying records")
	}
	sum := Summarize(recs)
	if filter != nil {
		sum.From, sum.To = filter.From, filter.To
	}
	return sum, nil
}

// Summarize totals recs.
func Summarize(recs []Record) Summary {
	var sum Summary
	for _, r := range recs {
		switch r.Kind {
		case KindIncome:
			sum.IncomeCents += r.AmountCents
		case KindExpense:
			sum.ExpenseCents += r.AmountCents
		}
	}
	sum.BalanceCents = sum.IncomeCents - sum.ExpenseCents
	sum.Count = len(recs)
	return sum
}

// Export renders the records visible to the session that match filter as an xlsx workbook.
func (svc *Service) Export(ctx context.Context, sess core.Session, filter *QueryFilter) ([]byte, error) {
	return svc.ExportInstitution(ctx, sess.ReadScope(), filter)
}

// ExportInstitution renders the records of institutionID without session scoping (admin CLI).
func (svc *Service) ExportInstitution(ctx context.Context, institutionID string, filter *QueryFilter) ([]byte, error) {
	recs, err := svc.query(ctx, institutionID, filter, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return WriteWorkbook(recs)
}
