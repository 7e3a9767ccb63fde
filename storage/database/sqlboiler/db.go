package boiledrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
)

// postgres error codes
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
}

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// newQuery starts a postgres query on table.
func newQuery(table string, mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, append(mods, qm.From(table))...)
	return q
}

func execQuery(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int64, error) {
	res, err := queries.Raw(query, args...).ExecContext(ctx, exe)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// orderBy maps a service ordering onto columns. Unknown fields are skipped.
func orderBy(ordering []core.DBOrdering, columns map[string]string) []qm.QueryMod {
	if len(ordering) == 0 {
		return nil
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(orderList) == 0 {
		return nil
	}
	return []qm.QueryMod{qm.OrderBy(strings.Join(orderList, ", "))}
}

func ilike(search string) string {
	return "%" + search + "%"
}

// trapErr maps "no rows" to notFound and constraint violations to *core.PersistenceError.
func trapErr(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return &core.PersistenceError{Table: pqErr.Table, Err: pqErr}
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

// dateColumn selects a postgres date as YYYY-MM-DD.
func dateColumn(col string) string {
	return "to_char(" + col + ", 'YYYY-MM-DD') AS " + col
}
