package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB can open transactions; *sql.DB satisfies it.
	DB interface {
		DBExecutor
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Transactor runs fn inside a single unit of work; everything fn wrote is rolled back when it fails.
type Transactor interface {
	InTx(ctx context.Context, fn func(exec DBExecutor) error) error
}

// OrderingAllowed drops orderings on fields outside `allowed`.
func OrderingAllowed(ordering []DBOrdering, allowed ...string) []DBOrdering {
	var kept []DBOrdering
	for _, ord := range ordering {
		for _, fld := range allowed {
			if ord.Field == fld {
				kept = append(kept, ord)
				break
			}
		}
	}
	return kept
}
