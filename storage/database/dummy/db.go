package dummydb

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
	"github.com/trezcool/acolher/core/schedule"
)

// Operations that can be made to fail with DB.FailOn.
const (
	OpInsert = "insert"
	OpSelect = "select"
	OpUpdate = "update"
	OpDelete = "delete"
)

type (
	// DB is an in-memory store with the relations of the postgres schema.
	// Foreign keys are emulated on delete, so out-of-order deletes are rejected like postgres would.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex

		tables tables

		faults    map[string]error
		deleteLog []string
	}

	tables struct {
		Institutions map[string]institution.Institution
		Profiles     map[string]profile.Profile
		Invites      map[string]profile.Invite
		Children     map[string]child.Child
		Notes        map[string]child.Note
		Photos       map[string]child.Photo
		CaseFiles    map[string]casefile.CaseFile
		History      map[string]casefile.HistoryEntry
		Posts        map[string]community.Post
		Comments     map[string]community.Comment
		Tasks        map[string]schedule.Task
		Records      map[string]finance.Record
	}
)

func Open() *DB {
	return &DB{
		tables: tables{
			Institutions: make(map[string]institution.Institution),
			Profiles:     make(map[string]profile.Profile),
			Invites:      make(map[string]profile.Invite),
			Children:     make(map[string]child.Child),
			Notes:        make(map[string]child.Note),
			Photos:       make(map[string]child.Photo),
			CaseFiles:    make(map[string]casefile.CaseFile),
			History:      make(map[string]casefile.HistoryEntry),
			Posts:        make(map[string]community.Post),
			Comments:     make(map[string]community.Comment),
			Tasks:        make(map[string]schedule.Task),
			Records:      make(map[string]finance.Record),
		},
		faults: make(map[string]error),
	}
}

// FailOn makes every `op` on `table` return err until ClearFaults.
func (db *DB) FailOn(table, op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[table+":"+op] = err
}

func (db *DB) ClearFaults() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults = make(map[string]error)
}

// fault must be called with db.mu held.
func (db *DB) fault(table, op string) error {
	return db.faults[table+":"+op]
}

// DeleteLog lists the tables deletes were issued against, in order.
func (db *DB) DeleteLog() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]string(nil), db.deleteLog...)
}

func (db *DB) ResetDeleteLog() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.deleteLog = nil
}

// logDelete must be called with db.mu held.
func (db *DB) logDelete(table string) {
	db.deleteLog = append(db.deleteLog, table)
}

// Flush empties every table.
func (db *DB) Flush() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = fresh.tables
	db.deleteLog = nil
}

// InTx runs fn against db; every table is restored to its prior state when fn fails.
// Transactions are serialized.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func (t tables) clone() tables {
	cp := tables{
		Institutions: maps.Clone(t.Institutions),
		Profiles:     maps.Clone(t.Profiles),
		Invites:      maps.Clone(t.Invites),
		Children:     maps.Clone(t.Children),
		Notes:        maps.Clone(t.Notes),
		Photos:       maps.Clone(t.Photos),
		CaseFiles:    make(map[string]casefile.CaseFile, len(t.CaseFiles)),
		History:      make(map[string]casefile.HistoryEntry, len(t.History)),
		Posts:        maps.Clone(t.Posts),
		Comments:     maps.Clone(t.Comments),
		Tasks:        maps.Clone(t.Tasks),
		Records:      maps.Clone(t.Records),
	}
	for id, cf := range t.CaseFiles {
		cp.CaseFiles[id] = deepCopy(cf)
	}
	for id, entry := range t.History {
		cp.History[id] = deepCopy(entry)
	}
	return cp
}

func newID() string {
	return uuid.New().String()
}

// deepCopy returns a copy of v sharing no slices with it. v must survive a JSON round trip.
func deepCopy[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("dummydb: copying %T: %v", v, err))
	}
	var cp T
	if err = json.Unmarshal(data, &cp); err != nil {
		panic(fmt.Sprintf("dummydb: copying %T: %v", v, err))
	}
	return cp
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// comparers maps an ordering field to a three-way comparison.
type comparers[T any] map[string]func(a, b T) int

// sortRows orders rows by `ordering`, falling back on `fallback` for ties and unknown fields.
func sortRows[T any](rows []T, ordering []core.DBOrdering, cmps comparers[T], fallback func(a, b T) int) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return fallback(rows[i], rows[j]) < 0
	})
}

func cmpStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func blocked(table string) error {
	return &core.PersistenceError{
		Table: table,
		Err:   fmt.Errorf("update or delete violates foreign key constraint on table %q", table),
	}
}
