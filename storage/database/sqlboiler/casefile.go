package boiledrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
)

const caseFileChildKey = "case_files_child_id_key"

var (
	caseFileColumns = []string{
		"id", "institution_id", "child_id", "status", "child_name", "content",
		"last_review_at", "created_at", "created_by", "updated_at", "updated_by",
	}
	historyColumns = []string{"id", "case_file_id", "child_id", "institution_id", "snapshot", "created_at", "created_by"}
)

type (
	caseFileRow struct {
		ID            string     `boil:"id"`
		InstitutionID string     `boil:"institution_id"`
		ChildID       string     `boil:"child_id"`
		Status        string     `boil:"status"`
		ChildName     string     `boil:"child_name"`
		Content       types.JSON `boil:"content"`
		LastReviewAt  time.Time  `boil:"last_review_at"`
		CreatedAt     time.Time  `boil:"created_at"`
		CreatedBy     string     `boil:"created_by"`
		UpdatedAt     time.Time  `boil:"updated_at"`
		UpdatedBy     string     `boil:"updated_by"`
	}

	historyRow struct {
		ID            string     `boil:"id"`
		CaseFileID    string     `boil:"case_file_id"`
		ChildID       string     `boil:"child_id"`
		InstitutionID string     `boil:"institution_id"`
		Snapshot      types.JSON `boil:"snapshot"`
		CreatedAt     time.Time  `boil:"created_at"`
		CreatedBy     string     `boil:"created_by"`
	}
)

func (r caseFileRow) unboil() (casefile.CaseFile, error) {
	cf := casefile.CaseFile{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		ChildID:       r.ChildID,
		Status:        casefile.Status(r.Status),
		LastReviewAt:  r.LastReviewAt.UTC(),
		CreatedAt:     r.CreatedAt.UTC(),
		CreatedBy:     r.CreatedBy,
		UpdatedAt:     r.UpdatedAt.UTC(),
		UpdatedBy:     r.UpdatedBy,
	}
	if err := r.Content.Unmarshal(&cf.Content); err != nil {
		return casefile.CaseFile{}, errors.Wrapf(err, "decoding content of case file %s", r.ID)
	}
	return cf, nil
}

func (r historyRow) unboil() (casefile.HistoryEntry, error) {
	entry := casefile.HistoryEntry{
		ID:            r.ID,
		CaseFileID:    r.CaseFileID,
		ChildID:       r.ChildID,
		InstitutionID: r.InstitutionID,
		CreatedAt:     r.CreatedAt.UTC(),
		CreatedBy:     r.CreatedBy,
	}
	if err := r.Snapshot.Unmarshal(&entry.Snapshot); err != nil {
		return casefile.HistoryEntry{}, errors.Wrapf(err, "decoding snapshot %s", r.ID)
	}
	return entry, nil
}

type caseFileRepository struct {
	repository
}

var _ casefile.Repository = (*caseFileRepository)(nil) // interface compliance check

func NewCaseFileRepository(exec core.DBExecutor) *caseFileRepository {
	return &caseFileRepository{repository{exec: exec}}
}

func (repo caseFileRepository) CreateCaseFile(ctx context.Context, cf casefile.CaseFile, exec ...core.DBExecutor) (casefile.CaseFile, error) {
	content, err := json.Marshal(cf.Content)
	if err != nil {
		return casefile.CaseFile{}, errors.Wrap(err, "encoding case file content")
	}
	cf.ID = uuid.New().String()
	_, err = execQuery(ctx, repo.getExec(exec),
		`INSERT INTO case_files (id, institution_id, child_id, status, child_name, content,
			last_review_at, created_at, created_by, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		cf.ID, cf.InstitutionID, cf.ChildID, string(cf.Status), cf.ChildName, types.JSON(content),
		cf.LastReviewAt.UTC(), cf.CreatedAt.UTC(), cf.CreatedBy, cf.UpdatedAt.UTC(), cf.UpdatedBy)
	if err != nil {
		if isUniqueViolation(err, caseFileChildKey) {
			return casefile.CaseFile{}, casefile.ErrCaseFileExists
		}
		return casefile.CaseFile{}, trapErr(err, nil, "inserting case file")
	}
	return cf, nil
}

func (repo caseFileRepository) GetCaseFile(ctx context.Context, filter casefile.GetFilter, exec ...core.DBExecutor) (casefile.CaseFile, error) {
	mods := []qm.QueryMod{qm.Select(caseFileColumns...), qm.Limit(1)}
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return casefile.CaseFile{}, casefile.ErrNotFound
		}
		mods = append(mods, qm.Where("id = ?", filter.ID))
	case filter.ChildID != "":
		if _, err := uuid.Parse(filter.ChildID); err != nil {
			return casefile.CaseFile{}, casefile.ErrNotFound
		}
		mods = append(mods, qm.Where("child_id = ?", filter.ChildID))
	default:
		return casefile.CaseFile{}, casefile.ErrNotFound
	}

	var row caseFileRow
	if err := newQuery("case_files", mods...).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return casefile.CaseFile{}, trapErr(err, casefile.ErrNotFound, "finding case file")
	}
	return row.unboil()
}

func (repo caseFileRepository) QueryCaseFiles(
	ctx context.Context,
	institutionID string,
	filter *casefile.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]casefile.CaseFile, error) {
	mods := []qm.QueryMod{
		qm.Select(caseFileColumns...),
		qm.Where("institution_id = ?", institutionID),
	}
	if filter != nil {
		if filter.Search != "" {
			mods = append(mods, qm.Where("child_name ILIKE ?", ilike(filter.Search)))
		}
		if filter.Status != "" {
			mods = append(mods, qm.Where("status = ?", string(filter.Status)))
		}
	}
	if ord := orderBy(ordering, map[string]string{
		"child_name":     "child_name",
		"status":         "status",
		"last_review_at": "last_review_at",
		"created_at":     "created_at",
		"updated_at":     "updated_at",
	}); ord != nil {
		mods = append(mods, ord...)
	} else {
		mods = append(mods, qm.OrderBy("child_name ASC"))
	}

	var rows []caseFileRow
	if err := newQuery("case_files", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying case files")
	}
	cfs := make([]casefile.CaseFile, 0, len(rows))
	for _, r := range rows {
		cf, err := r.unboil()
		if err != nil {
			return nil, err
		}
		cfs = append(cfs, cf)
	}
	return cfs, nil
}

// UpdateCaseFile overwrites the mutable columns: the last write wins.
func (repo caseFileRepository) UpdateCaseFile(ctx context.Context, cf casefile.CaseFile, exec ...core.DBExecutor) (casefile.CaseFile, error) {
	content, err := json.Marshal(cf.Content)
	if err != nil {
		return casefile.CaseFile{}, errors.Wrap(err, "encoding case file content")
	}
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE case_files SET status = $2, child_name = $3, content = $4, last_review_at = $5, updated_at = $6, updated_by = $7
		WHERE id = $1`,
		cf.ID, string(cf.Status), cf.ChildName, types.JSON(content), cf.LastReviewAt.UTC(), cf.UpdatedAt.UTC(), cf.UpdatedBy)
	if err != nil {
		return casefile.CaseFile{}, errors.Wrap(err, "updating case file")
	}
	if n == 0 {
		return casefile.CaseFile{}, casefile.ErrNotFound
	}
	return cf, nil
}

func (repo caseFileRepository) CreateHistoryEntry(ctx context.Context, entry casefile.HistoryEntry, exec ...core.DBExecutor) (casefile.HistoryEntry, error) {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return casefile.HistoryEntry{}, errors.Wrap(err, "encoding snapshot")
	}
	entry.ID = uuid.New().String()
	_, err = execQuery(ctx, repo.getExec(exec),
		`INSERT INTO case_file_history (id, case_file_id, child_id, institution_id, snapshot, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.CaseFileID, entry.ChildID, entry.InstitutionID, types.JSON(snapshot), entry.CreatedAt.UTC(), entry.CreatedBy)
	if err != nil {
		return casefile.HistoryEntry{}, trapErr(err, nil, "inserting history entry")
	}
	return entry, nil
}

func (repo caseFileRepository) GetHistoryEntry(ctx context.Context, id string, exec ...core.DBExecutor) (casefile.HistoryEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return casefile.HistoryEntry{}, casefile.ErrHistoryNotFound
	}
	var row historyRow
	err := newQuery("case_file_history", qm.Select(historyColumns...), qm.Where("id = ?", id), qm.Limit(1)).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return casefile.HistoryEntry{}, trapErr(err, casefile.ErrHistoryNotFound, "finding history entry")
	}
	return row.unboil()
}

func (repo caseFileRepository) QueryHistory(ctx context.Context, caseFileID string, exec ...core.DBExecutor) ([]casefile.HistoryEntry, error) {
	var rows []historyRow
	err := newQuery("case_file_history",
		qm.Select(historyColumns...),
		qm.Where("case_file_id = ?", caseFileID),
		qm.OrderBy("created_at DESC"),
	).Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	entries := make([]casefile.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.unboil()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
