package casefile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("case file")
	ErrHistoryNotFound = core.NewNotFoundError("case file history entry")
	ErrCaseFileExists  = errors.New("a case file already exists for this child")

	errInvalidMode = errors.New("mode must be one of [plain, renewal]")

	NowFunc = time.Now // mockable
)

type (
	// GetFilter selects a single CaseFile, by ID or by child.
	GetFilter struct {
		ID      string
		ChildID string
	}

	Repository interface {
		// CreateCaseFile returns ErrCaseFileExists when the child already owns one.
		CreateCaseFile(ctx context.Context, cf CaseFile, exec ...core.DBExecutor) (CaseFile, error)
		GetCaseFile(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (CaseFile, error)
		// QueryCaseFiles lists the case files of an institution.
		// QueryFilter.Search does a case-insensitive match on Content.ChildName; QueryFilter.Overdue is ignored.
		QueryCaseFiles(ctx context.Context, institutionID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]CaseFile, error)
		UpdateCaseFile(ctx context.Context, cf CaseFile, exec ...core.DBExecutor) (CaseFile, error)

		CreateHistoryEntry(ctx context.Context, entry HistoryEntry, exec ...core.DBExecutor) (HistoryEntry, error)
		GetHistoryEntry(ctx context.Context, id string, exec ...core.DBExecutor) (HistoryEntry, error)
		// QueryHistory lists the snapshots of a case file, newest first.
		QueryHistory(ctx context.Context, caseFileID string, exec ...core.DBExecutor) ([]HistoryEntry, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		children child.Repository
		cache    core.Cache // optional
		cacheTTL time.Duration
		logger   core.Logger
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	children child.Repository,
	cache core.Cache,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		children: children,
		cache:    cache,
		cacheTTL: conf.Redis.OverdueCacheTTL,
		logger:   logger,
	}
}

// ParseMode reads a save mode, defaulting to ModePlain.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(core.CleanString(s))) {
	case "", ModePlain:
		return ModePlain, nil
	case ModeRenewal:
		return ModeRenewal, nil
	}
	return "", core.NewValidationError(errInvalidMode, core.FieldError{Field: "mode", Error: errInvalidMode.Error()})
}

// Create opens the case file of a registered child. No history is written on creation.
func (svc *Service) Create(ctx context.Context, sess core.Session, nc NewCaseFile) (CaseFile, error) {
	chd, err := svc.children.GetChild(ctx, nc.ChildID)
	if err != nil {
		if errors.Cause(err) == child.ErrNotFound {
			return CaseFile{}, core.NewValidationError(err, core.FieldError{Field: "child_id", Error: err.Error()})
		}
		return CaseFile{}, errors.Wrap(err, "finding child")
	}
	if err = sess.CheckWrite(chd.InstitutionID); err != nil {
		return CaseFile{}, err
	}
	if err = nc.Content.Sanitize(); err != nil {
		return CaseFile{}, err
	}

	now := NowFunc().UTC()
	cf, err := svc.repo.CreateCaseFile(ctx, CaseFile{
		InstitutionID: chd.InstitutionID,
		ChildID:       chd.ID,
		Status:        nc.Status,
		Content:       nc.Content,
		LastReviewAt:  now,
		CreatedAt:     now,
		CreatedBy:     sess.ActorID,
		UpdatedAt:     now,
		UpdatedBy:     sess.ActorID,
	})
	if err != nil {
		if errors.Cause(err) == ErrCaseFileExists {
			return CaseFile{}, core.NewValidationError(err, core.FieldError{Field: "child_id", Error: err.Error()})
		}
		return CaseFile{}, errors.Wrap(err, "creating case file")
	}
	svc.invalidateOverdue(ctx, cf.InstitutionID)
	return cf, nil
}

// Get returns the case file of childID if it is visible to the session.
func (svc *Service) Get(ctx context.Context, sess core.Session, childID string) (CaseFile, error) {
	cf, err := svc.repo.GetCaseFile(ctx, GetFilter{ChildID: childID})
	if err != nil {
		return CaseFile{}, err
	}
	if !sess.CanRead(cf.InstitutionID) {
		return CaseFile{}, ErrNotFound
	}
	return cf, nil
}

func (svc *Service) Query(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]CaseFile, error) {
	if sess.ReadScope() == "" {
		return []CaseFile{}, nil
	}
	ordering = core.OrderingAllowed(ordering, "child_name", "status", "last_review_at", "created_at", "updated_at")
	cfs, err := svc.repo.QueryCaseFiles(ctx, sess.ReadScope(), filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying case files")
	}
	if filter != nil && filter.Overdue != nil {
		now := NowFunc()
		filtered := make([]CaseFile, 0, len(cfs))
		for _, cf := range cfs {
			if NeedsReview(cf, now) == *filter.Overdue {
				filtered = append(filtered, cf)
			}
		}
		cfs = filtered
	}
	return cfs, nil
}

// Save persists an edit of the case file of childID.
// ModeRenewal first archives the currently persisted state as a HistoryEntry; when that write fails the update
// is never attempted. Both writes share one transaction.
func (svc *Service) Save(ctx context.Context, sess core.Session, childID string, uc UpdateCaseFile, mode Mode) (CaseFile, error) {
	if mode != ModePlain && mode != ModeRenewal {
		return CaseFile{}, core.NewValidationError(errInvalidMode, core.FieldError{Field: "mode", Error: errInvalidMode.Error()})
	}
	if err := uc.Content.Sanitize(); err != nil {
		return CaseFile{}, err
	}

	var saved CaseFile
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		current, err := svc.repo.GetCaseFile(ctx, GetFilter{ChildID: childID}, exec)
		if err != nil {
			return err
		}
		if !sess.CanRead(current.InstitutionID) {
			return ErrNotFound
		}
		if err = sess.CheckWrite(current.InstitutionID); err != nil {
			return err
		}

		now := NowFunc().UTC()
		if mode == ModeRenewal {
			entry := HistoryEntry{
				CaseFileID:    current.ID,
				ChildID:       current.ChildID,
				InstitutionID: current.InstitutionID,
				Snapshot:      current,
				CreatedAt:     now,
				CreatedBy:     sess.ActorID,
			}
			if _, err = svc.repo.CreateHistoryEntry(ctx, entry, exec); err != nil {
				return errors.Wrap(err, "archiving case file")
			}
		}

		upd := current
		upd.Status = uc.Status
		if upd.Status == "" {
			upd.Status = current.Status
		}
		upd.Content = uc.Content
		upd.LastReviewAt = now
		upd.UpdatedAt = now
		upd.UpdatedBy = sess.ActorID
		saved, err = svc.repo.UpdateCaseFile(ctx, upd, exec)
		return errors.Wrap(err, "updating case file")
	})
	if err != nil {
		return CaseFile{}, err
	}
	svc.invalidateOverdue(ctx, saved.InstitutionID)
	return saved, nil
}

// Toggle checks or unchecks one checkbox-group value and saves the result as a plain edit.
func (svc *Service) Toggle(ctx context.Context, sess core.Session, childID string, tr ToggleRequest) (CaseFile, error) {
	cf, err := svc.Get(ctx, sess, childID)
	if err != nil {
		return CaseFile{}, err
	}
	uc := UpdateCaseFile{Status: cf.Status, Content: cf.Content}
	if err = uc.Content.Toggle(tr.Group, tr.Value, tr.Checked); err != nil {
		return CaseFile{}, core.NewValidationError(err, core.FieldError{Field: "group", Error: err.Error()})
	}
	return svc.Save(ctx, sess, childID, uc, ModePlain)
}

// ListHistory returns the snapshots of the case file of childID, newest first.
func (svc *Service) ListHistory(ctx context.Context, sess core.Session, childID string) ([]HistoryEntry, error) {
	cf, err := svc.Get(ctx, sess, childID)
	if err != nil {
		return nil, err
	}
	entries, err := svc.repo.QueryHistory(ctx, cf.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// ViewHistoryEntry materializes a past snapshot, read-only.
func (svc *Service) ViewHistoryEntry(ctx context.Context, sess core.Session, entryID string) (HistoryEntry, error) {
	entry, err := svc.repo.GetHistoryEntry(ctx, entryID)
	if err != nil {
		return HistoryEntry{}, err
	}
	if !sess.CanRead(entry.InstitutionID) {
		return HistoryEntry{}, ErrHistoryNotFound
	}
	return entry, nil
}

// Overdue lists the case files visible to the session that need review at now, oldest review first.
// Only the institution's case files are cached; NeedsReview is always evaluated against now.
func (svc *Service) Overdue(ctx context.Context, sess core.Session, now time.Time) ([]CaseFile, error) {
	scope := sess.ReadScope()
	if scope == "" {
		return []CaseFile{}, nil
	}

	cfs, err := svc.reviewCandidates(ctx, scope)
	if err != nil {
		return nil, err
	}
	overdue := make([]CaseFile, 0)
	for _, cf := range cfs {
		if NeedsReview(cf, now) {
			overdue = append(overdue, cf)
		}
	}
	return overdue, nil
}

// reviewCandidates returns the case files of institutionID ordered by last review, through the cache when one is set.
func (svc *Service) reviewCandidates(ctx context.Context, institutionID string) ([]CaseFile, error) {
	key := overdueKey(institutionID)
	if cached, ok := svc.cachedOverdue(ctx, key); ok {
		return cached, nil
	}

	cfs, err := svc.repo.QueryCaseFiles(ctx, institutionID, nil, []core.DBOrdering{{Field: "last_review_at", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying case files")
	}

	if svc.cache != nil {
		if data, err := json.Marshal(cfs); err == nil {
			if err = svc.cache.Set(ctx, key, string(data), svc.cacheTTL); err != nil {
				svc.logger.Warn(fmt.Sprintf("caching review candidates: %v", err), err)
			}
		}
	}
	return cfs, nil
}

func overdueKey(institutionID string) string {
	return "casefile:reviews:" + institutionID
}

func (svc *Service) cachedOverdue(ctx context.Context, key string) ([]CaseFile, bool) {
	if svc.cache == nil {
		return nil, false
	}
	data, err := svc.cache.Get(ctx, key)
	if err != nil {
		if err != core.ErrCacheMiss {
			svc.logger.Warn(fmt.Sprintf("reading overdue cache: %v", err), err)
		}
		return nil, false
	}
	var cfs []CaseFile
	if err = json.Unmarshal([]byte(data), &cfs); err != nil {
		return nil, false
	}
	return cfs, true
}

func (svc *Service) invalidateOverdue(ctx context.Context, institutionID string) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, overdueKey(institutionID)); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating overdue cache: %v", err), err)
	}
}
