package institution

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("institution")

	NowFunc = time.Now // mockable
)

// Table names a relation owned, directly or not, by an institution.
type Table string

const (
	TableCaseFileHistory   Table = "case_file_history"
	TableChildPhotos       Table = "child_photos"
	TableChildNotes        Table = "child_notes"
	TableCaseFiles         Table = "case_files"
	TableChildren          Table = "children"
	TableScheduledTasks    Table = "scheduled_tasks"
	TableFinancialRecords  Table = "financial_records"
	TableCommunityComments Table = "community_comments"
	TableCommunityPosts    Table = "community_posts"
	TableInvites           Table = "invites"
	TableProfiles          Table = "profiles"
	TableInstitutions      Table = "institutions"
)

// CascadeOrder lists the dependents of an institution in the order they must be purged:
// every relation comes before the relations it references.
var CascadeOrder = []Table{
	TableCaseFileHistory,
	TableChildPhotos,
	TableChildNotes,
	TableCaseFiles,
	TableChildren,
	TableScheduledTasks,
	TableFinancialRecords,
	TableCommunityComments,
	TableCommunityPosts,
	TableInvites,
	TableProfiles,
}

type (
	Repository interface {
		CreateInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Institution, error)
		GetInstitution(ctx context.Context, id string, exec ...core.DBExecutor) (Institution, error)
		// QueryInstitutions does a case-insensitive match of QueryFilter.Search on Name and City.
		QueryInstitutions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Institution, error)
		UpdateInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Institution, error)
		DeleteInstitution(ctx context.Context, id string, exec ...core.DBExecutor) error

		// PurgeTable deletes every row of `table` owned by the institution, returning how many went.
		// For TableCommunityComments this includes comments other institutions left on its posts.
		PurgeTable(ctx context.Context, table Table, institutionID string, exec ...core.DBExecutor) (int64, error)
	}

	Service struct {
		tx     core.Transactor
		repo   Repository
		blobs  core.BlobStore
		logger core.Logger
	}
)

func NewService(tx core.Transactor, repo Repository, blobs core.BlobStore, logger core.Logger) *Service {
	return &Service{tx: tx, repo: repo, blobs: blobs, logger: logger}
}

func (svc *Service) Create(ctx context.Context, sess core.Session, ni NewInstitution) (Institution, error) {
	if !sess.IsAdmin() || sess.IsReadOnly() {
		return Institution{}, core.ErrPermissionDenied
	}
	now := NowFunc().UTC()
	return svc.repo.CreateInstitution(ctx, Institution{
		Name:      ni.Name,
		Document:  ni.Document,
		City:      ni.City,
		State:     ni.State,
		Phone:     ni.Phone,
		Email:     ni.Email,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Get returns any institution: the directory is public to authenticated profiles.
func (svc *Service) Get(ctx context.Context, sess core.Session, id string) (Institution, error) {
	if !sess.IsAuthenticated() {
		return Institution{}, core.ErrPermissionDenied
	}
	return svc.repo.GetInstitution(ctx, id)
}

func (svc *Service) Query(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]Institution, error) {
	if !sess.IsAuthenticated() {
		return nil, core.ErrPermissionDenied
	}
	ordering = core.OrderingAllowed(ordering, "name", "city", "created_at")
	return svc.repo.QueryInstitutions(ctx, filter, ordering)
}

// Update is open to platform admins and to the coordinators of the institution.
func (svc *Service) Update(ctx context.Context, sess core.Session, orig Institution, ui UpdateInstitution) (Institution, error) {
	if !sess.CanManageTeam(orig.ID) {
		if sess.IsReadOnly() {
			return Institution{}, core.ErrReadOnly
		}
		return Institution{}, core.ErrPermissionDenied
	}
	inst := orig
	inst.Name = ui.Name
	inst.Document = ui.Document
	inst.City = ui.City
	inst.State = ui.State
	inst.Phone = ui.Phone
	inst.Email = ui.Email
	inst.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateInstitution(ctx, inst)
}

// Delete removes an institution after purging all its dependents in CascadeOrder, in one transaction.
// When a step is rejected the whole purge rolls back and a *core.PersistenceError names the step's table.
// Stored files are removed once the transaction committed; failures there are only logged.
func (svc *Service) Delete(ctx context.Context, sess core.Session, id string) error {
	if !sess.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if sess.IsReadOnly() {
		return core.ErrReadOnly
	}
	inst, err := svc.repo.GetInstitution(ctx, id)
	if err != nil {
		return err
	}
	return svc.purge(ctx, inst)
}

func (svc *Service) purge(ctx context.Context, inst Institution) error {
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		for _, table := range CascadeOrder {
			n, err := svc.repo.PurgeTable(ctx, table, inst.ID, exec)
			if err != nil {
				return stepError(table, err)
			}
			svc.logger.Debug(fmt.Sprintf("institution %s: purged %d rows from %s", inst.ID, n, table))
		}
		if err := svc.repo.DeleteInstitution(ctx, inst.ID, exec); err != nil {
			return stepError(TableInstitutions, err)
		}
		return nil
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("deleting institution %s: %v", inst.ID, err), err)
		return err
	}

	svc.removeBlobs(ctx, inst.ID)
	svc.logger.Info(fmt.Sprintf("institution %s (%s) deleted", inst.ID, inst.Name))
	return nil
}

func (svc *Service) removeBlobs(ctx context.Context, institutionID string) {
	if svc.blobs == nil {
		return
	}
	blobs, err := svc.blobs.List(ctx, core.InstitutionBlobPrefix(institutionID))
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("listing blobs of institution %s: %v", institutionID, err), err)
		return
	}
	for _, b := range blobs {
		if err = svc.blobs.Delete(ctx, b.Key); err != nil {
			svc.logger.Warn(fmt.Sprintf("deleting blob %s: %v", b.Key, err), err)
		}
	}
}

// stepError attributes a failed cascade step to its table.
func stepError(table Table, err error) error {
	if pErr, ok := core.AsPersistenceError(err); ok {
		err = pErr.Err
	}
	return &core.PersistenceError{Table: string(table), Err: errors.Cause(err)}
}
