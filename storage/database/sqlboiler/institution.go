package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/institution"
)

var institutionColumns = []string{"id", "name", "document", "city", "state", "phone", "email", "created_at", "updated_at"}

type institutionRow struct {
	ID        string    `boil:"id"`
	Name      string    `boil:"name"`
	Document  string    `boil:"document"`
	City      string    `boil:"city"`
	State     string    `boil:"state"`
	Phone     string    `boil:"phone"`
	Email     string    `boil:"email"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

func (r institutionRow) unboil() institution.Institution {
	return institution.Institution{
		ID:        r.ID,
		Name:      r.Name,
		Document:  r.Document,
		City:      r.City,
		State:     r.State,
		Phone:     r.Phone,
		Email:     r.Email,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type institutionRepository struct {
	repository
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(exec core.DBExecutor) *institutionRepository {
	return &institutionRepository{repository{exec: exec}}
}

// purgeQueries deletes the rows of each dependent table owned by an institution ($1).
var purgeQueries = map[institution.Table]string{
	institution.TableCaseFileHistory:  `DELETE FROM case_file_history WHERE institution_id = $1`,
	institution.TableChildPhotos:      `DELETE FROM child_photos WHERE institution_id = $1`,
	institution.TableChildNotes:       `DELETE FROM child_notes WHERE institution_id = $1`,
	institution.TableCaseFiles:        `DELETE FROM case_files WHERE institution_id = $1`,
	institution.TableChildren:         `DELETE FROM children WHERE institution_id = $1`,
	institution.TableScheduledTasks:   `DELETE FROM scheduled_tasks WHERE institution_id = $1`,
	institution.TableFinancialRecords: `DELETE FROM financial_records WHERE institution_id = $1`,
	institution.TableCommunityComments: `DELETE FROM community_comments WHERE institution_id = $1
		OR post_id IN (SELECT id FROM community_posts WHERE institution_id = $1)`,
	institution.TableCommunityPosts: `DELETE FROM community_posts WHERE institution_id = $1`,
	institution.TableInvites:        `DELETE FROM invites WHERE institution_id = $1`,
	institution.TableProfiles:       `DELETE FROM profiles WHERE institution_id = $1`,
}

func (repo institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution, exec ...core.DBExecutor) (institution.Institution, error) {
	inst.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO institutions (id, name, document, city, state, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inst.ID, inst.Name, inst.Document, inst.City, inst.State, inst.Phone, inst.Email, inst.CreatedAt.UTC(), inst.UpdatedAt.UTC())
	if err != nil {
		return institution.Institution{}, errors.Wrap(err, "inserting institution")
	}
	return inst, nil
}

func (repo institutionRepository) GetInstitution(ctx context.Context, id string, exec ...core.DBExecutor) (institution.Institution, error) {
	if _, err := uuid.Parse(id); err != nil {
		return institution.Institution{}, institution.ErrNotFound
	}
	var row institutionRow
	err := newQuery("institutions", qm.Select(institutionColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return institution.Institution{}, trapErr(err, institution.ErrNotFound, "finding institution")
	}
	return row.unboil(), nil
}

func (repo institutionRepository) QueryInstitutions(
	ctx context.Context,
	filter *institution.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]institution.Institution, error) {
	mods := []qm.QueryMod{qm.Select(institutionColumns...)}
	if filter != nil && filter.Search != "" {
		val := ilike(filter.Search)
		mods = append(mods, qm.Where("name ILIKE ? OR city ILIKE ?", val, val))
	}
	mods = append(mods, orderBy(ordering, map[string]string{"name": "name", "city": "city", "created_at": "created_at"})...)

	var rows []institutionRow
	if err := newQuery("institutions", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying institutions")
	}
	insts := make([]institution.Institution, 0, len(rows))
	for _, r := range rows {
		insts = append(insts, r.unboil())
	}
	return insts, nil
}

func (repo institutionRepository) UpdateInstitution(ctx context.Context, inst institution.Institution, exec ...core.DBExecutor) (institution.Institution, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE institutions SET name = $2, document = $3, city = $4, state = $5, phone = $6, email = $7, updated_at = $8
		WHERE id = $1`,
		inst.ID, inst.Name, inst.Document, inst.City, inst.State, inst.Phone, inst.Email, inst.UpdatedAt.UTC())
	if err != nil {
		return institution.Institution{}, errors.Wrap(err, "updating institution")
	}
	if n == 0 {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, nil
}

func (repo institutionRepository) DeleteInstitution(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM institutions WHERE id = $1`, id)
	return trapErr(err, institution.ErrNotFound, "deleting institution")
}

func (repo institutionRepository) PurgeTable(ctx context.Context, table institution.Table, institutionID string, exec ...core.DBExecutor) (int64, error) {
	query, ok := purgeQueries[table]
	if !ok {
		return 0, errors.Errorf("no purge query for table %q", table)
	}
	n, err := execQuery(ctx, repo.getExec(exec), query, institutionID)
	if err != nil {
		return 0, trapErr(err, nil, "purging "+string(table))
	}
	return n, nil
}
