package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/profile"
)

const profileEmailKey = "profiles_email_key"

var (
	profileColumns = []string{
		"id", "institution_id", "name", "email", "role", "position", "phone", "is_active",
		"password_hash", "created_at", "updated_at", "last_login",
	}
	inviteColumns = []string{"id", "institution_id", "email", "role", "invited_by", "created_at", "accepted_at"}
)

type (
	profileRow struct {
		ID            string      `boil:"id"`
		InstitutionID null.String `boil:"institution_id"`
		Name          string      `boil:"name"`
		Email         string      `boil:"email"`
		Role          string      `boil:"role"`
		Position      string      `boil:"position"`
		Phone         string      `boil:"phone"`
		IsActive      bool        `boil:"is_active"`
		PasswordHash  []byte      `boil:"password_hash"`
		CreatedAt     time.Time   `boil:"created_at"`
		UpdatedAt     time.Time   `boil:"updated_at"`
		LastLogin     null.Time   `boil:"last_login"`
	}

	inviteRow struct {
		ID            string    `boil:"id"`
		InstitutionID string    `boil:"institution_id"`
		Email         string    `boil:"email"`
		Role          string    `boil:"role"`
		InvitedBy     string    `boil:"invited_by"`
		CreatedAt     time.Time `boil:"created_at"`
		AcceptedAt    null.Time `boil:"accepted_at"`
	}
)

func (r profileRow) unboil() profile.Profile {
	return profile.Profile{
		ID:            r.ID,
		InstitutionID: r.InstitutionID.String,
		Name:          r.Name,
		Email:         r.Email,
		Role:          r.Role,
		Position:      r.Position,
		Phone:         r.Phone,
		IsActive:      r.IsActive,
		PasswordHash:  r.PasswordHash,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastLogin:     utcNullTime(r.LastLogin),
	}
}

func (r inviteRow) unboil() profile.Invite {
	return profile.Invite{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		Email:         r.Email,
		Role:          r.Role,
		InvitedBy:     r.InvitedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		AcceptedAt:    utcNullTime(r.AcceptedAt),
	}
}

type profileRepository struct {
	repository
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(exec core.DBExecutor) *profileRepository {
	return &profileRepository{repository{exec: exec}}
}

// trapEmailErr maps the unique email violation to profile.ErrEmailExists.
func (repo profileRepository) trapEmailErr(err error, msg string) error {
	if isUniqueViolation(err, profileEmailKey) {
		return profile.ErrEmailExists
	}
	return trapErr(err, profile.ErrNotFound, msg)
}

func (repo profileRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...profile.Profile) error {
	mods := []qm.QueryMod{qm.Where("email = ?", email)}
	if len(excluded) > 0 {
		ids := make([]interface{}, 0, len(excluded))
		for _, p := range excluded {
			ids = append(ids, p.ID)
		}
		mods = append(mods, qm.WhereNotIn("id NOT IN ?", ids...))
	}

	var count struct {
		N int64 `boil:"n"`
	}
	mods = append(mods, qm.Select("COUNT(*) AS n"))
	if err := newQuery("profiles", mods...).Bind(ctx, repo.exec, &count); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count.N > 0 {
		return profile.ErrEmailExists
	}
	return nil
}

func (repo profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	p.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO profiles (id, institution_id, name, email, role, position, phone, is_active,
			password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, null.NewString(p.InstitutionID, p.InstitutionID != ""), p.Name, p.Email, p.Role, p.Position, p.Phone,
		p.IsActive, p.PasswordHash, p.CreatedAt.UTC(), p.UpdatedAt.UTC(), utcNullTime(p.LastLogin))
	if err != nil {
		return profile.Profile{}, repo.trapEmailErr(err, "inserting profile")
	}
	return p, nil
}

func (repo profileRepository) GetProfile(ctx context.Context, filter profile.GetFilter, exec ...core.DBExecutor) (profile.Profile, error) {
	mods := []qm.QueryMod{qm.Select(profileColumns...), qm.Limit(1)}
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return profile.Profile{}, profile.ErrNotFound
		}
		mods = append(mods, qm.Where("id = ?", filter.ID))
	case filter.Email != "":
		mods = append(mods, qm.Where("email = ?", filter.Email))
	default:
		return profile.Profile{}, profile.ErrNotFound
	}

	var row profileRow
	if err := newQuery("profiles", mods...).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return profile.Profile{}, trapErr(err, profile.ErrNotFound, "finding profile")
	}
	return row.unboil(), nil
}

func (repo profileRepository) QueryProfiles(
	ctx context.Context,
	institutionID string,
	filter *profile.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]profile.Profile, error) {
	mods := []qm.QueryMod{qm.Select(profileColumns...)}
	if institutionID == "" {
		mods = append(mods, qm.Where("institution_id IS NULL"))
	} else {
		mods = append(mods, qm.Where("institution_id = ?", institutionID))
	}

	if filter != nil {
		// profiles with Name or Email matching the search keyword
		if filter.Search != "" {
			val := ilike(filter.Search)
			mods = append(mods, qm.Where("name ILIKE ? OR email ILIKE ?", val, val))
		}
		if len(filter.Roles) > 0 {
			roles := make([]interface{}, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, r)
			}
			mods = append(mods, qm.WhereIn("role IN ?", roles...))
		}
		if filter.IsActive != nil {
			mods = append(mods, qm.Where("is_active = ?", *filter.IsActive))
		}
	}

	if ord := orderBy(ordering, map[string]string{"name": "name", "email": "email", "role": "role", "created_at": "created_at"}); ord != nil {
		mods = append(mods, ord...)
	} else {
		mods = append(mods, qm.OrderBy("name ASC"))
	}

	var rows []profileRow
	if err := newQuery("profiles", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	profiles := make([]profile.Profile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.unboil())
	}
	return profiles, nil
}

func (repo profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE profiles SET name = $2, email = $3, role = $4, position = $5, phone = $6, is_active = $7,
			password_hash = COALESCE($8, password_hash), updated_at = $9, last_login = $10
		WHERE id = $1`,
		p.ID, p.Name, p.Email, p.Role, p.Position, p.Phone, p.IsActive,
		null.NewBytes(p.PasswordHash, p.PasswordHash != nil), p.UpdatedAt.UTC(), utcNullTime(p.LastLogin))
	if err != nil {
		return profile.Profile{}, repo.trapEmailErr(err, "updating profile")
	}
	if n == 0 {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (repo profileRepository) UpdateOrCreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	existing, err := repo.GetProfile(ctx, profile.GetFilter{Email: p.Email}, exec...)
	if err != nil {
		if !core.IsNotFound(err) {
			return profile.Profile{}, err
		}
		return repo.CreateProfile(ctx, p, exec...)
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	return repo.UpdateProfile(ctx, p, exec...)
}

func (repo profileRepository) DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM profiles WHERE id = $1`, id)
	return trapErr(err, profile.ErrNotFound, "deleting profile")
}

func (repo profileRepository) CreateInvite(ctx context.Context, inv profile.Invite, exec ...core.DBExecutor) (profile.Invite, error) {
	inv.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO invites (id, institution_id, email, role, invited_by, created_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.InstitutionID, inv.Email, inv.Role, inv.InvitedBy, inv.CreatedAt.UTC(), utcNullTime(inv.AcceptedAt))
	if err != nil {
		return profile.Invite{}, trapErr(err, nil, "inserting invite")
	}
	return inv, nil
}

func (repo profileRepository) GetInvite(ctx context.Context, id string, exec ...core.DBExecutor) (profile.Invite, error) {
	if _, err := uuid.Parse(id); err != nil {
		return profile.Invite{}, profile.ErrInviteNotFound
	}
	var row inviteRow
	err := newQuery("invites", qm.Select(inviteColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return profile.Invite{}, trapErr(err, profile.ErrInviteNotFound, "finding invite")
	}
	return row.unboil(), nil
}

func (repo profileRepository) QueryInvites(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]profile.Invite, error) {
	var rows []inviteRow
	err := newQuery("invites",
		qm.Select(inviteColumns...),
		qm.Where("institution_id = ?", institutionID),
		qm.OrderBy("created_at DESC"),
	).Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying invites")
	}
	invites := make([]profile.Invite, 0, len(rows))
	for _, r := range rows {
		invites = append(invites, r.unboil())
	}
	return invites, nil
}

func (repo profileRepository) UpdateInvite(ctx context.Context, inv profile.Invite, exec ...core.DBExecutor) (profile.Invite, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE invites SET role = $2, accepted_at = $3 WHERE id = $1`,
		inv.ID, inv.Role, utcNullTime(inv.AcceptedAt))
	if err != nil {
		return profile.Invite{}, errors.Wrap(err, "updating invite")
	}
	if n == 0 {
		return profile.Invite{}, profile.ErrInviteNotFound
	}
	return inv, nil
}

func utcNullTime(t null.Time) null.Time {
	if t.Valid {
		return null.TimeFrom(t.Time.UTC())
	}
	return t
}
