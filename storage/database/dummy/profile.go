package dummydb

import (
	"context"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db}
}

var (
	profilesTable = string(institution.TableProfiles)
	invitesTable  = string(institution.TableInvites)
)

func (repo *profileRepository) CheckEmailUniqueness(_ context.Context, email string, excluded ...profile.Profile) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkEmail(email, excluded...)
}

// checkEmail must be called with db.mu held.
func (repo *profileRepository) checkEmail(email string, excluded ...profile.Profile) error {
	for _, p := range repo.db.tables.Profiles {
		if p.Email == email && !isExcluded(p, excluded) {
			return profile.ErrEmailExists
		}
	}
	return nil
}

func (repo *profileRepository) CreateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(profilesTable, OpInsert); err != nil {
		return profile.Profile{}, err
	}
	if err := repo.checkEmail(p.Email); err != nil {
		return profile.Profile{}, err
	}
	p.ID = newID()
	repo.db.tables.Profiles[p.ID] = p
	return p, nil
}

func (repo *profileRepository) GetProfile(_ context.Context, filter profile.GetFilter, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(profilesTable, OpSelect); err != nil {
		return profile.Profile{}, err
	}
	if filter.ID == "" && filter.Email == "" {
		return profile.Profile{}, profile.ErrNotFound
	}
	for _, p := range repo.db.tables.Profiles {
		if (filter.ID == "" || p.ID == filter.ID) && (filter.Email == "" || p.Email == filter.Email) {
			return p, nil
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) QueryProfiles(
	_ context.Context,
	institutionID string,
	filter *profile.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault(profilesTable, OpSelect); err != nil {
		return nil, err
	}
	profiles := make([]profile.Profile, 0)
	for _, p := range repo.db.tables.Profiles {
		if p.InstitutionID != institutionID {
			continue
		}
		if filter != nil {
			if filter.Search != "" && !contains(p.Name, filter.Search) && !contains(p.Email, filter.Search) {
				continue
			}
			if len(filter.Roles) > 0 && !hasRole(p, filter.Roles) {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
		}
		profiles = append(profiles, p)
	}
	sortRows(profiles, ordering, comparers[profile.Profile]{
		"name":       func(a, b profile.Profile) int { return cmpStrings(a.Name, b.Name) },
		"email":      func(a, b profile.Profile) int { return cmpStrings(a.Email, b.Email) },
		"role":       func(a, b profile.Profile) int { return cmpStrings(a.Role, b.Role) },
		"created_at": func(a, b profile.Profile) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, func(a, b profile.Profile) int { return cmpStrings(a.Name, b.Name) })
	return profiles, nil
}

func (repo *profileRepository) UpdateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(profilesTable, OpUpdate); err != nil {
		return profile.Profile{}, err
	}
	orig, ok := repo.db.tables.Profiles[p.ID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err := repo.checkEmail(p.Email, orig); err != nil {
		return profile.Profile{}, err
	}
	if p.PasswordHash == nil {
		p.PasswordHash = orig.PasswordHash
	}
	repo.db.tables.Profiles[p.ID] = p
	return p, nil
}

func (repo *profileRepository) UpdateOrCreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	existing, err := repo.GetProfile(ctx, profile.GetFilter{Email: p.Email})
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

func (repo *profileRepository) DeleteProfile(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.logDelete(profilesTable)
	if err := repo.db.fault(profilesTable, OpDelete); err != nil {
		return err
	}
	delete(repo.db.tables.Profiles, id)
	return nil
}

func (repo *profileRepository) CreateInvite(_ context.Context, inv profile.Invite, _ ...core.DBExecutor) (profile.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(invitesTable, OpInsert); err != nil {
		return profile.Invite{}, err
	}
	inv.ID = newID()
	repo.db.tables.Invites[inv.ID] = inv
	return inv, nil
}

func (repo *profileRepository) GetInvite(_ context.Context, id string, _ ...core.DBExecutor) (profile.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if inv, ok := repo.db.tables.Invites[id]; ok {
		return inv, nil
	}
	return profile.Invite{}, profile.ErrInviteNotFound
}

func (repo *profileRepository) QueryInvites(_ context.Context, institutionID string, _ ...core.DBExecutor) ([]profile.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invites := make([]profile.Invite, 0)
	for _, inv := range repo.db.tables.Invites {
		if inv.InstitutionID == institutionID {
			invites = append(invites, inv)
		}
	}
	sortRows(invites, nil, nil, func(a, b profile.Invite) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return invites, nil
}

func (repo *profileRepository) UpdateInvite(_ context.Context, inv profile.Invite, _ ...core.DBExecutor) (profile.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault(invitesTable, OpUpdate); err != nil {
		return profile.Invite{}, err
	}
	if _, ok := repo.db.tables.Invites[inv.ID]; !ok {
		return profile.Invite{}, profile.ErrInviteNotFound
	}
	repo.db.tables.Invites[inv.ID] = inv
	return inv, nil
}

func isExcluded(p profile.Profile, excluded []profile.Profile) bool {
	for _, ex := range excluded {
		if ex.ID == p.ID {
			return true
		}
	}
	return false
}

func hasRole(p profile.Profile, roles []string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
