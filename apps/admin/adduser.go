package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/profile"
)

var errInvalidRole = errors.New("role must be one of [admin, coordinator, staff]")

// addUser updates or creates a profile.Profile, matched by email.
func (cli *commandLine) addUser(name, email, pwd, role, institutionID string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	institutionID = core.CleanString(institutionID)

	switch role {
	case core.RoleAdmin:
	case core.RoleCoordinator, core.RoleStaff:
		if institutionID == "" {
			return errors.New("-institution is required for non-admin profiles")
		}
	default:
		return errInvalidRole
	}

	p, err := cli.profRepo.GetProfile(ctx, profile.GetFilter{Email: email})
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		p = profile.Profile{Email: email, CreatedAt: profile.NowFunc().UTC()}
	}
	p.Name = name
	p.Role = role
	p.InstitutionID = institutionID
	p.IsActive = true
	p.UpdatedAt = profile.NowFunc().UTC()
	if err = p.SetPassword(pwd); err != nil {
		return err
	}
	if p, err = cli.profRepo.UpdateOrCreateProfile(ctx, p); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "profile %s (%s) saved\n", p.Email, p.ID)
	return nil
}
