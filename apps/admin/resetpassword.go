package main

import (
	"context"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/profile"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	p, err := cli.profRepo.GetProfile(ctx, profile.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err = p.SetPassword(pwd); err != nil {
		return err
	}
	p.UpdatedAt = profile.NowFunc().UTC()
	if _, err = cli.profRepo.UpdateProfile(ctx, p); err != nil {
		return err
	}
	return nil
}
