package main

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.SetUserPassword(ctx, usr); err != nil {
		return err
	}
	logger.Printf("password reset for %s", email)
	return nil
}
