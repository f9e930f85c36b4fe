package main

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// createAdmin creates (or promotes) an approved master_teacher account.
func (cli *commandLine) createAdmin(email, firstName, lastName, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr = user.User{
			FirstName:  core.CleanString(firstName),
			LastName:   core.CleanString(lastName),
			Email:      email,
			Role:       user.RoleMasterTeacher,
			IsApproved: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if _, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		logger.Printf("admin %s created", email)
		return nil
	}

	if _, err = cli.usrRepo.SetUserRole(ctx, usr.ID, user.RoleMasterTeacher, true); err != nil {
		return err
	}
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err = cli.usrRepo.SetUserPassword(ctx, usr); err != nil {
		return err
	}
	logger.Printf("existing user %s promoted to admin", email)
	return nil
}
