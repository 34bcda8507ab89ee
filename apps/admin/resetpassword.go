package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/user"
)

func newResetPasswordCmd(cli *commandLine) *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			if err = cli.resetPassword(cmd.Context(), login, pwd); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password of %s updated\n", login)
			return nil
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "The user's email or registration ID")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, login, pwd string) error {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{EmailOrRegistration: []string{
		core.CleanString(login, true /* lower */),
		core.CleanString(login),
	}})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	// a chosen password ends the first access flow
	usr.FirstAccessToken = ""
	usr.FirstAccessIssuedAt = time.Time{}
	usr.UpdatedAt = time.Now().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
