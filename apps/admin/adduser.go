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

func newAddUserCmd(cli *commandLine) *cobra.Command {
	var usr user.User
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the user holding the email or registration ID. The password is prompted next",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !user.IsRole(usr.Role) {
				return errors.Errorf("invalid role %q", usr.Role)
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			saved, err := cli.addUser(cmd.Context(), usr, pwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved\n", saved.Email, saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&usr.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&usr.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&usr.RegistrationID, "registration", "", "Registration ID (matricula)")
	cmd.Flags().StringVar(&usr.Role, "role", user.RoleAdmin, "One of student, professor, admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("registration")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, data user.User, pwd string) (user.User, error) {
	email := core.CleanString(data.Email, true /* lower */)
	registrationID := core.CleanString(data.RegistrationID)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{EmailOrRegistration: []string{email, registrationID}})
	found := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{Email: email, RegistrationID: registrationID, CreatedAt: now}
	}
	if name := core.CleanString(data.Name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = email
	}
	usr.Role = data.Role
	usr.UpdatedAt = now
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}

	if found {
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}
