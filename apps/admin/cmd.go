package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/roster"
	"github.com/avalia/avalia/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	usrRepo  user.Repository
	importer *roster.Importer
}

func newRootCmd(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Avalia administration tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newImportCmd(cli))
	cmd.AddCommand(newResetPasswordCmd(cli))
	cmd.AddCommand(newAddUserCmd(cli))
	cmd.AddCommand(newMigrateCmd(cli))
	return cmd
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}
