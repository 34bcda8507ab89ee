package main

import (
	"github.com/spf13/cobra"

	"github.com/avalia/avalia/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func newMigrateCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, up-to, down, status, ...) against the embedded migrations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gooseRunFunc(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
