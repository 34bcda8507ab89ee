package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type importOptions struct {
	classes string
	members string
}

func newImportCmd(cli *commandLine) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a class roster: create or match accounts, enroll them and email the new ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.importRoster(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.classes, "classes", "", "classes document (default: <roster source dir>/classes.json)")
	cmd.Flags().StringVar(&opts.members, "members", "", "class members document (default: <roster source dir>/class_members.json)")
	return cmd
}

func (cli *commandLine) sourceFile(path, name string) string {
	if path != "" {
		return path
	}
	dir := cli.conf.Roster.SourceDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cli.conf.WorkDir, dir)
	}
	return filepath.Join(dir, name)
}

func (cli *commandLine) importRoster(cmd *cobra.Command, opts importOptions) error {
	classes, err := os.ReadFile(cli.sourceFile(opts.classes, "classes.json"))
	if err != nil {
		return errors.Wrap(err, "reading classes document")
	}
	members, err := os.ReadFile(cli.sourceFile(opts.members, "class_members.json"))
	if err != nil {
		return errors.Wrap(err, "reading members document")
	}

	rep, err := cli.importer.ImportRaw(cmd.Context(), classes, members)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep.Envelope())
}
