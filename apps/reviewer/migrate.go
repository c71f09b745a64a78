package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/storage/database"
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [VERSION]",
		Short: "Manage the schema of database storage (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, res := newContainerFunc(cli.configFile, cli.ov)
			defer res.Close()

			var runErr error
			err := c.Invoke(func(conf *core.Config) {
				runErr = cli.migrate(conf, args[0], args[1:]...)
			})
			if err != nil {
				return errors.Wrap(dig.RootCause(err), "setting up")
			}
			return runErr
		},
	}
}

func (cli *commandLine) migrate(conf *core.Config, command string, args ...string) error {
	db, err := database.Connect(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	database.SetMigrationLogger(log.New(os.Stdout, "", 0))
	return database.RunMigration(db, command, args...)
}
