package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/jukwaa/fs"
	"github.com/trezcool/jukwaa/storage/database"
)

var (
	gooseRunFunc       = goose.RunFS               // mockable
	createIfNotExistFn = database.CreateIfNotExist // mockable
)

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	if err = goose.SetDialect(database.Dialect(db.DriverName())); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], db.DB, appfs.FS, "migrations", arguments...)
}

func (cli *commandLine) createDB() error {
	if err := createIfNotExistFn(cli.conf); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "database %q is ready\n", cli.conf.Database.Name)
	return nil
}
