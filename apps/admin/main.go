package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// start CLI; the DB is only opened by the commands needing it
	var db *sqlx.DB
	cli := commandLine{
		conf: conf,
		in:   os.Stdin,
		out:  os.Stdout,
		openDB: func() (*sqlx.DB, error) {
			var err error
			if db == nil {
				db, err = database.Open(conf)
			}
			return db, err
		},
	}
	err := cli.run(os.Args)
	if db != nil {
		_ = db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
