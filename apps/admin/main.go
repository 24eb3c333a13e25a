package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/examguard/core"
	logsvc "github.com/trezcool/examguard/services/logger"
	"github.com/trezcool/examguard/storage/database"
	sqlxrepos "github.com/trezcool/examguard/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf:   conf,
		logger: logger,
		db:     db,
		repo:   sqlxrepos.NewAttemptRepository(db),
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Info(fmt.Sprintf("error: %v", err))
		}
		os.Exit(1)
	}
}
