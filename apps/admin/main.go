package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	emailsvc "github.com/scolab/backend/services/email"
	logsvc "github.com/scolab/backend/services/logger"
	notifysvc "github.com/scolab/backend/services/notify"
	"github.com/scolab/backend/storage/database"
	sqlxrepos "github.com/scolab/backend/storage/database/sqlx"
	filestore "github.com/scolab/backend/storage/files"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer db.Close()
	database.SetupMigrations(conf)

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	deliverable.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	files, err := filestore.New(context.Background(), conf)
	errAndDie(logger, err)
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	dir := sqlxrepos.NewDirectory(db)
	notifier := notifysvc.New(conf, dir, mailSvc, logger)
	svc := deliverable.NewService(sqlxrepos.NewDeliverableRepository(db), dir, files, notifier, logger, validate, translator, conf)

	// start CLI
	cli := commandLine{
		conf: conf,
		db:   db.DB,
		svc:  svc,
		out:  os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger *logsvc.RollbarLogger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
