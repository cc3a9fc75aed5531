package dig_container

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/scolab/backend/apps/api/echo"
	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	emailsvc "github.com/scolab/backend/services/email"
	logsvc "github.com/scolab/backend/services/logger"
	notifysvc "github.com/scolab/backend/services/notify"
	"github.com/scolab/backend/storage/database"
	sqlxrepos "github.com/scolab/backend/storage/database/sqlx"
	filestore "github.com/scolab/backend/storage/files"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, conf); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database: "+err.Error(), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newFileStorage(conf *core.Config, logger core.Logger) deliverable.FileStorage {
	files, err := filestore.New(context.Background(), conf)
	if err != nil {
		logger.Fatal("setting up file storage: "+err.Error(), err)
	}
	return files
}

func newNotifier(conf *core.Config, dir deliverable.Directory, mailSvc core.EmailService, logger core.Logger) deliverable.Notifier {
	return notifysvc.New(conf, dir, mailSvc, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStorage))
	must(c.Provide(sqlxrepos.NewDeliverableRepository, dig.As(new(deliverable.Repository))))
	must(c.Provide(sqlxrepos.NewDirectory, dig.As(new(deliverable.Directory))))
	must(c.Provide(newNotifier))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(deliverable.NewService, dig.As(new(deliverable.ServiceInterface))))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
