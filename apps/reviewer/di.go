package main

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/core/review"
	emailsvc "github.com/connorferster/python-course-admin/services/email"
	logsvc "github.com/connorferster/python-course-admin/services/logger"
	imapmbx "github.com/connorferster/python-course-admin/services/mailbox/imap"
	"github.com/connorferster/python-course-admin/services/mailbox/maildir"
	"github.com/connorferster/python-course-admin/storage/database"
	"github.com/connorferster/python-course-admin/storage/jsonfile"
)

// overrides are the command line flags that take precedence over the config.
type overrides struct {
	filler string
	seed   int64
	dryRun bool
}

// resources collects what must be released once a command is done.
type resources struct {
	mu      sync.Mutex
	closers []io.Closer
}

func (r *resources) add(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, c)
}

func (r *resources) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i].Close()
	}
	r.closers = nil
}

func newConfig(configFile string, ov overrides) (*core.Config, error) {
	conf, err := core.NewConfig(configFile)
	if err != nil {
		return nil, err
	}
	if ov.filler != "" {
		conf.FillerEmail = core.CleanString(ov.filler, true /* lower */)
	}
	if ov.seed != 0 {
		conf.Seed = ov.seed
	}
	if ov.dryRun {
		conf.Email.Backend = core.EmailConsole
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	if err := conf.Validate(validate, translator); err != nil {
		return nil, err
	}
	return conf, nil
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stderr, "REVIEWER : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newMailbox(conf *core.Config, logger core.Logger, res *resources) core.Mailbox {
	if conf.Mailbox.Driver == core.MailboxIMAP {
		mb := imapmbx.NewMailbox(conf, promptPassword, logger)
		res.add(mb)
		return mb
	}
	return maildir.NewMailbox(conf, logger)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Email.Backend == core.EmailSendgrid {
		return emailsvc.NewSendgridService(conf, logger)
	}
	return emailsvc.NewConsoleService(log.New(os.Stdout, "", 0), conf)
}

func newRepository(conf *core.Config, res *resources) (review.Repository, error) {
	switch conf.Storage.Engine {
	case core.StorageSQLite, core.StoragePostgres:
		db, err := database.Open(conf)
		if err != nil {
			return nil, errors.Wrap(err, "setting up database")
		}
		res.add(db)
		return database.NewRoundRepository(db), nil
	default:
		return jsonfile.NewRoundRepository(conf), nil
	}
}

func newShuffler(conf *core.Config) review.Shuffler {
	return review.NewShuffler(conf.Seed)
}

// newContainer returns the dependency injection dig.Container of a command,
// and the resources to release once the command is done.
func newContainer(configFile string, ov overrides) (*dig.Container, *resources) {
	c := dig.New()
	res := new(resources)

	must(c.Provide(func() *resources { return res }))
	must(c.Provide(func() (*core.Config, error) { return newConfig(configFile, ov) }))
	must(c.Provide(newLogger))
	must(c.Provide(newMailbox))
	must(c.Provide(newEmailService))
	must(c.Provide(newRepository))
	must(c.Provide(newShuffler))
	must(c.Provide(review.NewServiceConfig))
	must(c.Provide(review.NewService))

	return c, res
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
