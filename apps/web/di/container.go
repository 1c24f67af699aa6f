package di

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoweb "github.com/placementcell/portal/apps/web/echo"
	"github.com/placementcell/portal/assets"
	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/content"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/services/api"
	emailsvc "github.com/placementcell/portal/services/email"
	logsvc "github.com/placementcell/portal/services/logger"
	sessionstore "github.com/placementcell/portal/storage/sessions"
	"github.com/placementcell/portal/storage/staging"
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "WEB : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	portal.InitValidators(validate, translator)
	return validate
}

func newSessions(conf *core.Config, logger core.Logger) *session.Manager {
	store, err := sessionstore.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening session store: %v", err), err)
	}
	return session.NewManager(store, conf, logger)
}

func newStaging(conf *core.Config, logger core.Logger, sessions *session.Manager) *staging.Dir {
	dir, err := staging.NewDir(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up staging dir: %v", err), err)
	}
	dir.Subscribe(sessions)
	return dir
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newLibrary(logger core.Logger) *content.Library {
	lib, err := content.LoadLibrary(assets.FS)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading content: %v", err), err)
	}
	return lib
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Sessions   *session.Manager
	Staging    *staging.Dir
	Client     *api.Client
	Notifier   *emailsvc.ApplicationNotifier
	Library    *content.Library
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoweb.Server {
	return echoweb.NewServer(echoweb.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Sessions:   p.Sessions,
		Staging:    p.Staging,
		Client:     p.Client,
		Notifier:   p.Notifier,
		Library:    p.Library,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns the dependency injection container of the web app.
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newSessions))
	must(c.Provide(newStaging))
	must(c.Provide(api.NewClient))
	must(c.Provide(api.NewKeepAlive))
	must(c.Provide(newEmailService))
	must(c.Provide(emailsvc.NewApplicationNotifier))
	must(c.Provide(newLibrary))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
