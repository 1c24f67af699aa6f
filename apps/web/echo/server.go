package echoweb

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/placementcell/portal/assets"
	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/content"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
	emailsvc "github.com/placementcell/portal/services/email"
	"github.com/placementcell/portal/storage/staging"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Sessions   *session.Manager
		Staging    *staging.Dir
		Client     *api.Client
		Notifier   *emailsvc.ApplicationNotifier
		Library    *content.Library
		Validate   *validator.Validate
		Translator ut.Translator

		// Sleep replaces the pause between uploads; nil sleeps for real.
		Sleep func(ctx context.Context, d time.Duration) error
	}

	Server struct {
		srv      *http.Server
		app      *echo.Echo
		deps     ServerDeps
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.srv = s.app.Server
	s.srv.Addr = deps.Conf.Server.Host
	s.srv.ReadTimeout = deps.Conf.Server.ReadTimeout
	s.srv.WriteTimeout = deps.Conf.Server.WriteTimeout

	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)
	r, err := newRenderer(assets.FS, conf)
	if err != nil {
		s.deps.Logger.Fatal(fmt.Sprintf("setting up renderer: %v", err), err)
	}
	s.app.Renderer = r
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Sessions, s.deps.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit(conf.Server.MaxUploadSize))

	static, err := fs.Sub(assets.FS, "static")
	if err != nil {
		s.deps.Logger.Fatal(fmt.Sprintf("opening static assets: %v", err), err)
	}
	s.app.StaticFS("/static", static)

	s.app.Use(sessionMiddleware(s.deps.Sessions, conf, s.deps.Logger))

	runner := upload.Runner{Pause: conf.Upload.Pause, Sleep: s.deps.Sleep}

	registerAuthRoutes(s.app, s.deps)
	registerPageRoutes(s.app, s.deps)
	registerJobRoutes(s.app, s.deps)
	registerStudentRoutes(s.app, s.deps)
	registerQuizRoutes(s.app, s.deps)

	admin := s.app.Group("/admin", authMiddleware, adminMiddleware)
	adminH := registerAdminRoutes(admin, s.deps)
	registerPaperRoutes(admin, s.deps, adminH, runner)
}

// Start listens until the server is shut down; failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.StartServer(s.srv); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
