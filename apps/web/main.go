package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	"github.com/placementcell/portal/apps/web/di"
	echoweb "github.com/placementcell/portal/apps/web/echo"
	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/services/api"
)

func main() {
	c := di.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		sessions *session.Manager,
		keepAlive *api.KeepAlive,
		server *echoweb.Server,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(conf, logger)

		defer func() {
			if err := sessions.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing session store: %v", err), err)
			}
		}()
		defer logger.Info("Application stopped")

		// =========================================================================
		// Start Background Jobs

		if conf.Session.SweepSpec != "" {
			stopSweeper, err := sessions.StartSweeper(conf.Session.SweepSpec)
			if err != nil {
				logger.Fatal(fmt.Sprintf("starting session sweeper: %v", err), err)
			}
			defer stopSweeper()
		}

		if err := keepAlive.Start(); err != nil {
			logger.Fatal(fmt.Sprintf("starting keep-alive: %v", err), err)
		}
		defer keepAlive.Stop()

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("sessionStore").Set(conf.Session.Store)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Web Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			logger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
