package main

import (
	"log"
	"os"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
	logsvc "github.com/placementcell/portal/services/logger"
)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	// start CLI
	cli := commandLine{
		conf:   conf,
		client: api.NewClient(conf),
		runner: upload.Runner{Pause: conf.Upload.Pause},
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
