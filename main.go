package main

import (
	"os"

	"github.com/hypertrace/artifact-publisher/cli"
	"github.com/hypertrace/artifact-publisher/utils"
	clitool "github.com/urfave/cli/v2"
)

func main() {
	logger := utils.NewDefaultLogger(utils.GetLogLevel(os.Getenv("PUBLISH_LOG_LEVEL")))
	app := &clitool.App{
		Name:     "publisher",
		Usage:    "publish Maven artifacts to staging and direct repositories",
		Version:  cli.Version,
		Commands: cli.GetCommands(logger),
		ExitErrHandler: func(_ *clitool.Context, err error) {
			if err == nil {
				return
			}
			logger.Error(err)
			if exitCoder, ok := err.(clitool.ExitCoder); ok {
				os.Exit(exitCoder.ExitCode())
			}
			os.Exit(1)
		},
	}
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
