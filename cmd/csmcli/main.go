package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/BradenHooton/csm/internal/cli"
	"github.com/BradenHooton/csm/internal/config"
	"github.com/BradenHooton/csm/internal/repositories"
	"github.com/BradenHooton/csm/internal/setup"
	pkglogger "github.com/BradenHooton/csm/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	global := pflag.NewFlagSet("csmcli", pflag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.StringP("config", "c", "", "path to the cli config file (default ~/.csm/cli.yaml)")
	global.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: csmcli [--config file] <%s> <action> [args...]\n", strings.Join(cli.CommandNames, "|"))
		global.PrintDefaults()
	}
	if err := global.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return cli.ExitUsage
	}

	cfg, err := cli.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitFailure
	}
	logger := pkglogger.NewText(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Config:   cfg,
		Prompter: cli.NewTermPrompter(os.Stdin, os.Stderr),
		Logger:   logger,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Setup: func(ctx context.Context, cmd *cli.Command) error {
			agentCfg, err := config.LoadSetup()
			if err != nil {
				return err
			}
			store, err := repositories.Open(ctx, &agentCfg.Storage, logger)
			if err != nil {
				return err
			}
			defer store.Close(ctx)
			return setup.Run(ctx, cmd.Action, cmd.Options["force"] == "true", store, agentCfg.Admin, logger, os.Stdout)
		},
	}
	return app.Run(ctx, global.Args())
}
