package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/DivM11/social-fact-checker/internal/config"
	"github.com/DivM11/social-fact-checker/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "factchecker",
		Usage: "watch Threads handles and reply to new posts with an LLM fact-check",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading the environment",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "generate replies without submitting them",
			},
		},
		Action: runLoop,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "poll forever until interrupted (default)",
				Action: runLoop,
			},
			{
				Name:   "once",
				Usage:  "run a single poll-and-reply cycle and exit",
				Action: runOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			logrus.WithField("field", cerr.Field).WithError(err).Error("invalid configuration")
		} else {
			logrus.WithError(err).Error("factchecker exited")
		}
		os.Exit(1)
	}
}

func runLoop(cctx *cli.Context) error {
	ctx, a, err := setup(cctx)
	if err != nil {
		return err
	}
	defer a.close()
	return a.bot.Run(ctx)
}

func runOnce(cctx *cli.Context) error {
	ctx, a, err := setup(cctx)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.bot.RunCycle(ctx); err != nil {
		a.log.WithError(err).Warn("cycle finished with errors")
	}
	return nil
}

// setup loads configuration and builds the application under a context that
// is cancelled by the first SIGINT or SIGTERM.
func setup(cctx *cli.Context) (context.Context, *application, error) {
	envFile := cctx.String("env-file")
	if err := godotenv.Load(envFile); err != nil {
		logrus.Warnf("Warning: %s file not found: %v", envFile, err)
	}

	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	log := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	a, err := build(ctx, cfg, log, cctx.Bool("dry-run"))
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("build application: %w", err)
	}
	a.stop = stop
	return ctx, a, nil
}
