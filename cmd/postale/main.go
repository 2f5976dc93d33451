package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/postale/postale/internal/app"
	"github.com/postale/postale/internal/credential"
	"github.com/postale/postale/internal/logger"
	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "postale: %v\n", err)
		if errors.Is(err, app.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("postale", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	configPath := fs.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", app.ErrUsage, err)
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	viewLog, err := logger.NewFile(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = viewLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg.DatabasePath(), store.WithLogger(log))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	opts := []app.Option{
		app.WithOutput(os.Stdout),
		app.WithLogger(log),
		app.WithViewLogger(viewLog),
		app.WithInteractive(isatty.IsTerminal(os.Stdout.Fd())),
	}
	if vault, err := credential.Open(); err != nil {
		log.Warn("keyring unavailable", zap.Error(err))
	} else {
		opts = append(opts, app.WithCredentials(vault))
	}

	return app.New(cfg, s, opts...).Run(ctx, fs.Args())
}
