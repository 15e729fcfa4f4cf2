package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"dndbot/cmd"
	"dndbot/config"
	"dndbot/domain"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.WithField("missing", cfgErr.Missing).Error("Missing required configuration")
		} else {
			log.WithError(err).Error("Failed to load configuration")
		}
		os.Exit(1)
	}
	cmd.ConfigureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:]); err != nil {
		log.WithError(err).Fatal("Application error")
	}
}

func run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return cmd.Run(ctx, cfg)
	}

	switch args[0] {
	case "provision":
		fs := flag.NewFlagSet("provision", flag.ContinueOnError)
		check := fs.Bool("check", false, "only report tables that need provisioning")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return cmd.Provision(ctx, cfg, *check)
	case "migrate":
		return cmd.Migrate(cfg, args[1:])
	case "reconcile":
		if len(args) != 3 {
			return errors.New("usage: dndbot reconcile <guild-id> <user-id>")
		}
		return cmd.Reconcile(ctx, cfg, args[1], args[2])
	default:
		return errors.New("usage: dndbot [provision [--check] | migrate up|down|status | reconcile <guild-id> <user-id>]")
	}
}
