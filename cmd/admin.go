package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"dndbot/config"
	"dndbot/database"
	"dndbot/infrastructure"

	log "github.com/sirupsen/logrus"
)

// ErrUsage is returned for malformed subcommand arguments
var ErrUsage = errors.New("usage error")

// Provision creates or resets the tables. With check it only reports
// what is missing or mismatched.
func Provision(ctx context.Context, cfg *config.Config, check bool) error {
	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	app := NewApp(cfg, s, infrastructure.NewNoopEventPublisher())
	defer app.Close()

	if !check {
		return app.Provisioner.Provision(ctx)
	}

	problems, err := app.Provisioner.Verify(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify tables: %w", err)
	}
	for _, name := range problems {
		log.WithField("table", name).Warn("Table needs provisioning")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d table(s) need provisioning", len(problems))
	}
	log.Info("All tables are provisioned")
	return nil
}

// Reconcile writes a ledger entry left pending on a wallet
func Reconcile(ctx context.Context, cfg *config.Config, guildID, userID string) error {
	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	app := NewApp(cfg, s, infrastructure.NewNoopEventPublisher())
	defer app.Close()

	settled, err := app.Services.Wallets.Reconcile(ctx, guildID, userID)
	if err != nil {
		return err
	}
	if !settled {
		log.WithFields(log.Fields{"guild_id": guildID, "user_id": userID}).Info("Nothing pending")
	}
	return nil
}

// Migrate runs schema migrations of the postgres backend
func Migrate(cfg *config.Config, args []string) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrations apply to the %s backend only", config.BackendPostgres)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate [up|down|status] [steps]", ErrUsage)
	}

	url := cfg.GetDatabaseURL()
	switch args[0] {
	case "up":
		return database.MigrateUp(url)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: invalid steps %q", ErrUsage, args[1])
			}
			steps = n
		}
		return database.MigrateDown(url, steps)
	case "status":
		return database.MigrateStatus(url)
	default:
		return fmt.Errorf("%w: unknown migration command %s", ErrUsage, args[0])
	}
}
