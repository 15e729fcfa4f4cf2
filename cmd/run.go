package cmd

import (
	"context"
	"fmt"

	"dndbot/bot"
	"dndbot/config"
	"dndbot/domain/events"
	"dndbot/domain/interfaces"
	"dndbot/infrastructure"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"backend":     cfg.StoreBackend,
	}).Info("Starting dndbot...")

	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	downstream, closePublisher, err := newEventPublisher(ctx, cfg)
	if err != nil {
		s.Close()
		return err
	}
	defer closePublisher()

	bus := infrastructure.NewEventBus(downstream)
	bus.Subscribe(events.EventTypeTransactionRecorded, infrastructure.AuditLogHandler)
	defer bus.Wait()

	app := NewApp(cfg, s, bus)
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Error("Error closing store")
		}
	}()

	if cfg.ProvisionOnStart {
		log.Info("Provisioning tables...")
		if err := app.Provisioner.Provision(ctx); err != nil {
			return fmt.Errorf("failed to provision tables: %w", err)
		}
		log.Info("Tables provisioned")
	}

	log.Info("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.GuildID,
	}, app.Services)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Info("Bot is running")

	<-ctx.Done()
	log.Info("Shutting down bot...")

	// the bot drains running commands before the deferred app.Close shuts
	// the store
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := discordBot.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("Error closing Discord bot")
	} else {
		log.Info("Shutdown completed")
	}
	return nil
}

// newEventPublisher connects to NATS when configured. Without NATS_SERVERS
// events are dropped.
func newEventPublisher(ctx context.Context, cfg *config.Config) (interfaces.EventPublisher, func(), error) {
	if cfg.NATSServers == "" {
		log.Info("NATS_SERVERS not set, events will not be published")
		return infrastructure.NewNoopEventPublisher(), func() {}, nil
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := infrastructure.EnsureEventStream(client, mapper); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}
	return infrastructure.NewNATSEventPublisher(client, mapper), closeFn, nil
}
