package bot

import (
	"context"
	"fmt"
	"sync"

	"dndbot/bot/common"
	"dndbot/bot/features/balance"
	"dndbot/bot/features/character"
	"dndbot/bot/features/currency"
	"dndbot/bot/features/ledger"
	"dndbot/bot/features/money"
	"dndbot/bot/features/settings"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token string
	// GuildID limits command registration to one guild; empty registers
	// global commands
	GuildID string
}

// Services are the domain services the commands operate on
type Services struct {
	Currencies interfaces.CurrencyRegistry
	Wallets    interfaces.WalletService
	Ledger     interfaces.LedgerService
	Settings   interfaces.GuildSettingsService
	Characters interfaces.CharacterService
}

// Bot manages the Discord session and all feature modules
type Bot struct {
	config  Config
	session *discordgo.Session

	// Feature modules
	balance    *balance.Feature
	money      *money.Feature
	currency   *currency.Feature
	ledger     *ledger.Feature
	settings   *settings.Feature
	characters *character.Feature

	commands []*discordgo.ApplicationCommand

	// inflight counts running command handlers. Once closing is set no new
	// handler is admitted, so Drain can wait for the count to reach zero.
	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// New creates a bot, opens the gateway connection and registers commands
func New(config Config, services Services) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	bot := &Bot{
		config:     config,
		session:    dg,
		balance:    balance.New(services.Wallets),
		money:      money.New(services.Wallets),
		currency:   currency.New(services.Currencies),
		ledger:     ledger.New(services.Ledger),
		settings:   settings.New(services.Settings),
		characters: character.New(services.Characters),
	}

	dg.AddHandler(bot.handleReady)
	dg.AddHandler(bot.handleCommands)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// Close stops admitting commands, waits for running handlers until ctx is
// done, then removes guild commands and closes the session. A drain timeout is
// returned after the session is closed.
func (b *Bot) Close(ctx context.Context) error {
	drainErr := b.Drain(ctx)

	if b.config.GuildID != "" {
		for _, cmd := range b.commands {
			if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.config.GuildID, cmd.ID); err != nil {
				log.WithError(err).WithField("command", cmd.Name).Warn("Failed to delete command")
			}
		}
	}
	if err := b.session.Close(); err != nil {
		return err
	}
	return drainErr
}

// Drain rejects new commands and blocks until every running handler returned
// or ctx is done.
func (b *Bot) Drain(ctx context.Context) error {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for command handlers: %w", ctx.Err())
	}
}

// track runs fn as an in-flight handler. It reports false without running fn
// once the bot is closing.
func (b *Bot) track(fn func()) bool {
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return false
	}
	b.inflight.Add(1)
	b.mu.Unlock()

	defer b.inflight.Done()
	fn()
	return true
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.WithFields(log.Fields{
		"user":   r.User.Username,
		"guilds": len(r.Guilds),
	}).Info("Connected to Discord")
}

// handleCommands routes slash commands to appropriate handlers
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	admitted := b.track(func() { b.dispatch(s, i) })
	if !admitted {
		common.RespondWithError(s, i, "The bot is shutting down. Please try again shortly.")
	}
}

func (b *Bot) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer common.Recover(s, i)

	if i.GuildID == "" {
		common.RespondWithError(s, i, "This command can only be used in a server.")
		return
	}

	switch i.ApplicationCommandData().Name {
	case "balance":
		b.balance.HandleCommand(s, i)
	case "money":
		b.money.HandleCommand(s, i)
	case "currency":
		b.currency.HandleCommand(s, i)
	case "ledger":
		b.ledger.HandleCommand(s, i)
	case "settings":
		b.settings.HandleCommand(s, i)
	case "character":
		b.characters.HandleCommand(s, i)
	}
}
