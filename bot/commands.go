package bot

import (
	"fmt"

	"dndbot/domain/entities"

	"github.com/bwmarrin/discordgo"
)

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func amountOption(description string) *discordgo.ApplicationCommandOption {
	minAmount := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "amount",
		Description: description,
		Required:    true,
		MinValue:    &minAmount,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why the balance changes",
		MaxLength:   200,
	}
}

func characterKeyOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "key",
		Description: "Short identifier of the character",
		Required:    true,
		MaxLength:   64,
	}
}

// Commands returns the slash command definitions
func Commands() []*discordgo.ApplicationCommand {
	minLimit := 1.0
	minLevel := 1.0

	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Check a balance",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Whose balance to show (defaults to you)", false),
			},
		},
		{
			Name:        "money",
			Description: "Change a player's balance",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add money to a player",
					Options: []*discordgo.ApplicationCommandOption{
						userOption("Player to pay", true),
						amountOption("Amount to add"),
						reasonOption(),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove money from a player",
					Options: []*discordgo.ApplicationCommandOption{
						userOption("Player to charge", true),
						amountOption("Amount to remove"),
						reasonOption(),
					},
				},
			},
		},
		{
			Name:        "currency",
			Description: "Manage the currencies of this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Create a currency",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Currency name (e.g., Gold)",
							Required:    true,
							MaxLength:   entities.MaxCurrencyNameLength,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "symbol",
							Description: "Short symbol (e.g., gp)",
							MaxLength:   8,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "info",
					Description: "Show a currency",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Currency name",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List all currencies",
				},
			},
		},
		{
			Name:        "ledger",
			Description: "Show recent transactions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "Number of entries (default 10)",
					MinValue:    &minLimit,
					MaxValue:    25,
				},
			},
		},
		{
			Name:        "settings",
			Description: "Manage server settings",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "get",
					Description: "Show all settings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Change one setting",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "key",
							Description: "Setting name",
							Required:    true,
							MaxLength:   64,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "value",
							Description: "New value",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "reset",
					Description: "Remove all settings",
				},
			},
		},
		{
			Name:        "character",
			Description: "Keep track of player characters",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "save",
					Description: "Create or update a character",
					Options: []*discordgo.ApplicationCommandOption{
						characterKeyOption(),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Display name",
							MaxLength:   100,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "class",
							Description: "Class (e.g., Cleric)",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "race",
							Description: "Race (e.g., Dwarf)",
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "level",
							Description: "Character level",
							MinValue:    &minLevel,
							MaxValue:    20,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "notes",
							Description: "Free-form notes",
							MaxLength:   1000,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show a character",
					Options: []*discordgo.ApplicationCommandOption{
						characterKeyOption(),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List all characters",
				},
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	for _, cmd := range Commands() {
		created, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
		b.commands = append(b.commands, created)
	}
	return nil
}
