package currency

import (
	"context"

	"dndbot/bot/common"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /currency command
type Feature struct {
	registry interfaces.CurrencyRegistry
}

// New creates a new currency feature instance
func New(registry interfaces.CurrencyRegistry) *Feature {
	return &Feature{registry: registry}
}

// HandleCommand routes currency subcommands
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	sub, opts := common.Subcommand(i)

	var (
		content string
		err     error
	)
	switch sub {
	case "create":
		if !common.IsUserAdmin(s, i) {
			common.RespondWithError(s, i, "You need administrator permissions to create currencies.")
			return
		}
		content, err = f.create(ctx, i.GuildID, common.InteractionUser(i).ID, opts.String("name"), opts.String("symbol"))
	case "info":
		content, err = f.info(ctx, i.GuildID, opts.String("name"))
	case "list":
		content, err = f.list(ctx, i.GuildID)
	default:
		return
	}

	if err != nil {
		common.HandleError(s, i, err, false)
		return
	}
	common.Respond(s, i, content, false)
}
