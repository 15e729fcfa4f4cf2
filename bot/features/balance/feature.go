package balance

import (
	"context"
	"errors"
	"fmt"

	"dndbot/bot/common"
	"dndbot/domain"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /balance command
type Feature struct {
	wallets interfaces.WalletService
}

// New creates a new balance feature instance
func New(wallets interfaces.WalletService) *Feature {
	return &Feature{wallets: wallets}
}

// HandleCommand shows the balance of the invoking user or of the given user
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := common.OptionMap(i.ApplicationCommandData().Options)
	userID := opts.UserID("user")
	if userID == "" {
		userID = common.InteractionUser(i).ID
	}

	content, err := f.balance(context.Background(), i.GuildID, userID)
	if err != nil {
		common.HandleError(s, i, err, false)
		return
	}
	common.Respond(s, i, content, true)
}

func (f *Feature) balance(ctx context.Context, guildID, userID string) (string, error) {
	wallet, err := f.wallets.GetBalance(ctx, guildID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("<@%s> has no wallet yet. Balance: **0**", userID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<@%s> balance: **%s**", userID, common.FormatBalance(wallet.Balance)), nil
}
