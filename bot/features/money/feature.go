package money

import (
	"context"
	"errors"
	"fmt"

	"dndbot/bot/common"
	"dndbot/domain"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Feature handles the /money add|remove commands
type Feature struct {
	wallets interfaces.WalletService
}

// New creates a new money feature instance
func New(wallets interfaces.WalletService) *Feature {
	return &Feature{wallets: wallets}
}

// HandleCommand adjusts a user's balance. Administrators only.
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.IsUserAdmin(s, i) {
		common.RespondWithError(s, i, "You need administrator permissions to change balances.")
		return
	}

	sub, opts := common.Subcommand(i)
	amount := opts.Int("amount", 0)
	switch sub {
	case "add":
	case "remove":
		amount = -amount
	default:
		return
	}

	content, err := f.adjust(context.Background(), interfaces.AdjustRequest{
		GuildID: i.GuildID,
		UserID:  opts.UserID("user"),
		Delta:   amount,
		Actor:   common.InteractionUser(i).ID,
		Reason:  opts.String("reason"),
	})
	if err != nil {
		common.HandleError(s, i, err, false)
		return
	}
	common.Respond(s, i, content, false)
}

func (f *Feature) adjust(ctx context.Context, req interfaces.AdjustRequest) (string, error) {
	res, err := f.wallets.AdjustBalance(ctx, req)
	if errors.Is(err, domain.ErrLedgerPending) && res != nil {
		// the change is applied; only the ledger write lags
		log.WithError(err).WithField("transaction_id", res.Transaction.ID).Warn("Ledger entry pending after adjustment")
		return fmt.Sprintf("%s (ledger entry pending)", describe(res)), nil
	}
	if err != nil {
		return "", err
	}
	return describe(res), nil
}

func describe(res *interfaces.AdjustResult) string {
	return fmt.Sprintf("✅ %s for <@%s>. New balance: **%s** (transaction #%d)",
		common.FormatAmount(res.Transaction.Amount), res.Wallet.UserID,
		common.FormatBalance(res.Wallet.Balance), res.Transaction.ID)
}
