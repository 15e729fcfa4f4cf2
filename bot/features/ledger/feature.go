package ledger

import (
	"context"
	"fmt"
	"strings"

	"dndbot/bot/common"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultLimit = 10
	maxLimit     = 25
)

// Feature handles the /ledger command
type Feature struct {
	ledger interfaces.LedgerService
}

// New creates a new ledger feature instance
func New(ledger interfaces.LedgerService) *Feature {
	return &Feature{ledger: ledger}
}

// HandleCommand lists the most recent ledger entries of the guild
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := common.OptionMap(i.ApplicationCommandData().Options)
	content, err := f.recent(context.Background(), i.GuildID, int(opts.Int("limit", defaultLimit)))
	if err != nil {
		common.HandleError(s, i, err, false)
		return
	}
	common.Respond(s, i, content, true)
}

// recent returns the newest limit entries, oldest first
func (f *Feature) recent(ctx context.Context, guildID string, limit int) (string, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	txs, err := f.ledger.List(ctx, guildID, interfaces.ListOptions{})
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "The ledger is empty.", nil
	}
	if len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Last %d transactions**\n", len(txs))
	for _, tx := range txs {
		b.WriteString(common.FormatTransaction(tx))
		b.WriteByte('\n')
	}
	return b.String(), nil
}
