package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dndbot/bot/common"
	"dndbot/domain"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /settings command
type Feature struct {
	settings interfaces.GuildSettingsService
}

// New creates a new settings feature instance
func New(settings interfaces.GuildSettingsService) *Feature {
	return &Feature{settings: settings}
}

// HandleCommand routes settings subcommands. Administrators only.
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.IsUserAdmin(s, i) {
		common.RespondWithError(s, i, "You need administrator permissions to manage settings.")
		return
	}

	ctx := context.Background()
	sub, opts := common.Subcommand(i)

	var (
		content string
		err     error
	)
	switch sub {
	case "get":
		content, err = f.get(ctx, i.GuildID)
	case "set":
		content, err = f.set(ctx, i.GuildID, opts.String("key"), opts.String("value"))
	case "reset":
		content, err = f.reset(ctx, i.GuildID)
	default:
		return
	}

	if err != nil {
		common.HandleError(s, i, err, false)
		return
	}
	common.Respond(s, i, content, true)
}

func (f *Feature) get(ctx context.Context, guildID string) (string, error) {
	gs, err := f.settings.Get(ctx, guildID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && len(gs.Settings) == 0) {
		return "No settings configured for this server.", nil
	}
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(gs.Settings))
	for k := range gs.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("**Server settings**\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "`%s` = %s\n", k, gs.Settings[k])
	}
	return b.String(), nil
}

func (f *Feature) set(ctx context.Context, guildID, key, value string) (string, error) {
	if _, err := f.settings.Set(ctx, guildID, key, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ `%s` set to %s", key, value), nil
}

func (f *Feature) reset(ctx context.Context, guildID string) (string, error) {
	if err := f.settings.Delete(ctx, guildID); err != nil {
		return "", err
	}
	return "✅ Settings cleared.", nil
}
