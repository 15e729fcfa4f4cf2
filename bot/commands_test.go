package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	t.Parallel()

	subcommands := map[string][]string{
		"balance":   nil,
		"money":     {"add", "remove"},
		"currency":  {"create", "info", "list"},
		"ledger":    nil,
		"settings":  {"get", "set", "reset"},
		"character": {"save", "show", "list"},
	}

	cmds := Commands()
	require.Len(t, cmds, len(subcommands))

	for _, cmd := range cmds {
		want, ok := subcommands[cmd.Name]
		require.True(t, ok, "unexpected command %s", cmd.Name)
		assert.NotEmpty(t, cmd.Description)

		var got []string
		for _, opt := range cmd.Options {
			assert.LessOrEqual(t, len(opt.Description), 100, "%s/%s", cmd.Name, opt.Name)
			if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
				got = append(got, opt.Name)
			}
		}
		assert.Equal(t, want, got, cmd.Name)
	}
}
