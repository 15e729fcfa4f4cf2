package character

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dndbot/bot/common"
	"dndbot/domain/entities"
	"dndbot/domain/interfaces"

	"github.com/bwmarrin/discordgo"
)

// fieldOptions are the optional sheet fields /character save accepts
var fieldOptions = []string{"class", "race", "level", "notes"}

// Feature handles the /character command
type Feature struct {
	characters interfaces.CharacterService
}

// New creates a new character feature instance
func New(characters interfaces.CharacterService) *Feature {
	return &Feature{characters: characters}
}

// HandleCommand routes character subcommands
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	sub, opts := common.Subcommand(i)

	var (
		content string
		err     error
	)
	switch sub {
	case "save":
		fields := make(map[string]string)
		for _, name := range fieldOptions {
			if _, ok := opts[name]; !ok {
				continue
			}
			if name == "level" {
				fields[name] = strconv.FormatInt(opts.Int(name, 0), 10)
				continue
			}
			fields[name] = opts.String(name)
		}
		content, err = f.save(ctx, interfaces.CharacterInput{
			GuildID:     i.GuildID,
			CharacterID: opts.String("key"),
			OwnerID:     common.InteractionUser(i).ID,
			Name:        opts.String("name"),
			Fields:      fields,
		})
	case "show":
		content, err = f.show(ctx, i.GuildID, opts.String("key"))
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

func (f *Feature) save(ctx context.Context, in interfaces.CharacterInput) (string, error) {
	c, err := f.characters.Upsert(ctx, in)
	if err != nil {
		return "", err
	}
	if c.Version == 1 {
		return fmt.Sprintf("✅ Created **%s** (`%s`, #%d)", c.Name, c.CharacterID, c.ID), nil
	}
	return fmt.Sprintf("✅ Updated **%s** (`%s`, revision %d)", c.Name, c.CharacterID, c.Version), nil
}

func (f *Feature) show(ctx context.Context, guildID, key string) (string, error) {
	c, err := f.characters.Get(ctx, guildID, key)
	if err != nil {
		return "", err
	}
	return describe(c), nil
}

func describe(c *entities.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (`%s`) played by <@%s>\n", c.Name, c.CharacterID, c.OwnerID)

	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(k[:1])+k[1:], c.Fields[k])
	}
	return b.String()
}

func (f *Feature) list(ctx context.Context, guildID string) (string, error) {
	chars, err := f.characters.List(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(chars) == 0 {
		return "No characters saved yet.", nil
	}

	var b strings.Builder
	b.WriteString("**Characters**\n")
	for _, c := range chars {
		fmt.Fprintf(&b, "• **%s** (`%s`) <@%s>\n", c.Name, c.CharacterID, c.OwnerID)
	}
	return b.String(), nil
}
