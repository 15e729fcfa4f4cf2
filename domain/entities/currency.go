package entities

import (
	"fmt"
	"time"
)

// MaxCurrencyNameLength bounds currency names in characters
const MaxCurrencyNameLength = 32

// Currency is a guild-scoped currency definition. Name is unique within the
// guild and ID is unique across every guild.
type Currency struct {
	ID        int64
	GuildID   string
	Name      string
	Symbol    string
	CreatedBy string
	CreatedAt time.Time
}

// Label returns the name followed by the symbol, if one is set
func (c *Currency) Label() string {
	if c.Symbol == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Symbol)
}
