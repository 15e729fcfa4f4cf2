package currency

import (
	"context"
	"fmt"
	"strings"

	"dndbot/domain/interfaces"
)

func (f *Feature) create(ctx context.Context, guildID, userID, name, symbol string) (string, error) {
	currency, err := f.registry.CreateCurrency(ctx, guildID, name, interfaces.CreateCurrencyOptions{
		Symbol:    symbol,
		CreatedBy: userID,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Created currency **%s** (id %d)", currency.Label(), currency.ID), nil
}

func (f *Feature) info(ctx context.Context, guildID, name string) (string, error) {
	currency, err := f.registry.LookupByName(ctx, guildID, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s**\nID: %d\nCreated by <@%s> on %s",
		currency.Label(), currency.ID, currency.CreatedBy, currency.CreatedAt.Format("2006-01-02")), nil
}

func (f *Feature) list(ctx context.Context, guildID string) (string, error) {
	currencies, err := f.registry.ListCurrencies(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(currencies) == 0 {
		return "No currencies yet. An administrator can add one with `/currency create`.", nil
	}

	var b strings.Builder
	b.WriteString("**Currencies**\n")
	for _, c := range currencies {
		fmt.Fprintf(&b, "• %s (id %d)\n", c.Label(), c.ID)
	}
	return b.String(), nil
}
