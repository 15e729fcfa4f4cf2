package repository

import (
	"context"
	"errors"
	"fmt"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/schema"
	"dndbot/store"
)

const (
	attrSymbol    = "symbol"
	attrCreatedBy = "createdBy"
)

// CurrencyRepository implements the CurrencyRepository interface
type CurrencyRepository struct {
	store store.Store
	table schema.Table
	seq   *sequence
}

// NewCurrencyRepository creates a new currency repository
func NewCurrencyRepository(s store.Store, catalog *schema.Catalog) *CurrencyRepository {
	table := catalog.Table(schema.Currencies)
	return &CurrencyRepository{store: s, table: table, seq: newSequence(s, catalog, schema.Currencies)}
}

// NextID allocates the next currency id
func (r *CurrencyRepository) NextID(ctx context.Context) (int64, error) {
	return r.seq.Next(ctx)
}

// Create writes a new currency keyed on (guild, name)
func (r *CurrencyRepository) Create(ctx context.Context, currency *entities.Currency) error {
	err := r.store.Put(ctx, r.table, currencyToItem(currency), store.IfNotExists())
	if errors.Is(err, store.ErrConditionFailed) {
		return &domain.DuplicateNameError{GuildID: currency.GuildID, Name: currency.Name}
	}
	if err != nil {
		return fmt.Errorf("failed to create currency %s in guild %s: %w", currency.Name, currency.GuildID, err)
	}
	return nil
}

// GetByName retrieves a currency by guild and name
func (r *CurrencyRepository) GetByName(ctx context.Context, guildID, name string) (*entities.Currency, error) {
	item, err := r.store.Get(ctx, r.table, store.Key{Partition: guildID, Sort: name})
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency %s in guild %s: %w", name, guildID, err)
	}
	return currencyFromItem(item), nil
}

// GetByID retrieves a currency through the id index
func (r *CurrencyRepository) GetByID(ctx context.Context, id int64) (*entities.Currency, error) {
	item, err := r.store.GetByIndex(ctx, r.table, schema.IDIndex, id)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency %d: %w", id, err)
	}
	return currencyFromItem(item), nil
}

// ListByGuild returns the currencies of a guild ordered by name
func (r *CurrencyRepository) ListByGuild(ctx context.Context, guildID string) ([]*entities.Currency, error) {
	items, err := r.store.Query(ctx, r.table, store.QueryInput{Partition: guildID})
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies of guild %s: %w", guildID, err)
	}

	currencies := make([]*entities.Currency, 0, len(items))
	for _, item := range items {
		currencies = append(currencies, currencyFromItem(item))
	}
	return currencies, nil
}

func currencyToItem(c *entities.Currency) store.Item {
	return store.Item{
		schema.AttrGuildID: c.GuildID,
		schema.AttrName:    c.Name,
		schema.AttrID:      c.ID,
		attrSymbol:         c.Symbol,
		attrCreatedBy:      c.CreatedBy,
		attrCreatedAt:      formatTime(c.CreatedAt),
	}
}

func currencyFromItem(item store.Item) *entities.Currency {
	return &entities.Currency{
		ID:        item.Int(schema.AttrID),
		GuildID:   item.String(schema.AttrGuildID),
		Name:      item.String(schema.AttrName),
		Symbol:    item.String(attrSymbol),
		CreatedBy: item.String(attrCreatedBy),
		CreatedAt: parseTime(item.String(attrCreatedAt)),
	}
}
