package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/events"
	"dndbot/domain/interfaces"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"
)

const currencyCacheSize = 1024

// currencyRegistry implements the CurrencyRegistry interface. Currencies are
// immutable once created, so lookups by id are served from an LRU cache.
type currencyRegistry struct {
	repo      interfaces.CurrencyRepository
	publisher interfaces.EventPublisher
	byID      *lru.Cache
	opts      options
}

// NewCurrencyRegistry creates a new currency registry
func NewCurrencyRegistry(repo interfaces.CurrencyRepository, publisher interfaces.EventPublisher, opts ...Option) interfaces.CurrencyRegistry {
	cache, _ := lru.New(currencyCacheSize)
	return &currencyRegistry{
		repo:      repo,
		publisher: publisher,
		byID:      cache,
		opts:      newOptions(opts),
	}
}

func normalizeCurrencyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("currency name is required")
	}
	if utf8.RuneCountInString(name) > entities.MaxCurrencyNameLength {
		return "", invalid("currency name must be at most %d characters", entities.MaxCurrencyNameLength)
	}
	return name, nil
}

// CreateCurrency writes the currency keyed on (guild, name), then waits until
// it is visible by id before reporting success
func (r *currencyRegistry) CreateCurrency(ctx context.Context, guildID, name string, opts interfaces.CreateCurrencyOptions) (*entities.Currency, error) {
	if guildID == "" {
		return nil, invalid("guild id is required")
	}
	name, err := normalizeCurrencyName(name)
	if err != nil {
		return nil, err
	}

	// A name that is already taken needs no id
	existing, err := r.repo.GetByName(ctx, guildID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check currency name: %w", err)
	}
	if existing != nil {
		return nil, &domain.DuplicateNameError{GuildID: guildID, Name: name}
	}

	id, err := r.repo.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate currency id: %w", err)
	}

	currency := &entities.Currency{
		ID:        id,
		GuildID:   guildID,
		Name:      name,
		Symbol:    strings.TrimSpace(opts.Symbol),
		CreatedBy: opts.CreatedBy,
		CreatedAt: r.opts.now().UTC(),
	}
	if err := r.repo.Create(ctx, currency); err != nil {
		return nil, fmt.Errorf("failed to create currency: %w", err)
	}

	if err := r.awaitIndexed(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to create currency: %w", err)
	}
	r.byID.Add(id, currency)

	log.WithFields(log.Fields{
		"guild_id":    guildID,
		"currency_id": id,
		"name":        name,
	}).Info("Currency created")

	if err := r.publisher.Publish(events.CurrencyCreatedEvent{
		CurrencyID: id,
		GuildID:    guildID,
		Name:       name,
		CreatedBy:  opts.CreatedBy,
	}); err != nil {
		log.WithError(err).WithField("currency_id", id).Warn("Failed to publish currency created event")
	}

	return currency, nil
}

func (r *currencyRegistry) awaitIndexed(ctx context.Context, id int64) error {
	return awaitIndexed(ctx, r.opts.index, "currency", id, func(ctx context.Context, id int64) (bool, error) {
		c, err := r.repo.GetByID(ctx, id)
		return c != nil, err
	})
}

// LookupByName finds a currency by guild and name. A record created moments
// ago is only returned once it is also visible by id.
func (r *currencyRegistry) LookupByName(ctx context.Context, guildID, name string) (*entities.Currency, error) {
	name = strings.TrimSpace(name)
	currency, err := r.repo.GetByName(ctx, guildID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up currency: %w", err)
	}
	if currency == nil {
		return nil, domain.NewNotFound("currency", guildID+"/"+name)
	}

	if _, cached := r.byID.Get(currency.ID); !cached && r.opts.recent(currency.CreatedAt) {
		if err := r.awaitIndexed(ctx, currency.ID); err != nil {
			return nil, fmt.Errorf("failed to look up currency: %w", err)
		}
	}
	r.byID.Add(currency.ID, currency)
	return currency, nil
}

// LookupByID finds a currency by id
func (r *currencyRegistry) LookupByID(ctx context.Context, id int64) (*entities.Currency, error) {
	if cached, ok := r.byID.Get(id); ok {
		return cached.(*entities.Currency), nil
	}

	currency, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up currency: %w", err)
	}
	if currency == nil {
		return nil, domain.NewNotFound("currency", id)
	}

	r.byID.Add(id, currency)
	return currency, nil
}

// ListCurrencies returns the currencies of a guild ordered by name
func (r *currencyRegistry) ListCurrencies(ctx context.Context, guildID string) ([]*entities.Currency, error) {
	currencies, err := r.repo.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	return currencies, nil
}

// Purge drops every cached lookup; called when the currencies table is recreated
func (r *currencyRegistry) Purge() {
	r.byID.Purge()
}
