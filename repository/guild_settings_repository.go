package repository

import (
	"context"
	"errors"
	"fmt"

	"dndbot/domain/entities"
	"dndbot/schema"
	"dndbot/store"
)

const attrSettings = "settings"

// GuildSettingsRepository implements the GuildSettingsRepository interface
type GuildSettingsRepository struct {
	store store.Store
	table schema.Table
}

// NewGuildSettingsRepository creates a new guild settings repository
func NewGuildSettingsRepository(s store.Store, catalog *schema.Catalog) *GuildSettingsRepository {
	return &GuildSettingsRepository{store: s, table: catalog.Table(schema.GuildSettings)}
}

// Get retrieves the settings of a guild
func (r *GuildSettingsRepository) Get(ctx context.Context, guildID string) (*entities.GuildSettings, error) {
	item, err := r.store.Get(ctx, r.table, store.Key{Partition: guildID})
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings for guild %s: %w", guildID, err)
	}

	settings := item.StringMap(attrSettings)
	if settings == nil {
		settings = make(map[string]string)
	}
	return &entities.GuildSettings{
		GuildID:   item.String(schema.AttrGuildID),
		Settings:  settings,
		UpdatedAt: parseTime(item.String(attrUpdatedAt)),
	}, nil
}

// Put replaces the settings of a guild; the last write wins
func (r *GuildSettingsRepository) Put(ctx context.Context, settings *entities.GuildSettings) error {
	item := store.Item{
		schema.AttrGuildID: settings.GuildID,
		attrSettings:       stringMapItem(settings.Settings),
		attrUpdatedAt:      formatTime(settings.UpdatedAt),
	}
	if err := r.store.Put(ctx, r.table, item, store.Always); err != nil {
		return fmt.Errorf("failed to update guild settings for guild %s: %w", settings.GuildID, err)
	}
	return nil
}

// Delete removes the settings of a guild
func (r *GuildSettingsRepository) Delete(ctx context.Context, guildID string) error {
	if err := r.store.Delete(ctx, r.table, store.Key{Partition: guildID}); err != nil {
		return fmt.Errorf("failed to delete guild settings for guild %s: %w", guildID, err)
	}
	return nil
}
