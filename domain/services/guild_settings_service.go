package services

import (
	"context"
	"fmt"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/interfaces"
)

const maxSettingKeyLength = 64

// guildSettingsService implements the GuildSettingsService interface
type guildSettingsService struct {
	guildSettingsRepo interfaces.GuildSettingsRepository
	opts              options
}

// NewGuildSettingsService creates a new guild settings service
func NewGuildSettingsService(guildSettingsRepo interfaces.GuildSettingsRepository, opts ...Option) interfaces.GuildSettingsService {
	return &guildSettingsService{
		guildSettingsRepo: guildSettingsRepo,
		opts:              newOptions(opts),
	}
}

// Get retrieves the settings of a guild
func (s *guildSettingsService) Get(ctx context.Context, guildID string) (*entities.GuildSettings, error) {
	settings, err := s.guildSettingsRepo.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}
	if settings == nil {
		return nil, domain.NewNotFound("guild settings", guildID)
	}
	return settings, nil
}

// Upsert replaces the whole settings record; concurrent writers race and the
// last one wins
func (s *guildSettingsService) Upsert(ctx context.Context, guildID string, values map[string]string) (*entities.GuildSettings, error) {
	if guildID == "" {
		return nil, invalid("guild id is required")
	}

	copied := make(map[string]string, len(values))
	for k, v := range values {
		if err := validateSettingKey(k); err != nil {
			return nil, err
		}
		copied[k] = v
	}

	settings := &entities.GuildSettings{
		GuildID:   guildID,
		Settings:  copied,
		UpdatedAt: s.opts.now().UTC(),
	}
	if err := s.guildSettingsRepo.Put(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update guild settings: %w", err)
	}
	return settings, nil
}

// Set changes a single key, creating the record if needed
func (s *guildSettingsService) Set(ctx context.Context, guildID, key, value string) (*entities.GuildSettings, error) {
	if err := validateSettingKey(key); err != nil {
		return nil, err
	}

	current, err := s.guildSettingsRepo.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}
	if current == nil {
		current = &entities.GuildSettings{GuildID: guildID}
	}

	return s.Upsert(ctx, guildID, current.With(key, value).Settings)
}

// Delete removes the settings of a guild
func (s *guildSettingsService) Delete(ctx context.Context, guildID string) error {
	if err := s.guildSettingsRepo.Delete(ctx, guildID); err != nil {
		return fmt.Errorf("failed to delete guild settings: %w", err)
	}
	return nil
}

func validateSettingKey(key string) error {
	if key == "" || len(key) > maxSettingKeyLength {
		return invalid("setting keys must be 1 to %d bytes", maxSettingKeyLength)
	}
	return nil
}
