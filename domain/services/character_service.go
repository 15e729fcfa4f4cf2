package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/events"
	"dndbot/domain/interfaces"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// characterService implements the CharacterService interface
type characterService struct {
	repo      interfaces.CharacterRepository
	publisher interfaces.EventPublisher
	opts      options
}

// NewCharacterService creates a new character service
func NewCharacterService(repo interfaces.CharacterRepository, publisher interfaces.EventPublisher, opts ...Option) interfaces.CharacterService {
	return &characterService{
		repo:      repo,
		publisher: publisher,
		opts:      newOptions(opts),
	}
}

// Upsert creates a character with a fresh id or updates it in place. Updates
// keep id, owner and creation time.
func (s *characterService) Upsert(ctx context.Context, in interfaces.CharacterInput) (*entities.Character, error) {
	in.CharacterID = strings.TrimSpace(in.CharacterID)
	if in.GuildID == "" || in.CharacterID == "" {
		return nil, invalid("guild id and character id are required")
	}
	if in.Name == "" {
		in.Name = in.CharacterID
	}

	attempt := func() (*entities.Character, error) {
		current, err := s.repo.Get(ctx, in.GuildID, in.CharacterID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		now := s.opts.now().UTC()
		next := &entities.Character{
			GuildID:     in.GuildID,
			CharacterID: in.CharacterID,
			OwnerID:     in.OwnerID,
			Name:        in.Name,
			Fields:      copyFields(in.Fields),
			UpdatedAt:   now,
		}

		expected := int64(0)
		if current == nil {
			id, err := s.repo.NextID(ctx)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("failed to allocate character id: %w", err))
			}
			next.ID = id
			next.Version = 1
			next.CreatedAt = now
		} else {
			expected = current.Version
			next.ID = current.ID
			next.OwnerID = current.OwnerID
			next.Version = current.Version + 1
			next.CreatedAt = current.CreatedAt
		}

		err = s.repo.Save(ctx, next, expected)
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return next, nil
	}

	character, err := backoff.RetryWithData(attempt, s.opts.retry.backOff(ctx))
	if errors.Is(err, domain.ErrVersionConflict) {
		return nil, fmt.Errorf("failed to save character: %w", domain.ErrConflictExceeded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save character: %w", err)
	}

	created := character.Version == 1
	if created {
		if err := s.awaitIndexed(ctx, character.ID); err != nil {
			return nil, fmt.Errorf("failed to save character: %w", err)
		}
	}

	if err := s.publisher.Publish(events.CharacterSavedEvent{
		CharacterID: character.ID,
		GuildID:     character.GuildID,
		Key:         character.CharacterID,
		OwnerID:     character.OwnerID,
		Created:     created,
	}); err != nil {
		log.WithError(err).WithField("character_id", character.ID).Warn("Failed to publish character saved event")
	}

	return character, nil
}

func (s *characterService) awaitIndexed(ctx context.Context, id int64) error {
	return awaitIndexed(ctx, s.opts.index, "character", id, func(ctx context.Context, id int64) (bool, error) {
		c, err := s.repo.GetByID(ctx, id)
		return c != nil, err
	})
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Get retrieves a character by guild and key. A record created moments ago is
// only returned once it is also visible by id.
func (s *characterService) Get(ctx context.Context, guildID, characterID string) (*entities.Character, error) {
	character, err := s.repo.Get(ctx, guildID, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	if character == nil {
		return nil, domain.NewNotFound("character", guildID+"/"+characterID)
	}
	if s.opts.recent(character.CreatedAt) {
		if err := s.awaitIndexed(ctx, character.ID); err != nil {
			return nil, fmt.Errorf("failed to get character: %w", err)
		}
	}
	return character, nil
}

// List returns the characters of a guild
func (s *characterService) List(ctx context.Context, guildID string) ([]*entities.Character, error) {
	characters, err := s.repo.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}

// LookupByID finds a character by id
func (s *characterService) LookupByID(ctx context.Context, id int64) (*entities.Character, error) {
	character, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up character: %w", err)
	}
	if character == nil {
		return nil, domain.NewNotFound("character", id)
	}
	return character, nil
}
