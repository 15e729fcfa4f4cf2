package repository

import (
	"context"
	"errors"
	"fmt"

	"dndbot/domain/entities"
	"dndbot/schema"
	"dndbot/store"
)

const (
	attrOwnerID = "ownerId"
	attrFields  = "fields"
)

// CharacterRepository implements the CharacterRepository interface
type CharacterRepository struct {
	store store.Store
	table schema.Table
	seq   *sequence
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(s store.Store, catalog *schema.Catalog) *CharacterRepository {
	table := catalog.Table(schema.Characters)
	return &CharacterRepository{store: s, table: table, seq: newSequence(s, catalog, schema.Characters)}
}

// NextID allocates the next character id. The counter lives in the
// characters table and so survives reprovisioning with it.
func (r *CharacterRepository) NextID(ctx context.Context) (int64, error) {
	return r.seq.Next(ctx)
}

// Get retrieves a character by guild and character key
func (r *CharacterRepository) Get(ctx context.Context, guildID, characterID string) (*entities.Character, error) {
	item, err := r.store.Get(ctx, r.table, store.Key{Partition: guildID, Sort: characterID})
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character %s in guild %s: %w", characterID, guildID, err)
	}
	return characterFromItem(item), nil
}

// GetByID retrieves a character through the id index
func (r *CharacterRepository) GetByID(ctx context.Context, id int64) (*entities.Character, error) {
	item, err := r.store.GetByIndex(ctx, r.table, schema.IDIndex, id)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character %d: %w", id, err)
	}
	return characterFromItem(item), nil
}

// Save writes the character if the stored version equals expectedVersion
func (r *CharacterRepository) Save(ctx context.Context, character *entities.Character, expectedVersion int64) error {
	err := r.store.Put(ctx, r.table, characterToItem(character), versionCondition(expectedVersion))
	if err != nil {
		return fmt.Errorf("failed to save character %s in guild %s: %w", character.CharacterID, character.GuildID, conflictErr(err))
	}
	return nil
}

// ListByGuild returns the characters of a guild ordered by key
func (r *CharacterRepository) ListByGuild(ctx context.Context, guildID string) ([]*entities.Character, error) {
	items, err := r.store.Query(ctx, r.table, store.QueryInput{Partition: guildID})
	if err != nil {
		return nil, fmt.Errorf("failed to list characters of guild %s: %w", guildID, err)
	}

	characters := make([]*entities.Character, 0, len(items))
	for _, item := range items {
		characters = append(characters, characterFromItem(item))
	}
	return characters, nil
}

func characterToItem(c *entities.Character) store.Item {
	return store.Item{
		schema.AttrGuildID:     c.GuildID,
		schema.AttrCharacterID: c.CharacterID,
		schema.AttrID:          c.ID,
		schema.AttrName:        c.Name,
		attrOwnerID:            c.OwnerID,
		attrFields:             stringMapItem(c.Fields),
		attrVersion:            c.Version,
		attrCreatedAt:          formatTime(c.CreatedAt),
		attrUpdatedAt:          formatTime(c.UpdatedAt),
	}
}

func characterFromItem(item store.Item) *entities.Character {
	fields := item.StringMap(attrFields)
	if fields == nil {
		fields = make(map[string]string)
	}
	return &entities.Character{
		ID:          item.Int(schema.AttrID),
		GuildID:     item.String(schema.AttrGuildID),
		CharacterID: item.String(schema.AttrCharacterID),
		OwnerID:     item.String(attrOwnerID),
		Name:        item.String(schema.AttrName),
		Fields:      fields,
		Version:     item.Int(attrVersion),
		CreatedAt:   parseTime(item.String(attrCreatedAt)),
		UpdatedAt:   parseTime(item.String(attrUpdatedAt)),
	}
}
