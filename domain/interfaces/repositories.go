package interfaces

import (
	"context"
	"time"

	"dndbot/domain/entities"
	"dndbot/domain/events"
)

// CurrencyRepository defines data access for currencies. Getters return
// (nil, nil) when the record is absent.
type CurrencyRepository interface {
	// NextID allocates the next currency id
	NextID(ctx context.Context) (int64, error)

	// Create writes a new currency, failing with *domain.DuplicateNameError
	// if the name is taken in the guild
	Create(ctx context.Context, currency *entities.Currency) error

	// GetByName retrieves a currency by guild and name
	GetByName(ctx context.Context, guildID, name string) (*entities.Currency, error)

	// GetByID retrieves a currency through the id index
	GetByID(ctx context.Context, id int64) (*entities.Currency, error)

	// ListByGuild returns the currencies of a guild ordered by name
	ListByGuild(ctx context.Context, guildID string) ([]*entities.Currency, error)
}

// WalletRepository defines data access for wallets
type WalletRepository interface {
	// NextID allocates the next wallet id
	NextID(ctx context.Context) (int64, error)

	// Get retrieves a wallet by guild and user
	Get(ctx context.Context, guildID, userID string) (*entities.Wallet, error)

	// GetByID retrieves a wallet through the id index
	GetByID(ctx context.Context, id int64) (*entities.Wallet, error)

	// Save writes the wallet if the stored version equals expectedVersion.
	// expectedVersion 0 means the wallet must not exist yet. A lost race
	// returns domain.ErrVersionConflict.
	Save(ctx context.Context, wallet *entities.Wallet, expectedVersion int64) error

	// ListByGuild returns the wallets of a guild
	ListByGuild(ctx context.Context, guildID string) ([]*entities.Wallet, error)
}

// TransactionRepository defines data access for the append-only ledger
type TransactionRepository interface {
	// NextID allocates the next transaction id
	NextID(ctx context.Context) (int64, error)

	// Create appends an entry; an existing key returns domain.ErrVersionConflict
	Create(ctx context.Context, tx *entities.Transaction) error

	// Get retrieves an entry by guild and sort key
	Get(ctx context.Context, guildID, sortKey string) (*entities.Transaction, error)

	// GetByID retrieves an entry through the id index
	GetByID(ctx context.Context, id int64) (*entities.Transaction, error)

	// List returns the entries of a guild in ascending (timestamp, id) order.
	// Zero times leave the range open; limit 0 means no limit.
	List(ctx context.Context, guildID string, since, until time.Time, limit int) ([]*entities.Transaction, error)
}

// GuildSettingsRepository defines data access for guild settings
type GuildSettingsRepository interface {
	// Get retrieves the settings of a guild
	Get(ctx context.Context, guildID string) (*entities.GuildSettings, error)

	// Put replaces the settings of a guild unconditionally
	Put(ctx context.Context, settings *entities.GuildSettings) error

	// Delete removes the settings of a guild
	Delete(ctx context.Context, guildID string) error
}

// CharacterRepository defines data access for characters
type CharacterRepository interface {
	// NextID allocates the next character id
	NextID(ctx context.Context) (int64, error)

	// Get retrieves a character by guild and character key
	Get(ctx context.Context, guildID, characterID string) (*entities.Character, error)

	// GetByID retrieves a character through the id index
	GetByID(ctx context.Context, id int64) (*entities.Character, error)

	// Save writes the character if the stored version equals expectedVersion
	// (0 for a new character); a lost race returns domain.ErrVersionConflict
	Save(ctx context.Context, character *entities.Character, expectedVersion int64) error

	// ListByGuild returns the characters of a guild ordered by key
	ListByGuild(ctx context.Context, guildID string) ([]*entities.Character, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
