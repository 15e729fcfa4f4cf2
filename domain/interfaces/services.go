package interfaces

import (
	"context"
	"time"

	"dndbot/domain/entities"
)

// Provisioner ensures the tables of the economy exist with their declared layout
type Provisioner interface {
	// Provision recreates every unprotected table and creates missing ones
	Provision(ctx context.Context) error

	// Verify returns the names of tables that are missing or not active
	Verify(ctx context.Context) ([]string, error)
}

// CreateCurrencyOptions carries the optional attributes of a new currency
type CreateCurrencyOptions struct {
	Symbol    string
	CreatedBy string
}

// CurrencyRegistry manages per-guild currency definitions
type CurrencyRegistry interface {
	// CreateCurrency creates a currency, returning *domain.DuplicateNameError
	// when the name is taken in the guild
	CreateCurrency(ctx context.Context, guildID, name string, opts CreateCurrencyOptions) (*entities.Currency, error)

	// LookupByName finds a currency by guild and name
	LookupByName(ctx context.Context, guildID, name string) (*entities.Currency, error)

	// LookupByID finds a currency by its global id
	LookupByID(ctx context.Context, id int64) (*entities.Currency, error)

	// ListCurrencies returns every currency of a guild
	ListCurrencies(ctx context.Context, guildID string) ([]*entities.Currency, error)

	// Purge drops cached lookups
	Purge()
}

// AdjustRequest describes one balance change
type AdjustRequest struct {
	GuildID string
	UserID  string
	Delta   int64
	Actor   string
	Reason  string
}

// AdjustResult is the outcome of a successful balance change
type AdjustResult struct {
	Wallet      *entities.Wallet
	Transaction *entities.Transaction
}

// WalletService manages balances
type WalletService interface {
	// AdjustBalance applies a delta and records it in the ledger
	AdjustBalance(ctx context.Context, req AdjustRequest) (*AdjustResult, error)

	// GetBalance returns the wallet of a user
	GetBalance(ctx context.Context, guildID, userID string) (*entities.Wallet, error)

	// LookupByID finds a wallet by its global id
	LookupByID(ctx context.Context, id int64) (*entities.Wallet, error)

	// ListWallets returns the wallets of a guild by descending balance
	ListWallets(ctx context.Context, guildID string) ([]*entities.Wallet, error)

	// Reconcile appends the ledger entry of a pending change, reporting
	// whether there was anything to do
	Reconcile(ctx context.Context, guildID, userID string) (bool, error)
}

// ListOptions bounds a ledger read. Zero values leave the range open.
type ListOptions struct {
	Since time.Time
	Until time.Time
	Limit int
}

// LedgerService manages the append-only transaction log
type LedgerService interface {
	// Record appends a new entry with a fresh id and timestamp
	Record(ctx context.Context, guildID string, amount int64, actor string) (*entities.Transaction, error)

	// Append writes a pre-built entry; appending the same operation twice succeeds once
	Append(ctx context.Context, tx *entities.Transaction) error

	// List returns the entries of a guild in ascending (timestamp, id) order
	List(ctx context.Context, guildID string, opts ListOptions) ([]*entities.Transaction, error)

	// LookupByID finds an entry by its global id
	LookupByID(ctx context.Context, id int64) (*entities.Transaction, error)
}

// GuildSettingsService manages per-guild configuration
type GuildSettingsService interface {
	Get(ctx context.Context, guildID string) (*entities.GuildSettings, error)
	Upsert(ctx context.Context, guildID string, settings map[string]string) (*entities.GuildSettings, error)
	Set(ctx context.Context, guildID, key, value string) (*entities.GuildSettings, error)
	Delete(ctx context.Context, guildID string) error
}

// CharacterInput describes a character create or update
type CharacterInput struct {
	GuildID     string
	CharacterID string
	OwnerID     string
	Name        string
	Fields      map[string]string
}

// CharacterService manages characters
type CharacterService interface {
	// Upsert creates the character or updates it in place, keeping its id
	Upsert(ctx context.Context, in CharacterInput) (*entities.Character, error)

	Get(ctx context.Context, guildID, characterID string) (*entities.Character, error)
	List(ctx context.Context, guildID string) ([]*entities.Character, error)
	LookupByID(ctx context.Context, id int64) (*entities.Character, error)
}
