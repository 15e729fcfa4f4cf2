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
	attrBalance       = "balance"
	attrPending       = "pending"
	attrOperationID   = "operationId"
	attrTransactionID = "transactionId"
	attrAmount        = "amount"
	attrBalanceAfter  = "balanceAfter"
	attrActor         = "actor"
	attrReason        = "reason"
)

// WalletRepository implements the WalletRepository interface
type WalletRepository struct {
	store store.Store
	table schema.Table
	seq   *sequence
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(s store.Store, catalog *schema.Catalog) *WalletRepository {
	table := catalog.Table(schema.Wallets)
	return &WalletRepository{store: s, table: table, seq: newSequence(s, catalog, schema.Wallets)}
}

// NextID allocates the next wallet id
func (r *WalletRepository) NextID(ctx context.Context) (int64, error) {
	return r.seq.Next(ctx)
}

// Get retrieves a wallet by guild and user
func (r *WalletRepository) Get(ctx context.Context, guildID, userID string) (*entities.Wallet, error) {
	item, err := r.store.Get(ctx, r.table, store.Key{Partition: guildID, Sort: userID})
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %s in guild %s: %w", userID, guildID, err)
	}
	return walletFromItem(item), nil
}

// GetByID retrieves a wallet through the id index
func (r *WalletRepository) GetByID(ctx context.Context, id int64) (*entities.Wallet, error) {
	item, err := r.store.GetByIndex(ctx, r.table, schema.IDIndex, id)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %d: %w", id, err)
	}
	return walletFromItem(item), nil
}

// Save writes the wallet if the stored version equals expectedVersion
func (r *WalletRepository) Save(ctx context.Context, wallet *entities.Wallet, expectedVersion int64) error {
	err := r.store.Put(ctx, r.table, walletToItem(wallet), versionCondition(expectedVersion))
	if err != nil {
		return fmt.Errorf("failed to save wallet %s in guild %s: %w", wallet.UserID, wallet.GuildID, conflictErr(err))
	}
	return nil
}

// ListByGuild returns the wallets of a guild ordered by user id
func (r *WalletRepository) ListByGuild(ctx context.Context, guildID string) ([]*entities.Wallet, error) {
	items, err := r.store.Query(ctx, r.table, store.QueryInput{Partition: guildID})
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets of guild %s: %w", guildID, err)
	}

	wallets := make([]*entities.Wallet, 0, len(items))
	for _, item := range items {
		wallets = append(wallets, walletFromItem(item))
	}
	return wallets, nil
}

func walletToItem(w *entities.Wallet) store.Item {
	item := store.Item{
		schema.AttrGuildID: w.GuildID,
		schema.AttrUserID:  w.UserID,
		schema.AttrID:      w.ID,
		attrBalance:        w.Balance,
		attrVersion:        w.Version,
		attrCreatedAt:      formatTime(w.CreatedAt),
		attrUpdatedAt:      formatTime(w.UpdatedAt),
	}
	if p := w.Pending; p != nil {
		item[attrPending] = store.Item{
			attrOperationID:      p.OperationID,
			attrTransactionID:    p.TransactionID,
			schema.AttrTimestamp: formatTime(p.Timestamp),
			attrAmount:           p.Amount,
			attrBalanceAfter:     p.BalanceAfter,
			attrActor:            p.Actor,
			attrReason:           p.Reason,
		}
	}
	return item
}

func walletFromItem(item store.Item) *entities.Wallet {
	w := &entities.Wallet{
		ID:        item.Int(schema.AttrID),
		GuildID:   item.String(schema.AttrGuildID),
		UserID:    item.String(schema.AttrUserID),
		Balance:   item.Int(attrBalance),
		Version:   item.Int(attrVersion),
		CreatedAt: parseTime(item.String(attrCreatedAt)),
		UpdatedAt: parseTime(item.String(attrUpdatedAt)),
	}
	if p := item.Map(attrPending); p != nil {
		w.Pending = &entities.PendingChange{
			OperationID:   p.String(attrOperationID),
			TransactionID: p.Int(attrTransactionID),
			Timestamp:     parseTime(p.String(schema.AttrTimestamp)),
			Amount:        p.Int(attrAmount),
			BalanceAfter:  p.Int(attrBalanceAfter),
			Actor:         p.String(attrActor),
			Reason:        p.String(attrReason),
		}
	}
	return w
}
