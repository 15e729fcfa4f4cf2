package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dndbot/domain/entities"
	"dndbot/schema"
	"dndbot/store"
)

// upperBoundSuffix sorts after every "#<id>" suffix of a timestamp
const upperBoundSuffix = "#~"

// TransactionRepository implements the TransactionRepository interface
type TransactionRepository struct {
	store store.Store
	table schema.Table
	seq   *sequence
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(s store.Store, catalog *schema.Catalog) *TransactionRepository {
	table := catalog.Table(schema.Transactions)
	return &TransactionRepository{store: s, table: table, seq: newSequence(s, catalog, schema.Transactions)}
}

// NextID allocates the next transaction id
func (r *TransactionRepository) NextID(ctx context.Context) (int64, error) {
	return r.seq.Next(ctx)
}

// Create appends an entry; entries are never overwritten
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	err := r.store.Put(ctx, r.table, transactionToItem(tx), store.IfNotExists())
	if err != nil {
		return fmt.Errorf("failed to append transaction %d in guild %s: %w", tx.ID, tx.GuildID, conflictErr(err))
	}
	return nil
}

// Get retrieves an entry by guild and sort key
func (r *TransactionRepository) Get(ctx context.Context, guildID, sortKey string) (*entities.Transaction, error) {
	item, err := r.store.Get(ctx, r.table, store.Key{Partition: guildID, Sort: sortKey})
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s in guild %s: %w", sortKey, guildID, err)
	}
	return transactionFromItem(item)
}

// GetByID retrieves an entry through the id index
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*entities.Transaction, error) {
	item, err := r.store.GetByIndex(ctx, r.table, schema.IDIndex, id)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return transactionFromItem(item)
}

// List returns entries in ascending (timestamp, id) order
func (r *TransactionRepository) List(ctx context.Context, guildID string, since, until time.Time, limit int) ([]*entities.Transaction, error) {
	in := store.QueryInput{Partition: guildID, Limit: limit}
	if !since.IsZero() {
		in.From = entities.FormatTimestamp(since)
	}
	if !until.IsZero() {
		in.To = entities.FormatTimestamp(until) + upperBoundSuffix
	}

	items, err := r.store.Query(ctx, r.table, in)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of guild %s: %w", guildID, err)
	}

	txs := make([]*entities.Transaction, 0, len(items))
	for _, item := range items {
		tx, err := transactionFromItem(item)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func transactionToItem(tx *entities.Transaction) store.Item {
	return store.Item{
		schema.AttrGuildID:   tx.GuildID,
		schema.AttrTimestamp: tx.SortKey(),
		schema.AttrID:        tx.ID,
		schema.AttrUserID:    tx.UserID,
		attrAmount:           tx.Amount,
		attrBalanceAfter:     tx.BalanceAfter,
		attrActor:            tx.Actor,
		attrReason:           tx.Reason,
		attrOperationID:      tx.OperationID,
	}
}

func transactionFromItem(item store.Item) (*entities.Transaction, error) {
	ts, id, err := entities.ParseTransactionSortKey(item.String(schema.AttrTimestamp))
	if err != nil {
		return nil, err
	}
	if itemID := item.Int(schema.AttrID); itemID != id {
		return nil, fmt.Errorf("transaction key id %d does not match id %d", id, itemID)
	}
	return &entities.Transaction{
		ID:           id,
		GuildID:      item.String(schema.AttrGuildID),
		UserID:       item.String(schema.AttrUserID),
		Timestamp:    ts,
		Amount:       item.Int(attrAmount),
		BalanceAfter: item.Int(attrBalanceAfter),
		Actor:        item.String(attrActor),
		Reason:       item.String(attrReason),
		OperationID:  item.String(attrOperationID),
	}, nil
}
