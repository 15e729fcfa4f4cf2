package services

import (
	"context"
	"errors"
	"fmt"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/events"
	"dndbot/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ledgerService implements the LedgerService interface
type ledgerService struct {
	repo      interfaces.TransactionRepository
	publisher interfaces.EventPublisher
	opts      options
}

// NewLedgerService creates a new ledger service
func NewLedgerService(repo interfaces.TransactionRepository, publisher interfaces.EventPublisher, opts ...Option) interfaces.LedgerService {
	return &ledgerService{
		repo:      repo,
		publisher: publisher,
		opts:      newOptions(opts),
	}
}

// Record appends a standalone entry with a fresh id and timestamp
func (s *ledgerService) Record(ctx context.Context, guildID string, amount int64, actor string) (*entities.Transaction, error) {
	if guildID == "" {
		return nil, invalid("guild id is required")
	}
	if amount == 0 {
		return nil, invalid("amount must not be zero")
	}

	id, err := s.repo.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate transaction id: %w", err)
	}

	tx := &entities.Transaction{
		ID:          id,
		GuildID:     guildID,
		Timestamp:   s.opts.now().UTC(),
		Amount:      amount,
		Actor:       actor,
		OperationID: uuid.NewString(),
	}
	if err := s.Append(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Append writes tx keyed on (guild, timestamp#id). If the key is already
// taken by the same operation the earlier append stands and nil is returned.
func (s *ledgerService) Append(ctx context.Context, tx *entities.Transaction) error {
	if tx.GuildID == "" || tx.ID <= 0 || tx.OperationID == "" {
		return invalid("transaction needs a guild, an id and an operation id")
	}

	err := s.repo.Create(ctx, tx)
	if err == nil {
		s.published(tx)
		return nil
	}
	if !errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	existing, getErr := s.repo.Get(ctx, tx.GuildID, tx.SortKey())
	if getErr != nil {
		return fmt.Errorf("failed to append transaction: %w", getErr)
	}
	if existing != nil && existing.OperationID == tx.OperationID {
		return nil
	}
	return fmt.Errorf("transaction key %s: %w", tx.SortKey(), domain.ErrLedgerKeyTaken)
}

func (s *ledgerService) published(tx *entities.Transaction) {
	logger := log.WithFields(log.Fields{
		"guild_id":       tx.GuildID,
		"transaction_id": tx.ID,
		"amount":         tx.Amount,
	})
	logger.Debug("Transaction appended")

	err := s.publisher.Publish(events.TransactionRecordedEvent{
		TransactionID: tx.ID,
		GuildID:       tx.GuildID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		BalanceAfter:  tx.BalanceAfter,
		Actor:         tx.Actor,
		Reason:        tx.Reason,
		OperationID:   tx.OperationID,
		Timestamp:     tx.Timestamp,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to publish transaction recorded event")
	}
}

// List returns the entries of a guild in ascending (timestamp, id) order
func (s *ledgerService) List(ctx context.Context, guildID string, opts interfaces.ListOptions) ([]*entities.Transaction, error) {
	if opts.Limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	if !opts.Since.IsZero() && !opts.Until.IsZero() && opts.Until.Before(opts.Since) {
		return nil, invalid("until must not be before since")
	}

	txs, err := s.repo.List(ctx, guildID, opts.Since, opts.Until, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// LookupByID finds an entry by id
func (s *ledgerService) LookupByID(ctx context.Context, id int64) (*entities.Transaction, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction: %w", err)
	}
	if tx == nil {
		return nil, domain.NewNotFound("transaction", id)
	}
	return tx, nil
}
