package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/interfaces"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// walletService implements the WalletService interface.
//
// A balance change and its ledger entry live in different partitions, so they
// cannot be written atomically. The wallet write carries a pending descriptor
// of the change; the ledger entry is appended afterwards with an idempotent
// put. Any later change or Reconcile on the wallet appends a leftover pending
// entry before doing anything else, so each applied change ends up in the
// ledger exactly once.
type walletService struct {
	wallets      interfaces.WalletRepository
	transactions interfaces.TransactionRepository
	ledger       interfaces.LedgerService
	opts         options
}

// NewWalletService creates a new wallet service
func NewWalletService(
	wallets interfaces.WalletRepository,
	transactions interfaces.TransactionRepository,
	ledger interfaces.LedgerService,
	opts ...Option,
) interfaces.WalletService {
	return &walletService{
		wallets:      wallets,
		transactions: transactions,
		ledger:       ledger,
		opts:         newOptions(opts),
	}
}

// AdjustBalance applies req.Delta to the wallet with an optimistic write
func (s *walletService) AdjustBalance(ctx context.Context, req interfaces.AdjustRequest) (*interfaces.AdjustResult, error) {
	if req.GuildID == "" || req.UserID == "" {
		return nil, invalid("guild id and user id are required")
	}
	if req.Delta == 0 {
		return nil, invalid("amount must not be zero")
	}

	logger := log.WithFields(log.Fields{
		"guild_id": req.GuildID,
		"user_id":  req.UserID,
		"delta":    req.Delta,
	})

	attempt := func() (*entities.Wallet, error) {
		current, err := s.load(ctx, req.GuildID, req.UserID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if current.Pending != nil {
			if err := s.appendPending(ctx, current); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		newBalance := current.Balance + req.Delta
		if req.Delta > 0 && newBalance < current.Balance {
			return nil, backoff.Permanent(invalid("balance %d cannot absorb %d without overflowing", current.Balance, req.Delta))
		}
		if newBalance < 0 {
			return nil, backoff.Permanent(&domain.InsufficientFundsError{Balance: current.Balance, Delta: req.Delta})
		}

		txID, err := s.transactions.NextID(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to allocate transaction id: %w", err))
		}

		now := s.opts.now().UTC()
		// entries of one wallet keep the order their changes were applied in
		if !now.After(current.UpdatedAt) {
			now = current.UpdatedAt.Add(time.Nanosecond)
		}

		next := *current
		next.Balance = newBalance
		next.Version = current.Version + 1
		next.UpdatedAt = now
		next.Pending = &entities.PendingChange{
			OperationID:   uuid.NewString(),
			TransactionID: txID,
			Timestamp:     now,
			Amount:        req.Delta,
			BalanceAfter:  newBalance,
			Actor:         req.Actor,
			Reason:        req.Reason,
		}

		err = s.wallets.Save(ctx, &next, current.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			logger.WithField("version", current.Version).Debug("Wallet changed concurrently, retrying")
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return &next, nil
	}

	wallet, err := backoff.RetryWithData(attempt, s.opts.retry.backOff(ctx))
	if errors.Is(err, domain.ErrVersionConflict) {
		logger.Warn("Gave up adjusting balance after repeated conflicts")
		return nil, fmt.Errorf("failed to adjust balance: %w", domain.ErrConflictExceeded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}

	result := &interfaces.AdjustResult{Wallet: wallet, Transaction: wallet.LedgerEntry()}

	if err := s.appendPending(ctx, wallet); err != nil {
		logger.WithError(err).Error("Balance applied but ledger entry is pending")
		return result, fmt.Errorf("%w: %v", domain.ErrLedgerPending, err)
	}
	result.Wallet = s.clearPending(ctx, wallet)

	logger.WithFields(log.Fields{
		"balance":        wallet.Balance,
		"transaction_id": result.Transaction.ID,
	}).Info("Balance adjusted")
	return result, nil
}

// load reads a wallet, returning a fresh unsaved one if it does not exist
func (s *walletService) load(ctx context.Context, guildID, userID string) (*entities.Wallet, error) {
	wallet, err := s.wallets.Get(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	id, err := s.wallets.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate wallet id: %w", err)
	}
	now := s.opts.now().UTC()
	return &entities.Wallet{
		ID:        id,
		GuildID:   guildID,
		UserID:    userID,
		CreatedAt: now,
	}, nil
}

// appendPending writes the ledger entry of the wallet's pending change,
// retrying transient failures
func (s *walletService) appendPending(ctx context.Context, wallet *entities.Wallet) error {
	entry := wallet.LedgerEntry()
	if entry == nil {
		return nil
	}

	return backoff.Retry(func() error {
		err := s.ledger.Append(ctx, entry)
		if errors.Is(err, domain.ErrLedgerKeyTaken) || errors.Is(err, domain.ErrInvalidInput) {
			return backoff.Permanent(err)
		}
		return err
	}, s.opts.retry.backOff(ctx))
}

// clearPending drops the pending descriptor once its entry is in the ledger.
// Losing the race is harmless: whoever won has already settled the entry.
func (s *walletService) clearPending(ctx context.Context, wallet *entities.Wallet) *entities.Wallet {
	next := *wallet
	next.Pending = nil
	next.Version = wallet.Version + 1

	err := s.wallets.Save(ctx, &next, wallet.Version)
	if err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			log.WithError(err).WithFields(log.Fields{
				"guild_id": wallet.GuildID,
				"user_id":  wallet.UserID,
			}).Warn("Failed to clear settled pending change")
		}
		return wallet
	}
	return &next
}

// GetBalance returns the wallet of a user
func (s *walletService) GetBalance(ctx context.Context, guildID, userID string) (*entities.Wallet, error) {
	wallet, err := s.wallets.Get(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet == nil {
		return nil, domain.NewNotFound("wallet", guildID+"/"+userID)
	}
	return wallet, nil
}

// LookupByID finds a wallet by id
func (s *walletService) LookupByID(ctx context.Context, id int64) (*entities.Wallet, error) {
	wallet, err := s.wallets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up wallet: %w", err)
	}
	if wallet == nil {
		return nil, domain.NewNotFound("wallet", id)
	}
	return wallet, nil
}

// ListWallets returns the wallets of a guild by descending balance
func (s *walletService) ListWallets(ctx context.Context, guildID string) ([]*entities.Wallet, error) {
	wallets, err := s.wallets.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	sort.SliceStable(wallets, func(i, j int) bool {
		return wallets[i].Balance > wallets[j].Balance
	})
	return wallets, nil
}

// Reconcile appends the ledger entry of a change left pending by an earlier
// failure
func (s *walletService) Reconcile(ctx context.Context, guildID, userID string) (bool, error) {
	wallet, err := s.GetBalance(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	if wallet.Pending == nil {
		return false, nil
	}

	if err := s.appendPending(ctx, wallet); err != nil {
		return false, fmt.Errorf("failed to reconcile wallet: %w", err)
	}
	s.clearPending(ctx, wallet)

	log.WithFields(log.Fields{
		"guild_id":       guildID,
		"user_id":        userID,
		"transaction_id": wallet.Pending.TransactionID,
	}).Info("Reconciled pending ledger entry")
	return true, nil
}
