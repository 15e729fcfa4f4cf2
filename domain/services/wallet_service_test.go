package services

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/interfaces"
	"dndbot/domain/testhelpers"
	"dndbot/schema"
	"dndbot/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWalletService_AdjustBalance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	res := env.adjust(t, "G1", "U1", 100)
	assert.Equal(t, int64(100), res.Wallet.Balance)
	assert.Nil(t, res.Wallet.Pending)
	assert.Equal(t, int64(100), res.Transaction.Amount)
	assert.Equal(t, int64(100), res.Transaction.BalanceAfter)
	assert.Equal(t, "admin", res.Transaction.Actor)

	res = env.adjust(t, "G1", "U1", -40)
	assert.Equal(t, int64(60), res.Wallet.Balance)

	wallet, err := env.wallets.GetBalance(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), wallet.Balance)
	assert.Nil(t, wallet.Pending)

	byID, err := env.wallets.LookupByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, "U1", byID.UserID)

	tx, err := env.ledger.LookupByID(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-40), tx.Amount)
}

func TestWalletService_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		name    string
		req     interfaces.AdjustRequest
		wantErr error
	}{
		{"zero delta", interfaces.AdjustRequest{GuildID: "G1", UserID: "U1"}, domain.ErrInvalidInput},
		{"missing user", interfaces.AdjustRequest{GuildID: "G1", Delta: 5}, domain.ErrInvalidInput},
		{"missing guild", interfaces.AdjustRequest{UserID: "U1", Delta: 5}, domain.ErrInvalidInput},
		{"overdraw new wallet", interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: -1}, domain.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.wallets.AdjustBalance(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}

	// nothing was written
	_, err := env.wallets.GetBalance(ctx, "G1", "U1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	txs, err := env.ledger.List(ctx, "G1", interfaces.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestWalletService_InsufficientFunds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	env.adjust(t, "G1", "U1", 10)

	_, err := env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: -11})
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(10), insufficient.Balance)
	assert.Equal(t, int64(-11), insufficient.Delta)

	// spending down to exactly zero is allowed
	res := env.adjust(t, "G1", "U1", -10)
	assert.Zero(t, res.Wallet.Balance)
}

func TestWalletService_Overflow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	env.adjust(t, "G1", "U1", math.MaxInt64)

	_, err := env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: 1})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	wallet, err := env.wallets.GetBalance(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), wallet.Balance)

	// spending from the maximum still works
	res := env.adjust(t, "G1", "U1", -1)
	assert.Equal(t, int64(math.MaxInt64-1), res.Wallet.Balance)
}

func TestWalletService_ConcurrentOverdraw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	env.adjust(t, "G1", "U1", 100)

	var (
		wg                sync.WaitGroup
		spendErr, earnErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, spendErr = env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: -150})
	}()
	go func() {
		defer wg.Done()
		_, earnErr = env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: 20})
	}()
	wg.Wait()

	assert.ErrorIs(t, spendErr, domain.ErrInsufficientFunds)
	assert.NoError(t, earnErr)

	wallet, err := env.wallets.GetBalance(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), wallet.Balance)
}

func TestWalletService_ConcurrentAdjustments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, WithRetryPolicy(RetryPolicy{
		MaxAttempts:     200,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}))
	const start = int64(50)
	env.adjust(t, "G1", "U1", start)

	const workers = 8
	const perWorker = 6
	var (
		wg        sync.WaitGroup
		applied   atomic.Int64
		succeeded atomic.Int32
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perWorker; i++ {
				delta := int64(rng.Intn(41) - 20)
				if delta == 0 {
					delta = 1
				}
				_, err := env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: delta})
				switch {
				case err == nil:
					applied.Add(delta)
					succeeded.Add(1)
				case errors.Is(err, domain.ErrInsufficientFunds):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	wallet, err := env.wallets.GetBalance(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, start+applied.Load(), wallet.Balance)
	assert.GreaterOrEqual(t, wallet.Balance, int64(0))

	txs, err := env.ledger.List(ctx, "G1", interfaces.ListOptions{})
	require.NoError(t, err)
	require.Len(t, txs, int(succeeded.Load())+1)

	// each entry follows from the one before it
	balance := int64(0)
	for i, tx := range txs {
		if i > 0 {
			assert.True(t, txs[i-1].Before(tx))
		}
		balance += tx.Amount
		assert.Equal(t, balance, tx.BalanceAfter, "entry %d", i)
		assert.GreaterOrEqual(t, tx.BalanceAfter, int64(0))
	}
	assert.Equal(t, wallet.Balance, balance)
}

// failLedgerWrites makes every transaction put fail while enabled
func failLedgerWrites(env *testEnv) *atomic.Bool {
	var enabled atomic.Bool
	env.store.OnPut = func(table schema.Table, item store.Item) error {
		if enabled.Load() && table.ID == schema.Transactions {
			return errors.New("throttled")
		}
		return nil
	}
	return &enabled
}

func TestWalletService_LedgerPendingReconcile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	failing := failLedgerWrites(env)

	failing.Store(true)
	res, err := env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: 30})
	require.ErrorIs(t, err, domain.ErrLedgerPending)
	require.NotNil(t, res)
	assert.Equal(t, int64(30), res.Wallet.Balance)

	wallet, err := env.wallets.GetBalance(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), wallet.Balance)
	require.NotNil(t, wallet.Pending)
	assert.Equal(t, res.Transaction.ID, wallet.Pending.TransactionID)

	txs, err := env.ledger.List(ctx, "G1", interfaces.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	failing.Store(false)
	settled, err := env.wallets.Reconcile(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = env.wallets.Reconcile(ctx, "G1", "U1")
	require.NoError(t, err)
	assert.False(t, settled)

	txs, err = env.ledger.List(ctx, "G1", interfaces.ListOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, res.Transaction.ID, txs[0].ID)
	assert.Equal(t, int64(30), txs[0].BalanceAfter)

	_, err = env.wallets.Reconcile(ctx, "G1", "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWalletService_LedgerPendingRollsForward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	failing := failLedgerWrites(env)

	failing.Store(true)
	_, err := env.wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: 30})
	require.ErrorIs(t, err, domain.ErrLedgerPending)

	failing.Store(false)
	res := env.adjust(t, "G1", "U1", 5)
	assert.Equal(t, int64(35), res.Wallet.Balance)

	txs, err := env.ledger.List(ctx, "G1", interfaces.ListOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(30), txs[0].Amount)
	assert.Equal(t, int64(30), txs[0].BalanceAfter)
	assert.Equal(t, int64(5), txs[1].Amount)
	assert.Equal(t, int64(35), txs[1].BalanceAfter)
}

func TestWalletService_ListWallets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	env.adjust(t, "G1", "U1", 10)
	env.adjust(t, "G1", "U2", 30)
	env.adjust(t, "G1", "U3", 20)
	env.adjust(t, "G2", "U1", 99)

	wallets, err := env.wallets.ListWallets(ctx, "G1")
	require.NoError(t, err)
	require.Len(t, wallets, 3)
	assert.Equal(t, "U2", wallets[0].UserID)
	assert.Equal(t, "U3", wallets[1].UserID)
	assert.Equal(t, "U1", wallets[2].UserID)
}

func TestWalletService_ConflictExceeded(t *testing.T) {
	t.Parallel()
	wallets := new(testhelpers.MockWalletRepository)
	txRepo := new(testhelpers.MockTransactionRepository)

	current := &entities.Wallet{ID: 1, GuildID: "G1", UserID: "U1", Balance: 10, Version: 3}
	wallets.On("Get", mock.Anything, "G1", "U1").Return(current, nil)
	wallets.On("Save", mock.Anything, mock.AnythingOfType("*entities.Wallet"), int64(3)).Return(domain.ErrVersionConflict)
	txRepo.On("NextID", mock.Anything).Return(int64(9), nil)

	svc := NewWalletService(wallets, txRepo, NewLedgerService(txRepo, testhelpers.NewQuietPublisher()), WithRetryPolicy(fastPolicy))
	_, err := svc.AdjustBalance(context.Background(), interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: 1})

	assert.ErrorIs(t, err, domain.ErrConflictExceeded)
	wallets.AssertNumberOfCalls(t, "Save", fastPolicy.MaxAttempts)
	txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWalletService_LedgerKeyTakenIsNotAConflict(t *testing.T) {
	t.Parallel()
	wallets := new(testhelpers.MockWalletRepository)
	txRepo := new(testhelpers.MockTransactionRepository)

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	current := &entities.Wallet{
		ID: 1, GuildID: "G1", UserID: "U1", Balance: 10, Version: 3, UpdatedAt: stamp,
		Pending: &entities.PendingChange{OperationID: "op-1", TransactionID: 7, Timestamp: stamp, Amount: 10, BalanceAfter: 10},
	}
	entry := current.LedgerEntry()
	wallets.On("Get", mock.Anything, "G1", "U1").Return(current, nil)
	txRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Transaction")).Return(domain.ErrVersionConflict)
	txRepo.On("Get", mock.Anything, "G1", entry.SortKey()).Return(&entities.Transaction{ID: 7, GuildID: "G1", OperationID: "op-other"}, nil)

	svc := NewWalletService(wallets, txRepo, NewLedgerService(txRepo, testhelpers.NewQuietPublisher()), WithRetryPolicy(fastPolicy))
	_, err := svc.AdjustBalance(context.Background(), interfaces.AdjustRequest{GuildID: "G1", UserID: "U1", Delta: 1})

	require.ErrorIs(t, err, domain.ErrLedgerKeyTaken)
	assert.NotErrorIs(t, err, domain.ErrConflictExceeded)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
	txRepo.AssertNumberOfCalls(t, "Create", 1)
	wallets.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestWalletService_MonotonicTimestamps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, WithClock(func() time.Time { return frozen }))

	first := env.adjust(t, "G1", "U1", 1)
	second := env.adjust(t, "G1", "U1", 1)
	assert.True(t, first.Transaction.Timestamp.Before(second.Transaction.Timestamp))

	txs, err := env.ledger.List(ctx, "G1", interfaces.ListOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, first.Transaction.ID, txs[0].ID)
	assert.Equal(t, second.Transaction.ID, txs[1].ID)
}
