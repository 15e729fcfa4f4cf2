package services

import (
	"context"
	"testing"
	"time"

	"dndbot/domain/interfaces"
	"dndbot/domain/testhelpers"
	"dndbot/repository"
	"dndbot/schema"
	"dndbot/store/memory"

	"github.com/stretchr/testify/require"
)

// fastPolicy keeps retries quick in tests
var fastPolicy = RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

// testEnv wires every service against one in-memory store
type testEnv struct {
	store       *testhelpers.FaultyStore
	catalog     *schema.Catalog
	provisioner interfaces.Provisioner
	currencies  interfaces.CurrencyRegistry
	wallets     interfaces.WalletService
	ledger      interfaces.LedgerService
	settings    interfaces.GuildSettingsService
	characters  interfaces.CharacterService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   testhelpers.NewFaultyStore(memory.New()),
		catalog: schema.NewCatalog("test_"),
	}
	opts = append([]Option{WithRetryPolicy(fastPolicy), WithIndexPolicy(fastPolicy)}, opts...)

	publisher := testhelpers.NewQuietPublisher()
	txRepo := repository.NewTransactionRepository(env.store, env.catalog)

	env.currencies = NewCurrencyRegistry(repository.NewCurrencyRepository(env.store, env.catalog), publisher, opts...)
	env.ledger = NewLedgerService(txRepo, publisher, opts...)
	env.wallets = NewWalletService(repository.NewWalletRepository(env.store, env.catalog), txRepo, env.ledger, opts...)
	env.settings = NewGuildSettingsService(repository.NewGuildSettingsRepository(env.store, env.catalog), opts...)
	env.characters = NewCharacterService(repository.NewCharacterRepository(env.store, env.catalog), publisher, opts...)

	registry := env.currencies
	env.provisioner = NewProvisioner(env.store, env.catalog,
		WithPollInterval(time.Millisecond),
		WithSettleTimeout(2*time.Second),
		WithRecreateHook(func(table schema.Table) {
			if table.ID == schema.Currencies {
				registry.Purge()
			}
		}),
	)
	require.NoError(t, env.provisioner.Provision(context.Background()))
	return env
}

func (e *testEnv) adjust(t *testing.T, guildID, userID string, delta int64) *interfaces.AdjustResult {
	t.Helper()
	res, err := e.wallets.AdjustBalance(context.Background(), interfaces.AdjustRequest{
		GuildID: guildID,
		UserID:  userID,
		Delta:   delta,
		Actor:   "admin",
	})
	require.NoError(t, err)
	return res
}
