package cmd

import (
	"context"
	"testing"
	"time"

	"dndbot/config"
	"dndbot/domain/interfaces"
	"dndbot/infrastructure"
	"dndbot/schema"
	"dndbot/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.NewTestConfig()
	cfg.TablePrefix = "cmd_"
	cfg.ProvisionSettleTimeout = 2 * time.Second
	return cfg
}

func TestNewApp_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	app := NewApp(testConfig(), memory.New(), infrastructure.NewNoopEventPublisher())
	defer app.Close()
	require.NoError(t, app.Provisioner.Provision(ctx))

	problems, err := app.Provisioner.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)

	gold, err := app.Services.Currencies.CreateCurrency(ctx, "g1", "Gold", interfaces.CreateCurrencyOptions{Symbol: "gp"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", gold.Name)

	res, err := app.Services.Wallets.AdjustBalance(ctx, interfaces.AdjustRequest{GuildID: "g1", UserID: "u1", Delta: 100, Actor: "dm"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Wallet.Balance)

	txs, err := app.Services.Ledger.List(ctx, "g1", interfaces.ListOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, res.Transaction.ID, txs[0].ID)
}

func TestNewApp_RecreatePurgesCurrencyCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	app := NewApp(testConfig(), memory.New(), infrastructure.NewNoopEventPublisher())
	require.NoError(t, app.Provisioner.Provision(ctx))

	_, err := app.Services.Currencies.CreateCurrency(ctx, "g1", "Gold", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	_, err = app.Services.Currencies.LookupByName(ctx, "g1", "Gold")
	require.NoError(t, err)

	require.NoError(t, app.Provisioner.Provision(ctx))

	_, err = app.Services.Currencies.LookupByName(ctx, "g1", "Gold")
	assert.Error(t, err)
	assert.Equal(t, "cmd_currencies", app.Catalog.Name(schema.Currencies))
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	s, err := OpenStore(context.Background(), testConfig())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	cfg := testConfig()
	cfg.StoreBackend = "cassandra"
	_, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProvision_Check(t *testing.T) {
	t.Parallel()

	// every memory store starts empty, so the check always finds work
	err := Provision(context.Background(), testConfig(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need provisioning")

	require.NoError(t, Provision(context.Background(), testConfig(), false))
}

func TestMigrate_Validation(t *testing.T) {
	t.Parallel()

	assert.Error(t, Migrate(testConfig(), []string{"up"}))

	cfg := testConfig()
	cfg.StoreBackend = config.BackendPostgres
	cfg.DatabaseURL = "postgres://localhost:5432/dndbot"
	assert.ErrorIs(t, Migrate(cfg, nil), ErrUsage)
	assert.ErrorIs(t, Migrate(cfg, []string{"sideways"}), ErrUsage)
	assert.ErrorIs(t, Migrate(cfg, []string{"down", "two"}), ErrUsage)
}
