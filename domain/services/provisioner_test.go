package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"dndbot/domain"
	"dndbot/domain/interfaces"
	"dndbot/domain/testhelpers"
	"dndbot/schema"
	"dndbot/store"
	"dndbot/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvisioner(s store.Store, opts ...ProvisionerOption) interfaces.Provisioner {
	opts = append([]ProvisionerOption{WithPollInterval(time.Millisecond), WithSettleTimeout(2 * time.Second)}, opts...)
	return NewProvisioner(s, schema.NewCatalog("test_"), opts...)
}

func TestProvisioner_CreatesEveryTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testhelpers.NewFaultyStore(memory.New())
	p := newTestProvisioner(s)

	require.NoError(t, p.Provision(ctx))

	for _, table := range schema.NewCatalog("test_").Tables() {
		desc, err := s.DescribeTable(ctx, table.Name)
		require.NoError(t, err, table.Name)
		assert.Equal(t, store.TableStatusActive, desc.Status)
		for _, idx := range table.Indexes {
			assert.Contains(t, desc.Indexes, idx.Name)
		}
	}

	// nothing existed, so nothing was deleted
	assert.Equal(t, []string{
		"create test_currencies",
		"create test_user_wallets",
		"create test_guild_settings",
		"create test_transactions",
		"create test_characters",
	}, s.Calls())

	problems, err := p.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestProvisioner_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testhelpers.NewFaultyStore(memory.New(
		memory.WithCreationDelay(10*time.Millisecond),
		memory.WithDeletionDelay(10*time.Millisecond),
	))
	p := newTestProvisioner(s)

	require.NoError(t, p.Provision(ctx))
	require.NoError(t, p.Provision(ctx))

	calls := s.Calls()
	// second run: four unprotected tables dropped and recreated, characters only created
	assert.Equal(t, []string{
		"delete test_currencies", "create test_currencies",
		"delete test_user_wallets", "create test_user_wallets",
		"delete test_guild_settings", "create test_guild_settings",
		"delete test_transactions", "create test_transactions",
		"create test_characters",
	}, calls[5:])

	problems, err := p.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestProvisioner_ProtectedTableSurvives(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	currency, err := env.currencies.CreateCurrency(ctx, "g1", "gold", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	env.adjust(t, "g1", "u1", 50)
	_, err = env.settings.Upsert(ctx, "g1", map[string]string{"prefix": "!"})
	require.NoError(t, err)

	var ids []int64
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		c, err := env.characters.Upsert(ctx, interfaces.CharacterInput{
			GuildID:     "g1",
			CharacterID: name,
			OwnerID:     "u1",
			Name:        name,
		})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	require.NoError(t, env.provisioner.Provision(ctx))

	chars, err := env.characters.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, chars, 5)
	for i, c := range chars {
		assert.Equal(t, ids[i], c.ID)
	}

	currencies, err := env.currencies.ListCurrencies(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, currencies)

	// the registry cache was purged with the table
	_, err = env.currencies.LookupByID(ctx, currency.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	wallets, err := env.wallets.ListWallets(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, wallets)

	txs, err := env.ledger.List(ctx, "g1", interfaces.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = env.settings.Get(ctx, "g1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the character counter lives in the protected table and keeps counting
	next, err := env.characters.Upsert(ctx, interfaces.CharacterInput{GuildID: "g1", CharacterID: "f", OwnerID: "u1", Name: "f"})
	require.NoError(t, err)
	assert.Greater(t, next.ID, ids[len(ids)-1])
}

func TestProvisioner_IdsKeepIncreasingAcrossReprovision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	gold, err := env.currencies.CreateCurrency(ctx, "g1", "gold", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	before := env.adjust(t, "g1", "u1", 50)

	require.NoError(t, env.provisioner.Provision(ctx))

	silver, err := env.currencies.CreateCurrency(ctx, "g1", "silver", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	after := env.adjust(t, "g1", "u1", 50)

	assert.Greater(t, silver.ID, gold.ID)
	assert.Greater(t, after.Wallet.ID, before.Wallet.ID)
	assert.Greater(t, after.Transaction.ID, before.Transaction.ID)

	// the counters sit in the protected table, not in the recreated ones
	counters, err := env.store.Query(ctx, env.catalog.Table(schema.Characters), store.QueryInput{Partition: schema.SequencePartition})
	require.NoError(t, err)
	assert.Len(t, counters, 3)
}

func TestProvisioner_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("throttled")

	tests := []struct {
		name    string
		setup   func(s *testhelpers.FaultyStore)
		wantErr bool
		table   string
		op      string
	}{
		{
			name: "create failure",
			setup: func(s *testhelpers.FaultyStore) {
				s.OnCreate = func(table schema.Table) error {
					if table.ID == schema.GuildSettings {
						return boom
					}
					return nil
				}
			},
			wantErr: true,
			table:   "test_guild_settings",
			op:      "create",
		},
		{
			name: "protected create failure",
			setup: func(s *testhelpers.FaultyStore) {
				s.OnCreate = func(table schema.Table) error {
					if table.Protected {
						return boom
					}
					return nil
				}
			},
			wantErr: true,
			table:   "test_characters",
			op:      "create",
		},
		{
			name: "delete failure",
			setup: func(s *testhelpers.FaultyStore) {
				s.OnDelete = func(name string) error { return boom }
			},
			wantErr: true,
			table:   "test_currencies",
			op:      "delete",
		},
		{
			name: "table vanished before delete",
			setup: func(s *testhelpers.FaultyStore) {
				s.OnDelete = func(name string) error {
					_ = s.Store.DeleteTable(ctx, name)
					return store.ErrTableNotFound
				}
			},
		},
		{
			name: "table created concurrently",
			setup: func(s *testhelpers.FaultyStore) {
				s.OnCreate = func(table schema.Table) error {
					_ = s.Store.CreateTable(ctx, table)
					return store.ErrTableExists
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testhelpers.NewFaultyStore(memory.New())
			p := newTestProvisioner(s)
			// first run on a clean store so delete paths are reached
			require.NoError(t, p.Provision(ctx))
			tt.setup(s)

			err := p.Provision(ctx)
			if !tt.wantErr {
				require.NoError(t, err)
				problems, err := p.Verify(ctx)
				require.NoError(t, err)
				assert.Empty(t, problems)
				return
			}

			var provErr *domain.ProvisioningError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.table, provErr.Table)
			assert.Equal(t, tt.op, provErr.Op)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestProvisioner_SettleTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New(memory.WithDeletionDelay(time.Hour))
	p := newTestProvisioner(s, WithSettleTimeout(50*time.Millisecond))

	require.NoError(t, p.Provision(ctx))

	err := p.Provision(ctx)
	var provErr *domain.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "test_currencies", provErr.Table)
	assert.Equal(t, "await deletion", provErr.Op)
}

func TestProvisioner_Cancelled(t *testing.T) {
	t.Parallel()
	s := memory.New(memory.WithCreationDelay(time.Hour))
	p := newTestProvisioner(s)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Provision(ctx)
	var provErr *domain.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "await creation", provErr.Op)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProvisioner_RecreateHook(t *testing.T) {
	t.Parallel()
	var recreated []schema.TableID
	p := newTestProvisioner(memory.New(), WithRecreateHook(func(table schema.Table) {
		recreated = append(recreated, table.ID)
	}))

	require.NoError(t, p.Provision(context.Background()))
	assert.Equal(t, []schema.TableID{schema.Currencies, schema.Wallets, schema.GuildSettings, schema.Transactions}, recreated)
}

func TestProvisioner_Verify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	catalog := schema.NewCatalog("test_")
	s := memory.New()
	p := newTestProvisioner(s)

	problems, err := p.Verify(ctx)
	require.NoError(t, err)
	assert.Len(t, problems, len(schema.All()))

	require.NoError(t, p.Provision(ctx))
	require.NoError(t, s.DeleteTable(ctx, catalog.Name(schema.Wallets)))

	// a table without its id index counts as broken
	broken := catalog.Table(schema.Transactions)
	require.NoError(t, s.DeleteTable(ctx, broken.Name))
	broken.Indexes = nil
	require.NoError(t, s.CreateTable(ctx, broken))

	problems, err = p.Verify(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"test_user_wallets", "test_transactions"}, problems)
}
