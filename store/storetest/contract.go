// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages run it against their own implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dndbot/schema"
	"dndbot/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniquePrefix keeps tables of parallel runs against one backend apart
func uniquePrefix() string {
	return "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10] + "_"
}

// CreateReady creates a table and waits until the backend reports it active
func CreateReady(t *testing.T, s store.Store, def schema.Table) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.CreateTable(ctx, def))
	require.Eventually(t, func() bool {
		desc, err := s.DescribeTable(ctx, def.Name)
		return err == nil && desc.Status == store.TableStatusActive
	}, 30*time.Second, 50*time.Millisecond)
}

// WaitGone waits until a deleted table is no longer described
func WaitGone(t *testing.T, s store.Store, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := s.DescribeTable(context.Background(), name)
		return errors.Is(err, store.ErrTableNotFound)
	}, 30*time.Second, 50*time.Millisecond)
}

// Run exercises the full store contract
func Run(t *testing.T, s store.Store) {
	t.Run("table lifecycle", func(t *testing.T) { testTableLifecycle(t, s) })
	t.Run("conditional put", func(t *testing.T) { testConditionalPut(t, s) })
	t.Run("get", func(t *testing.T) { testGet(t, s) })
	t.Run("query ordering", func(t *testing.T) { testQueryOrdering(t, s) })
	t.Run("index lookup", func(t *testing.T) { testIndexLookup(t, s) })
	t.Run("value types", func(t *testing.T) { testValueTypes(t, s) })
	t.Run("table without sort key", func(t *testing.T) { testNoSortKey(t, s) })
}

func testTableLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.Currencies.Definition(uniquePrefix())

	_, err := s.DescribeTable(ctx, def.Name)
	assert.ErrorIs(t, err, store.ErrTableNotFound)

	CreateReady(t, s, def)

	err = s.CreateTable(ctx, def)
	assert.ErrorIs(t, err, store.ErrTableExists)

	desc, err := s.DescribeTable(ctx, def.Name)
	require.NoError(t, err)
	assert.Equal(t, def.Name, desc.Name)
	assert.Contains(t, desc.Indexes, schema.IDIndex)

	require.NoError(t, s.DeleteTable(ctx, def.Name))
	WaitGone(t, s, def.Name)

	err = s.DeleteTable(ctx, def.Name)
	assert.ErrorIs(t, err, store.ErrTableNotFound)
}

func testConditionalPut(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.Wallets.Definition(uniquePrefix())
	CreateReady(t, s, def)

	item := store.Item{"guildId": "g1", "userId": "u1", "id": int64(1), "balance": int64(10), "version": int64(1)}

	require.NoError(t, s.Put(ctx, def, item, store.IfNotExists()))
	err := s.Put(ctx, def, item, store.IfNotExists())
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	updated := item.Clone()
	updated["balance"] = int64(20)
	updated["version"] = int64(2)
	require.NoError(t, s.Put(ctx, def, updated, store.IfEquals("version", int64(1))))

	stale := item.Clone()
	stale["balance"] = int64(99)
	err = s.Put(ctx, def, stale, store.IfEquals("version", int64(1)))
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	absent := store.Item{"guildId": "g1", "userId": "nobody", "id": int64(2)}
	err = s.Put(ctx, def, absent, store.IfExists())
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	got, err := s.Get(ctx, def, store.Key{Partition: "g1", Sort: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Int("balance"))
	assert.Equal(t, int64(2), got.Int("version"))
}

func testGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.Currencies.Definition(uniquePrefix())
	CreateReady(t, s, def)

	_, err := s.Get(ctx, def, store.Key{Partition: "g1", Sort: "Gold"})
	assert.ErrorIs(t, err, store.ErrItemNotFound)

	require.NoError(t, s.Put(ctx, def, store.Item{"guildId": "g1", "name": "Gold", "id": int64(7)}, store.Always))
	got, err := s.Get(ctx, def, store.Key{Partition: "g1", Sort: "Gold"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", got.String("name"))

	require.NoError(t, s.Delete(ctx, def, store.Key{Partition: "g1", Sort: "Gold"}))
	_, err = s.Get(ctx, def, store.Key{Partition: "g1", Sort: "Gold"})
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func testQueryOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.Transactions.Definition(uniquePrefix())
	CreateReady(t, s, def)

	sorts := []string{"2024-01-01T00:00:02#2", "2024-01-01T00:00:01#3", "2024-01-01T00:00:01#1", "2024-01-01T00:00:03#4"}
	for i, sk := range sorts {
		require.NoError(t, s.Put(ctx, def, store.Item{"guildId": "g1", "timestamp": sk, "id": int64(i + 1)}, store.IfNotExists()))
	}
	require.NoError(t, s.Put(ctx, def, store.Item{"guildId": "g2", "timestamp": "2024-01-01T00:00:00#9", "id": int64(9)}, store.IfNotExists()))

	items, err := s.Query(ctx, def, store.QueryInput{Partition: "g1"})
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "2024-01-01T00:00:01#1", items[0].String("timestamp"))
	assert.Equal(t, "2024-01-01T00:00:01#3", items[1].String("timestamp"))
	assert.Equal(t, "2024-01-01T00:00:02#2", items[2].String("timestamp"))
	assert.Equal(t, "2024-01-01T00:00:03#4", items[3].String("timestamp"))

	items, err = s.Query(ctx, def, store.QueryInput{Partition: "g1", From: "2024-01-01T00:00:02", To: "2024-01-01T00:00:03#4"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2024-01-01T00:00:02#2", items[0].String("timestamp"))

	items, err = s.Query(ctx, def, store.QueryInput{Partition: "g1", Limit: 2, Descending: true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2024-01-01T00:00:03#4", items[0].String("timestamp"))
	assert.Equal(t, "2024-01-01T00:00:02#2", items[1].String("timestamp"))

	items, err = s.Query(ctx, def, store.QueryInput{Partition: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testIndexLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.Characters.Definition(uniquePrefix())
	CreateReady(t, s, def)

	for i := 1; i <= 3; i++ {
		item := store.Item{"guildId": fmt.Sprintf("g%d", i), "characterId": "hero", "id": int64(i * 10)}
		require.NoError(t, s.Put(ctx, def, item, store.IfNotExists()))
	}
	// items without the index attribute are not indexed
	require.NoError(t, s.Put(ctx, def, store.Item{"guildId": schema.SequencePartition, "characterId": def.Name, "value": int64(3)}, store.Always))

	var got store.Item
	require.Eventually(t, func() bool {
		var err error
		got, err = s.GetByIndex(ctx, def, schema.IDIndex, int64(20))
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, "g2", got.String("guildId"))

	_, err := s.GetByIndex(ctx, def, schema.IDIndex, int64(999))
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func testValueTypes(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.Characters.Definition(uniquePrefix())
	CreateReady(t, s, def)

	item := store.Item{
		"guildId":     "g1",
		"characterId": "c1",
		"id":          int64(1),
		"level":       int64(-3),
		"big":         int64(1) << 52,
		"alive":       true,
		"fields":      store.Item{"class": "wizard", "race": "elf"},
		"pending":     store.Item{"amount": int64(-5), "operationId": "op"},
	}
	require.NoError(t, s.Put(ctx, def, item, store.Always))

	got, err := s.Get(ctx, def, store.Key{Partition: "g1", Sort: "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.Int("level"))
	assert.Equal(t, int64(1)<<52, got.Int("big"))
	assert.True(t, got.Bool("alive"))
	assert.Equal(t, map[string]string{"class": "wizard", "race": "elf"}, got.StringMap("fields"))
	assert.Equal(t, int64(-5), got.Map("pending").Int("amount"))
}

func testNoSortKey(t *testing.T, s store.Store) {
	ctx := context.Background()
	def := schema.GuildSettings.Definition(uniquePrefix())
	CreateReady(t, s, def)

	require.NoError(t, s.Put(ctx, def, store.Item{"guildId": "g1", "settings": store.Item{"prefix": "!"}}, store.Always))
	require.NoError(t, s.Put(ctx, def, store.Item{"guildId": "g1", "settings": store.Item{"prefix": "?"}}, store.Always))

	got, err := s.Get(ctx, def, store.Key{Partition: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "?", got.StringMap("settings")["prefix"])
}
