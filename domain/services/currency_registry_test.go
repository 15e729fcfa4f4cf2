package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"dndbot/domain"
	"dndbot/domain/entities"
	"dndbot/domain/events"
	"dndbot/domain/interfaces"
	"dndbot/domain/testhelpers"
	"dndbot/schema"
	"dndbot/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCurrencyRegistry_DuplicateNames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	gold, err := env.currencies.CreateCurrency(ctx, "G1", "Gold", interfaces.CreateCurrencyOptions{Symbol: "gp", CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", gold.Name)
	assert.Equal(t, "gp", gold.Symbol)

	_, err = env.currencies.CreateCurrency(ctx, "G1", "Gold", interfaces.CreateCurrencyOptions{})
	var dup *domain.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "G1", dup.GuildID)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	other, err := env.currencies.CreateCurrency(ctx, "G2", "Gold", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, gold.ID, other.ID)
}

func TestCurrencyRegistry_ConcurrentCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.currencies.CreateCurrency(ctx, "G1", "Silver", interfaces.CreateCurrencyOptions{})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrDuplicateName):
				dupes.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), dupes.Load())

	list, err := env.currencies.ListCurrencies(ctx, "G1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCurrencyRegistry_Lookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	seen := make(map[int64]bool)
	for _, name := range []string{"Gold", "Silver", "Copper"} {
		c, err := env.currencies.CreateCurrency(ctx, "G1", name, interfaces.CreateCurrencyOptions{})
		require.NoError(t, err)
		assert.False(t, seen[c.ID], "id %d reused", c.ID)
		seen[c.ID] = true

		byName, err := env.currencies.LookupByName(ctx, "G1", " "+name+" ")
		require.NoError(t, err)
		assert.Equal(t, c.ID, byName.ID)

		env.currencies.Purge()
		byID, err := env.currencies.LookupByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, name, byID.Name)
	}

	list, err := env.currencies.ListCurrencies(ctx, "G1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Copper", list[0].Name)

	_, err = env.currencies.LookupByName(ctx, "G1", "Platinum")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.currencies.LookupByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCurrencyRegistry_IndexLag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	var misses atomic.Int32
	env.store.OnGetByIndex = func(table schema.Table, value any) error {
		if table.ID == schema.Currencies && misses.Add(1) <= 2 {
			return store.ErrItemNotFound
		}
		return nil
	}

	c, err := env.currencies.CreateCurrency(ctx, "G1", "Gold", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), misses.Load())

	env.currencies.Purge()
	got, err := env.currencies.LookupByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestCurrencyRegistry_NeverIndexed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.OnGetByIndex = func(table schema.Table, value any) error {
		return store.ErrItemNotFound
	}

	_, err := env.currencies.CreateCurrency(ctx, "G1", "Gold", interfaces.CreateCurrencyOptions{})
	assert.ErrorIs(t, err, domain.ErrConflictExceeded)

	// the record itself was written and a recent lookup by name keeps waiting for the index
	_, err = env.currencies.LookupByName(ctx, "G1", "Gold")
	assert.ErrorIs(t, err, domain.ErrConflictExceeded)
}

func TestCurrencyRegistry_CreateCurrency(t *testing.T) {
	t.Parallel()
	boom := errors.New("store unavailable")

	tests := []struct {
		name      string
		guildID   string
		input     string
		setupMock func(repo *testhelpers.MockCurrencyRepository)
		wantErr   error
		wantName  string
	}{
		{
			name:    "empty name",
			guildID: "G1",
			input:   "   ",
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "name too long",
			guildID: "G1",
			input:   strings.Repeat("x", entities.MaxCurrencyNameLength+1),
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "missing guild",
			input:   "Gold",
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "existing name",
			guildID: "G1",
			input:   "Gold",
			setupMock: func(repo *testhelpers.MockCurrencyRepository) {
				repo.On("GetByName", mock.Anything, "G1", "Gold").Return(&entities.Currency{ID: 1, GuildID: "G1", Name: "Gold"}, nil)
			},
			wantErr: domain.ErrDuplicateName,
		},
		{
			name:    "lookup failure",
			guildID: "G1",
			input:   "Gold",
			setupMock: func(repo *testhelpers.MockCurrencyRepository) {
				repo.On("GetByName", mock.Anything, "G1", "Gold").Return(nil, boom)
			},
			wantErr: boom,
		},
		{
			name:    "lost the race on create",
			guildID: "G1",
			input:   "Gold",
			setupMock: func(repo *testhelpers.MockCurrencyRepository) {
				repo.On("GetByName", mock.Anything, "G1", "Gold").Return(nil, nil)
				repo.On("NextID", mock.Anything).Return(int64(7), nil)
				repo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Currency")).
					Return(&domain.DuplicateNameError{GuildID: "G1", Name: "Gold"})
			},
			wantErr: domain.ErrDuplicateName,
		},
		{
			name:    "success trims name",
			guildID: "G1",
			input:   "  Gold ",
			setupMock: func(repo *testhelpers.MockCurrencyRepository) {
				repo.On("GetByName", mock.Anything, "G1", "Gold").Return(nil, nil)
				repo.On("NextID", mock.Anything).Return(int64(7), nil)
				repo.On("Create", mock.Anything, mock.MatchedBy(func(c *entities.Currency) bool {
					return c.ID == 7 && c.Name == "Gold" && c.GuildID == "G1"
				})).Return(nil)
				repo.On("GetByID", mock.Anything, int64(7)).Return(&entities.Currency{ID: 7}, nil)
			},
			wantName: "Gold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := new(testhelpers.MockCurrencyRepository)
			publisher := new(testhelpers.MockEventPublisher)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}
			if tt.wantErr == nil {
				publisher.On("Publish", mock.MatchedBy(func(e events.CurrencyCreatedEvent) bool {
					return e.CurrencyID == 7 && e.GuildID == "G1"
				})).Return(nil)
			}

			registry := NewCurrencyRegistry(repo, publisher, WithIndexPolicy(fastPolicy))
			got, err := registry.CreateCurrency(context.Background(), tt.guildID, tt.input, interfaces.CreateCurrencyOptions{})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, got.Name)
			}
			repo.AssertExpectations(t)
			publisher.AssertExpectations(t)
		})
	}
}

func TestCurrencyRegistry_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	repo := new(testhelpers.MockCurrencyRepository)
	publisher := new(testhelpers.MockEventPublisher)

	repo.On("GetByName", mock.Anything, "G1", "Gold").Return(nil, nil)
	repo.On("NextID", mock.Anything).Return(int64(1), nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("GetByID", mock.Anything, int64(1)).Return(&entities.Currency{ID: 1}, nil)
	publisher.On("Publish", mock.Anything).Return(errors.New("nats down"))

	registry := NewCurrencyRegistry(repo, publisher)
	c, err := registry.CreateCurrency(context.Background(), "G1", "Gold", interfaces.CreateCurrencyOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)

	// served from cache
	got, err := registry.LookupByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, c, got)
	repo.AssertNumberOfCalls(t, "GetByID", 1)
}
