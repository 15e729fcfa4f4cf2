package character

import (
	"context"
	"testing"

	"dndbot/domain/entities"
	"dndbot/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCharacters struct {
	mock.Mock
}

func (m *mockCharacters) Upsert(ctx context.Context, in interfaces.CharacterInput) (*entities.Character, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*entities.Character)
	return c, args.Error(1)
}

func (m *mockCharacters) Get(ctx context.Context, guildID, characterID string) (*entities.Character, error) {
	args := m.Called(ctx, guildID, characterID)
	c, _ := args.Get(0).(*entities.Character)
	return c, args.Error(1)
}

func (m *mockCharacters) List(ctx context.Context, guildID string) ([]*entities.Character, error) {
	args := m.Called(ctx, guildID)
	cs, _ := args.Get(0).([]*entities.Character)
	return cs, args.Error(1)
}

func (m *mockCharacters) LookupByID(ctx context.Context, id int64) (*entities.Character, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*entities.Character)
	return c, args.Error(1)
}

func TestSave(t *testing.T) {
	t.Parallel()

	in := interfaces.CharacterInput{GuildID: "g1", CharacterID: "thorin", OwnerID: "u1", Name: "Thorin"}

	tests := []struct {
		name    string
		version int64
		want    string
	}{
		{"created", 1, "✅ Created **Thorin** (`thorin`, #3)"},
		{"updated", 4, "✅ Updated **Thorin** (`thorin`, revision 4)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chars := &mockCharacters{}
			chars.On("Upsert", mock.Anything, in).Return(&entities.Character{
				ID: 3, GuildID: "g1", CharacterID: "thorin", OwnerID: "u1", Name: "Thorin", Version: tt.version,
			}, nil)

			got, err := New(chars).save(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	c := &entities.Character{
		CharacterID: "thorin",
		OwnerID:     "u1",
		Name:        "Thorin",
		Fields:      map[string]string{"race": "Dwarf", "class": "Fighter", "level": "5"},
	}

	want := "**Thorin** (`thorin`) played by <@u1>\n" +
		"Class: Fighter\n" +
		"Level: 5\n" +
		"Race: Dwarf\n"
	assert.Equal(t, want, describe(c))
}

func TestList_Empty(t *testing.T) {
	t.Parallel()

	chars := &mockCharacters{}
	chars.On("List", mock.Anything, "g1").Return(nil, nil)

	got, err := New(chars).list(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "No characters saved yet.", got)
}
