package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

func TestStorage_Profiles(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	p := NewTestProfile()

	t.Run("missing profile", func(t *testing.T) {
		_, err := storage.GetProfile(ctx, p.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("update before create is not found", func(t *testing.T) {
		done := true
		_, err := storage.UpdateProfile(ctx, p.ID, models.ProfilePatch{OnboardingCompleted: &done})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("create and read", func(t *testing.T) {
		require.NoError(t, storage.CreateProfile(ctx, p))

		user, err := storage.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Email, user.Email)
		assert.Equal(t, models.StatusTrial, user.SubscriptionStatus)
		assert.False(t, user.OnboardingCompleted)
		require.NotNil(t, user.TrialEndsAt)
		assert.True(t, p.TrialEndsAt.Equal(*user.TrialEndsAt))
		assert.Nil(t, user.SubscriptionEndsAt)
	})

	t.Run("create is insert-if-absent", func(t *testing.T) {
		again := p
		again.FullName = "Someone Else"
		require.NoError(t, storage.CreateProfile(ctx, again))

		user, err := storage.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Test User", user.FullName)
	})

	t.Run("partial update", func(t *testing.T) {
		lang := models.LanguageAR
		user, err := storage.UpdateProfile(ctx, p.ID, models.ProfilePatch{PreferredLanguage: &lang})
		require.NoError(t, err)
		assert.Equal(t, models.LanguageAR, user.PreferredLanguage)
		assert.Equal(t, "Test User", user.FullName)
		assert.False(t, user.OnboardingCompleted)

		done := true
		user, err = storage.UpdateProfile(ctx, p.ID, models.ProfilePatch{OnboardingCompleted: &done})
		require.NoError(t, err)
		assert.True(t, user.OnboardingCompleted)
		assert.Equal(t, models.LanguageAR, user.PreferredLanguage)
	})
}

func TestStorage_Rooms(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	game := models.Room{
		Slug: "old-game", NameEN: "Feelings Game", Type: models.RoomGame, IsActive: true, CreatedAt: base,
		Config: models.RoomConfig{SystemPrompt: "p", Game: &models.GameConfig{Questions: []models.Question{{ID: "q1", TextEN: "Hi"}}}},
	}
	newGame := models.Room{
		Slug: "new-game", NameEN: "Calm Game", DescriptionAR: "هدوء", Type: models.RoomGame, IsPremium: true, IsActive: true,
		CreatedAt: base.Add(time.Hour),
		Config:    models.RoomConfig{Game: &models.GameConfig{Questions: []models.Question{}}},
	}
	talk := models.Room{
		Slug: "talk", NameEN: "Talk", DescriptionEN: "A calm chat", Type: models.RoomConversation, IsActive: true,
		CreatedAt: base.Add(2 * time.Hour),
		Config:    models.RoomConfig{Conversation: &models.ConversationConfig{MaxTurns: 5, MaxDurationMinutes: 10}},
	}
	hidden := models.Room{
		Slug: "hidden", NameEN: "Calm Hidden", Type: models.RoomGame, IsActive: false, CreatedAt: base.Add(3 * time.Hour),
		Config: models.RoomConfig{Game: &models.GameConfig{}},
	}
	for _, r := range []models.Room{game, newGame, talk, hidden} {
		factory.CreateRoom(t, r)
	}

	gameType := models.RoomGame
	premium := true

	tests := []struct {
		name   string
		filter models.RoomFilter
		limit  int
		offset int
		want   []string
	}{
		{name: "all active newest first", want: []string{"talk", "new-game", "old-game"}},
		{name: "by type", filter: models.RoomFilter{Type: &gameType}, want: []string{"new-game", "old-game"}},
		{name: "premium only", filter: models.RoomFilter{IsPremium: &premium}, want: []string{"new-game"}},
		{name: "search across fields", filter: models.RoomFilter{SearchQuery: "CALM"}, want: []string{"talk", "new-game"}},
		{name: "search arabic", filter: models.RoomFilter{SearchQuery: "هدوء"}, want: []string{"new-game"}},
		{name: "no match", filter: models.RoomFilter{SearchQuery: "50%"}, want: []string{}},
		{name: "page", limit: 1, offset: 1, want: []string{"new-game"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, err := storage.ListRooms(ctx, tt.filter, tt.limit, tt.offset)
			require.NoError(t, err)
			require.NotNil(t, rooms)
			slugs := make([]string, 0, len(rooms))
			for _, r := range rooms {
				assert.True(t, r.IsActive)
				slugs = append(slugs, r.Slug)
			}
			assert.Equal(t, tt.want, slugs)
		})
	}

	t.Run("get by slug", func(t *testing.T) {
		room, err := storage.GetRoomBySlug(ctx, "talk")
		require.NoError(t, err)
		require.NotNil(t, room.Config.Conversation)
		assert.Equal(t, 5, room.Config.Conversation.MaxTurns)

		room, err = storage.GetRoomBySlug(ctx, "old-game")
		require.NoError(t, err)
		require.NotNil(t, room.Config.Game)
		assert.Equal(t, "Hi", room.Config.Game.Questions[0].TextEN)
	})

	t.Run("inactive room is not found", func(t *testing.T) {
		_, err := storage.GetRoomBySlug(ctx, "hidden")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestStorage_NonUUIDUserID(t *testing.T) {
	storage := &Storage{}
	ctx := context.Background()

	_, err := storage.GetProfile(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrNotFound)

	name := "X Y"
	_, err = storage.UpdateProfile(ctx, "not-a-uuid", models.ProfilePatch{FullName: &name})
	assert.ErrorIs(t, err, models.ErrNotFound)

	p := NewTestProfile()
	p.ID = "not-a-uuid"
	assert.ErrorIs(t, storage.CreateProfile(ctx, p), models.ErrValidation)
}

func TestStorage_RoomWithInvalidConfig(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	NewTestDataFactory(storage).CreateRoom(t, models.Room{
		Slug: "talk", Type: models.RoomConversation, IsActive: true, CreatedAt: base.Add(time.Hour),
		Config: models.RoomConfig{Conversation: &models.ConversationConfig{MaxTurns: 5}},
	})
	_, err := storage.DB.Exec(`INSERT INTO rooms (slug, name_en, type, is_active, config, created_at)
		VALUES ('broken', 'Broken', 'game', true, '{"max_turns": 3}', $1)`, base)
	require.NoError(t, err)

	rooms, err := storage.ListRooms(ctx, models.RoomFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "talk", rooms[0].Slug)
	assert.True(t, rooms[0].HasValidConfig())
	assert.Equal(t, "broken", rooms[1].Slug)
	assert.False(t, rooms[1].HasValidConfig())

	room, err := storage.GetRoomBySlug(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, room.HasValidConfig())
}
