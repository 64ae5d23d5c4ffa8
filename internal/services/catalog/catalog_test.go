package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/therapy-rooms/internal/cache"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/retry"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

type SourceMock struct{ mock.Mock }

func (m *SourceMock) ListRooms(ctx context.Context, filter models.RoomFilter, limit, offset int) ([]models.Room, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *SourceMock) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var base = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func room(slug string, typ models.RoomType, premium, active bool, age time.Duration) models.Room {
	r := models.Room{
		ID:            slug + "-id",
		Slug:          slug,
		NameEN:        "Room " + slug,
		NameAR:        "غرفة",
		DescriptionEN: "About " + slug,
		Type:          typ,
		IsPremium:     premium,
		IsActive:      active,
		CreatedAt:     base.Add(-age),
	}
	switch typ {
	case models.RoomGame:
		r.Config.Game = &models.GameConfig{Questions: []models.Question{}}
	case models.RoomAnalysis:
		r.Config.Analysis = &models.AnalysisConfig{Questions: []models.AnalysisQuestion{}}
	default:
		r.Config.Conversation = &models.ConversationConfig{MaxTurns: 20, MaxDurationMinutes: 15}
	}
	return r
}

type fixture struct {
	source *SourceMock
	clock  *clock
	svc    *Service
}

func newFixture(t *testing.T, policy retry.Policy) *fixture {
	t.Helper()
	f := &fixture{source: &SourceMock{}, clock: &clock{now: base}}
	f.svc = New(f.source, cache.NewMemory(64, time.Hour), newNoopLogger(), Options{
		StaleTime: 5 * time.Minute,
		CacheTTL:  30 * time.Minute,
		Retry:     policy,
		Now:       f.clock.Now,
	})
	t.Cleanup(func() {
		f.svc.Wait()
		f.source.AssertExpectations(t)
	})
	return f
}

var once = retry.Policy{Attempts: 1}

func TestService_ListRooms(t *testing.T) {
	game := models.RoomGame
	premium := true

	tests := []struct {
		name    string
		filter  models.RoomFilter
		backend []models.Room
		want    []string
	}{
		{
			name:   "newest first",
			filter: models.RoomFilter{},
			backend: []models.Room{
				room("old", models.RoomGame, false, true, 3*time.Hour),
				room("new", models.RoomConversation, false, true, time.Hour),
			},
			want: []string{"new", "old"},
		},
		{
			name:   "inactive rooms dropped",
			filter: models.RoomFilter{},
			backend: []models.Room{
				room("on", models.RoomGame, false, true, time.Hour),
				room("off", models.RoomGame, false, false, time.Hour),
			},
			want: []string{"on"},
		},
		{
			name:   "filter re-applied",
			filter: models.RoomFilter{Type: &game, IsPremium: &premium},
			backend: []models.Room{
				room("match", models.RoomGame, true, true, time.Hour),
				room("free", models.RoomGame, false, true, time.Hour),
				room("talk", models.RoomConversation, true, true, time.Hour),
			},
			want: []string{"match"},
		},
		{
			name:    "no match yields empty list",
			filter:  models.RoomFilter{SearchQuery: "nothing"},
			backend: []models.Room{},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, once)
			f.source.On("ListRooms", mock.Anything, tt.filter, 0, 0).Return(tt.backend, nil).Once()

			rooms, err := f.svc.ListRooms(context.Background(), tt.filter)
			require.NoError(t, err)
			require.NotNil(t, rooms)

			slugs := make([]string, 0, len(rooms))
			for _, r := range rooms {
				slugs = append(slugs, r.Slug)
			}
			assert.Equal(t, tt.want, slugs)
		})
	}
}

func TestService_ListRoomsFreshHit(t *testing.T) {
	f := newFixture(t, once)
	rooms := []models.Room{room("a", models.RoomGame, false, true, time.Hour)}
	f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return(rooms, nil).Once()

	first, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)

	f.clock.Advance(4 * time.Minute)
	second, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, rooms, second)
}

func TestService_StaleWhileRevalidate(t *testing.T) {
	f := newFixture(t, once)
	old := []models.Room{room("old", models.RoomGame, false, true, time.Hour)}
	fresh := []models.Room{room("fresh", models.RoomGame, false, true, time.Minute)}

	f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return(old, nil).Once()
	f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return(fresh, nil).Once()

	_, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	stale, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)
	assert.Equal(t, "old", stale[0].Slug)

	f.svc.Wait()
	got, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got[0].Slug)
}

func TestService_Retries(t *testing.T) {
	policy := retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

	t.Run("transient failures are retried", func(t *testing.T) {
		f := newFixture(t, policy)
		unavailable := &models.ProviderError{Status: 503, Message: "unavailable"}
		f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return(nil, unavailable).Twice()
		f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).
			Return([]models.Room{room("a", models.RoomGame, false, true, time.Hour)}, nil).Once()

		rooms, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
		require.NoError(t, err)
		assert.Len(t, rooms, 1)
	})

	t.Run("authorization failures are not retried", func(t *testing.T) {
		f := newFixture(t, policy)
		denied := &models.ProviderError{Status: 401, Code: "PGRST301", Message: "JWT expired"}
		f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return(nil, denied).Once()

		_, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
		require.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		f := newFixture(t, policy)
		unavailable := &models.ProviderError{Status: 502, Message: "bad gateway"}
		f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return(nil, unavailable).Times(3)

		_, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
		require.ErrorIs(t, err, models.ErrTransient)
	})
}

func TestService_ListRoomsPage(t *testing.T) {
	f := newFixture(t, once)
	filter := models.RoomFilter{}
	f.source.On("ListRooms", mock.Anything, filter, 2, 0).Return([]models.Room{
		room("a", models.RoomGame, false, true, time.Hour),
		room("b", models.RoomGame, false, true, 2*time.Hour),
	}, nil).Once()
	f.source.On("ListRooms", mock.Anything, filter, 2, 2).Return([]models.Room{
		room("c", models.RoomGame, false, true, 3*time.Hour),
	}, nil).Once()

	first, err := f.svc.ListRoomsPage(context.Background(), filter, 2, "")
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextPageToken)

	second, err := f.svc.ListRoomsPage(context.Background(), filter, 2, first.NextPageToken)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "c", second.Items[0].Slug)
	assert.Empty(t, second.NextPageToken)
}

func TestService_DropsRoomsWithInvalidConfig(t *testing.T) {
	broken := room("broken", models.RoomGame, false, true, 2*time.Hour)
	broken.Config = models.RoomConfig{}

	t.Run("list", func(t *testing.T) {
		f := newFixture(t, once)
		f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).Return([]models.Room{
			room("a", models.RoomConversation, false, true, time.Hour), broken,
		}, nil).Once()

		rooms, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, "a", rooms[0].Slug)
	})

	t.Run("page keeps going past a dropped row", func(t *testing.T) {
		f := newFixture(t, once)
		f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 2, 0).Return([]models.Room{
			room("a", models.RoomConversation, false, true, time.Hour), broken,
		}, nil).Once()

		p, err := f.svc.ListRoomsPage(context.Background(), models.RoomFilter{}, 2, "")
		require.NoError(t, err)
		assert.Len(t, p.Items, 1)
		assert.NotEmpty(t, p.NextPageToken)
	})

	t.Run("get", func(t *testing.T) {
		f := newFixture(t, once)
		f.source.On("GetRoomBySlug", mock.Anything, "broken").Return(&broken, nil).Once()

		got, err := f.svc.GetRoom(context.Background(), "broken")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestService_ListRoomsPageInvalid(t *testing.T) {
	f := newFixture(t, once)

	_, err := f.svc.ListRoomsPage(context.Background(), models.RoomFilter{}, 0, "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.ListRoomsPage(context.Background(), models.RoomFilter{}, 10, "%%%")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPageToken(t *testing.T) {
	for _, offset := range []int{0, 1, 20, 12345} {
		got, err := DecodePageToken(EncodePageToken(offset))
		require.NoError(t, err)
		assert.Equal(t, offset, got)
	}

	got, err := DecodePageToken("")
	require.NoError(t, err)
	assert.Zero(t, got)

	for _, bad := range []string{"bm9wZQ", "b2Zmc2V0Oi0x", "!!"} {
		_, err := DecodePageToken(bad)
		assert.ErrorIs(t, err, models.ErrValidation, bad)
	}
}

func TestService_GetRoom(t *testing.T) {
	active := room("calm", models.RoomConversation, false, true, time.Hour)
	inactive := room("gone", models.RoomConversation, false, false, time.Hour)

	tests := []struct {
		name    string
		slug    string
		setup   func(m *SourceMock)
		want    *models.Room
		wantErr error
	}{
		{
			name: "found",
			slug: "calm",
			setup: func(m *SourceMock) {
				m.On("GetRoomBySlug", mock.Anything, "calm").Return(&active, nil).Once()
			},
			want: &active,
		},
		{
			name: "missing",
			slug: "nope",
			setup: func(m *SourceMock) {
				m.On("GetRoomBySlug", mock.Anything, "nope").
					Return(nil, &models.ProviderError{Status: 406, Code: "PGRST116"}).Once()
			},
		},
		{
			name: "inactive",
			slug: "gone",
			setup: func(m *SourceMock) {
				m.On("GetRoomBySlug", mock.Anything, "gone").Return(&inactive, nil).Once()
			},
		},
		{
			name:  "blank slug",
			slug:  "  ",
			setup: func(*SourceMock) {},
		},
		{
			name: "backend failure",
			slug: "calm",
			setup: func(m *SourceMock) {
				m.On("GetRoomBySlug", mock.Anything, "calm").
					Return(nil, &models.ProviderError{Status: 500, Message: "boom"}).Once()
			},
			wantErr: models.ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, once)
			tt.setup(f.source)

			got, err := f.svc.GetRoom(context.Background(), tt.slug)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_GetRoomMissingIsCached(t *testing.T) {
	f := newFixture(t, once)
	f.source.On("GetRoomBySlug", mock.Anything, "nope").Return(nil, models.ErrNotFound).Once()

	for range 2 {
		got, err := f.svc.GetRoom(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestService_Invalidate(t *testing.T) {
	f := newFixture(t, once)
	f.source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).
		Return([]models.Room{room("a", models.RoomGame, false, true, time.Hour)}, nil).Twice()

	_, err := f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Invalidate(context.Background()))

	_, err = f.svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)
}

type brokenCache struct{ cache.Cache }

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("connection refused")
}

func TestService_CacheFailureFallsBackToSource(t *testing.T) {
	source := &SourceMock{}
	svc := New(source, brokenCache{}, newNoopLogger(), Options{Retry: once})
	source.On("ListRooms", mock.Anything, models.RoomFilter{}, 0, 0).
		Return([]models.Room{room("a", models.RoomGame, false, true, time.Hour)}, nil).Once()

	rooms, err := svc.ListRooms(context.Background(), models.RoomFilter{})
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
	source.AssertExpectations(t)
}

type recorder struct {
	mu      sync.Mutex
	lookups []string
	fetches []string
}

func (r *recorder) CacheLookup(result string) {
	r.mu.Lock()
	r.lookups = append(r.lookups, result)
	r.mu.Unlock()
}

func (r *recorder) Fetch(op string, _ time.Duration, _ error) {
	r.mu.Lock()
	r.fetches = append(r.fetches, op)
	r.mu.Unlock()
}

func TestService_Metrics(t *testing.T) {
	source := &SourceMock{}
	rec := &recorder{}
	clk := &clock{now: base}
	svc := New(source, cache.NewMemory(8, time.Hour), newNoopLogger(), Options{Retry: once, Now: clk.Now, Metrics: rec})
	source.On("GetRoomBySlug", mock.Anything, "calm").
		Return(&models.Room{Slug: "calm", Type: models.RoomConversation, IsActive: true,
			Config: models.RoomConfig{Conversation: &models.ConversationConfig{}}}, nil).Twice()

	ctx := context.Background()
	_, _ = svc.GetRoom(ctx, "calm")
	_, _ = svc.GetRoom(ctx, "calm")
	clk.Advance(10 * time.Minute)
	_, _ = svc.GetRoom(ctx, "calm")
	svc.Wait()

	assert.Equal(t, []string{CacheMiss, CacheFresh, CacheStale}, rec.lookups)
	assert.Equal(t, []string{"room", "room"}, rec.fetches)
	source.AssertExpectations(t)
}
