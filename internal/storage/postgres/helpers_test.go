package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/therapy-rooms/internal/migrations"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// TestDataFactory создаёт тестовые данные напрямую в БД.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateRoom вставляет комнату и возвращает её id.
func (f *TestDataFactory) CreateRoom(t *testing.T, room models.Room) string {
	t.Helper()
	cfg, err := json.Marshal(room.Config)
	require.NoError(t, err)

	var id string
	err = f.storage.DB.QueryRow(`INSERT INTO rooms
		(slug, name_en, name_ar, description_en, description_ar, type, is_premium, is_active, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		room.Slug, room.NameEN, room.NameAR, room.DescriptionEN, room.DescriptionAR,
		string(room.Type), room.IsPremium, room.IsActive, cfg, room.CreatedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// NewTestProfile возвращает стандартные данные нового профиля.
func NewTestProfile() models.NewProfile {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.NewProfile{
		ID:                uuid.NewString(),
		Email:             "test@example.com",
		FullName:          "Test User",
		PreferredLanguage: models.LanguageEN,
		TrialStartedAt:    start,
		TrialEndsAt:       start.Add(72 * time.Hour),
	}
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
// Сид-комнаты удаляются, чтобы тесты работали с предсказуемым набором.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err, "failed to create storage")
	require.NoError(t, migrations.Run(storage.DB))

	_, err = storage.DB.Exec(`DELETE FROM rooms`)
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
