package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// GetProfile возвращает профиль пользователя.
// Отсутствие строки даёт ошибку, удовлетворяющую errors.Is(err, models.ErrNotFound).
func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.rest.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+userID)

	var user models.User
	err := s.do(ctx, request{method: http.MethodGet, table: profilesTable, query: q, accept: singleObject}, &user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// UpdateProfile применяет патч и возвращает строку в том виде, в каком её сохранил сервер.
func (s *Storage) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	const op = "storage.rest.UpdateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	body := struct {
		models.ProfilePatch
		UpdatedAt time.Time `json:"updated_at"`
	}{ProfilePatch: patch, UpdatedAt: time.Now().UTC()}

	q := url.Values{}
	q.Set("id", "eq."+userID)
	q.Set("select", "*")

	var user models.User
	err := s.do(ctx, request{
		method: http.MethodPatch,
		table:  profilesTable,
		query:  q,
		body:   body,
		accept: singleObject,
		prefer: "return=representation",
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// CreateProfile вставляет профиль, если его ещё нет. Существующая строка не меняется.
func (s *Storage) CreateProfile(ctx context.Context, p models.NewProfile) error {
	const op = "storage.rest.CreateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := map[string]any{
		"id":                   p.ID,
		"email":                p.Email,
		"full_name":            p.FullName,
		"preferred_language":   p.PreferredLanguage,
		"subscription_status":  models.StatusTrial,
		"onboarding_completed": false,
		"trial_started_at":     p.TrialStartedAt.UTC(),
		"trial_ends_at":        p.TrialEndsAt.UTC(),
	}
	q := url.Values{}
	q.Set("on_conflict", "id")

	err := s.do(ctx, request{
		method: http.MethodPost,
		table:  profilesTable,
		query:  q,
		body:   row,
		prefer: "resolution=ignore-duplicates,return=minimal",
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
