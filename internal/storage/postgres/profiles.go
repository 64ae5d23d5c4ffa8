package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

const profileColumns = `id, email, full_name, onboarding_completed, preferred_language, subscription_status,
	trial_started_at, trial_ends_at, subscription_started_at, subscription_ends_at, created_at, updated_at`

// GetProfile возвращает профиль пользователя или ошибку models.ErrNotFound.
func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.postgres.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	user, err := scanProfile(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateProfile применяет патч и возвращает обновлённую строку.
func (s *Storage) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	const op = "storage.postgres.UpdateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var fullName, language sql.NullString
	var onboarded sql.NullBool
	if patch.FullName != nil {
		fullName = sql.NullString{String: *patch.FullName, Valid: true}
	}
	if patch.PreferredLanguage != nil {
		language = sql.NullString{String: string(*patch.PreferredLanguage), Valid: true}
	}
	if patch.OnboardingCompleted != nil {
		onboarded = sql.NullBool{Bool: *patch.OnboardingCompleted, Valid: true}
	}

	query := `UPDATE user_profiles
			  SET full_name = COALESCE($2, full_name),
			      preferred_language = COALESCE($3, preferred_language),
			      onboarding_completed = COALESCE($4, onboarding_completed),
			      updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + profileColumns
	user, err := scanProfile(s.DB.QueryRowContext(ctx, query, userID, fullName, language, onboarded))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// CreateProfile вставляет профиль, если строки с таким id ещё нет.
func (s *Storage) CreateProfile(ctx context.Context, p models.NewProfile) error {
	const op = "storage.postgres.CreateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := uuid.Parse(p.ID); err != nil {
		return fmt.Errorf("%s: %w: invalid user id", op, models.ErrValidation)
	}

	language := p.PreferredLanguage
	if !language.Valid() {
		language = models.LanguageEN
	}
	query := `INSERT INTO user_profiles (id, email, full_name, preferred_language, subscription_status,
			      trial_started_at, trial_ends_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (id) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query,
		p.ID, p.Email, p.FullName, string(language), string(models.StatusTrial),
		p.TrialStartedAt.UTC(), p.TrialEndsAt.UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.User, error) {
	var (
		u                                             models.User
		language, status                              string
		trialStarted, trialEnds, subStarted, subEnded sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.OnboardingCompleted, &language, &status,
		&trialStarted, &trialEnds, &subStarted, &subEnded, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.PreferredLanguage = models.Language(language)
	u.SubscriptionStatus = models.SubscriptionStatus(status)
	u.TrialStartedAt = nullTime(trialStarted)
	u.TrialEndsAt = nullTime(trialEnds)
	u.SubscriptionStartedAt = nullTime(subStarted)
	u.SubscriptionEndsAt = nullTime(subEnded)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
