// Package models содержит доменные структуры клиентского ядра: профиль пользователя,
// сессию, комнаты и производное состояние подписки.
package models

import "time"

// Language — предпочитаемый язык интерфейса.
type Language string

const (
	LanguageEN Language = "en"
	LanguageAR Language = "ar"
)

// Valid сообщает, поддерживается ли язык.
func (l Language) Valid() bool {
	return l == LanguageEN || l == LanguageAR
}

// SubscriptionStatus — статус подписки, хранящийся в профиле.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// User — строка таблицы user_profiles.
// Создаётся при регистрации, изменяется вызовами обновления профиля
// и читается при каждом запуске приложения.
type User struct {
	ID                    string             `json:"id"`
	Email                 string             `json:"email"`
	FullName              string             `json:"full_name"`
	OnboardingCompleted   bool               `json:"onboarding_completed"`
	PreferredLanguage     Language           `json:"preferred_language"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	TrialStartedAt        *time.Time         `json:"trial_started_at"`
	TrialEndsAt           *time.Time         `json:"trial_ends_at"`
	SubscriptionStartedAt *time.Time         `json:"subscription_started_at"`
	SubscriptionEndsAt    *time.Time         `json:"subscription_ends_at"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// ProfilePatch описывает частичное обновление профиля.
// nil-поля не изменяются.
type ProfilePatch struct {
	FullName            *string   `json:"full_name,omitempty"`
	PreferredLanguage   *Language `json:"preferred_language,omitempty"`
	OnboardingCompleted *bool     `json:"onboarding_completed,omitempty"`
}

// Empty сообщает, что патч ничего не меняет.
func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.PreferredLanguage == nil && p.OnboardingCompleted == nil
}

// NewProfile описывает строку профиля, которую клиент создаёт сам сразу после регистрации.
type NewProfile struct {
	ID                string
	Email             string
	FullName          string
	PreferredLanguage Language
	TrialStartedAt    time.Time
	TrialEndsAt       time.Time
}
