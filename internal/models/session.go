package models

import "time"

// Session — токены аутентифицированного пользователя.
// Принадлежит только хранилищу сессии и сохраняется в зашифрованном виде.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// Expired сообщает, истёк ли access-токен к моменту now с учётом запаса skew.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// AuthUser — учётная запись на стороне провайдера аутентификации.
type AuthUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// AuthPayload — результат регистрации или входа.
// Session равна nil, если провайдер требует подтверждения почты.
type AuthPayload struct {
	User    AuthUser `json:"user"`
	Session *Session `json:"session,omitempty"`
}
