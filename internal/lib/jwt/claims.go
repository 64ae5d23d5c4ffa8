// Package jwt извлекает claims из access-токенов провайдера аутентификации.
//
// Подпись токена проверяет провайдер; клиенту нужны только идентификатор
// пользователя, почта и время истечения, поэтому токен разбирается без проверки подписи.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims описывает поля access-токена, которые использует клиент.
type Claims struct {
	Email                string `json:"email"` // Почта пользователя
	Role                 string `json:"role"`  // Роль базы данных (authenticated, anon)
	jwt.RegisteredClaims        // sub, exp, iat и пр.
}

// UserID возвращает идентификатор пользователя из claim sub.
func (c *Claims) UserID() string {
	return c.Subject
}

// ExpiresAt возвращает время истечения токена или нулевое время, если exp отсутствует.
func (c *Claims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// ParseUnverified разбирает токен без проверки подписи.
func ParseUnverified(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseUnverified"
	if tokenStr == "" {
		return nil, fmt.Errorf("%s: empty token", op)
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("token has no subject"))
	}
	return claims, nil
}
