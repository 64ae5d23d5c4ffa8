package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound — запись отсутствует (например, профиль ещё не создан триггером).
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized — провайдер отклонил учётные данные или токен.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation — локальная ошибка валидации, до сети не доходит.
	ErrValidation = errors.New("validation failed")
	// ErrTransient — сетевая или временная ошибка, запрос можно повторить.
	ErrTransient = errors.New("transient failure")
	// ErrNotAuthenticated — операция требует аутентифицированной сессии.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmailConfirmationPending — регистрация прошла, но сессия появится после подтверждения почты.
	ErrEmailConfirmationPending = errors.New("email confirmation pending")
	// ErrInvalidRoom — конфигурация комнаты не соответствует её типу.
	ErrInvalidRoom = errors.New("invalid room config")
)

// Коды ошибок провайдера, которые означают отказ в доступе.
var unauthorizedCodes = map[string]struct{}{
	"invalid_credentials":     {},
	"invalid_grant":           {},
	"bad_jwt":                 {},
	"session_not_found":       {},
	"user_not_found":          {},
	"refresh_token_not_found": {},
	"PGRST301":                {},
	"42501":                   {},
}

// NoRowsCode — код хранилища, которым отличается отсутствие записи от сбоя.
const NoRowsCode = "PGRST116"

// ProviderError — нормализованная ошибка провайдера аутентификации или хранилища.
type ProviderError struct {
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Error реализует интерфейс error.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Is сопоставляет ошибку провайдера с сентинелами таксономии.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == NoRowsCode || e.Status == http.StatusNotFound || e.Status == http.StatusNotAcceptable
	case ErrUnauthorized:
		if _, ok := unauthorizedCodes[e.Code]; ok {
			return true
		}
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrTransient:
		return e.Status == 0 || e.Status == http.StatusRequestTimeout ||
			e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
	}
	return false
}

// AsProviderError приводит произвольную ошибку к ProviderError.
// Ошибки, не пришедшие от провайдера, считаются транспортными (Status == 0).
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Message: err.Error()}
}
