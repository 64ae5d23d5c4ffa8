// Package session — хранилище состояния аутентификации клиента.
//
// Store — единственный источник истины о пользователе, сессии и подписке.
// Чтение берёт атомарный снимок, фиксация нового состояния сериализуется
// мьютексом, который удерживается только на время присваивания и записи
// проекции на диск. Сетевые вызовы выполняются вне блокировки.
package session

import (
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// Status — состояние автомата хранилища.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// State — снимок хранилища. Значения внутри снимка не изменяются после фиксации.
type State struct {
	Status       Status                   `json:"status"`
	Initialized  bool                     `json:"initialized"`
	User         *models.User             `json:"user"`
	Session      *models.Session          `json:"session"`
	Subscription models.SubscriptionState `json:"subscription"`
}

// Authenticated сообщает, что в состоянии есть пользователь с сессией.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Session != nil {
		sess := *s.Session
		s.Session = &sess
	}
	return s
}
