// Package events содержит шину событий аутентификации.
//
// Шлюз аутентификации публикует события о своих изменениях (источник local),
// ретранслятор AMQP — события, пришедшие извне (источник remote).
// Хранилище сессии подписывается на шину и отражает события в своём состоянии.
package events

import (
	"sync"
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// Kind — тип события аутентификации.
type Kind string

const (
	SignedIn         Kind = "SIGNED_IN"
	SignedOut        Kind = "SIGNED_OUT"
	TokenRefreshed   Kind = "TOKEN_REFRESHED"
	UserUpdated      Kind = "USER_UPDATED"
	PasswordRecovery Kind = "PASSWORD_RECOVERY"
)

// Source — откуда пришло событие.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Reason уточняет причину SIGNED_OUT.
type Reason string

// ReasonSessionExpired — сессию сбросил сам шлюз: провайдер отказал в обновлении
// токена или refresh-токена нет.
const ReasonSessionExpired Reason = "session_expired"

// AuthEvent — событие изменения состояния аутентификации.
type AuthEvent struct {
	Kind    Kind            `json:"kind"`
	Source  Source          `json:"source"`
	Reason  Reason          `json:"reason,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Session *models.Session `json:"session,omitempty"`
	At      time.Time       `json:"at"`
}

// Handler обрабатывает событие. Вызывается синхронно в горутине публикующего.
type Handler func(AuthEvent)

// Bus рассылает события всем подписчикам.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
}

// NewBus создаёт пустую шину.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish доставляет событие всем подписчикам. Нулевое время заменяется текущим.
func (b *Bus) Publish(ev AuthEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
