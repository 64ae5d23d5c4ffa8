package response

import (
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

// SessionView — состояние сессии, которое видит оболочка интерфейса.
// Токены остаются внутри ядра.
type SessionView struct {
	Status           session.Status           `json:"status"`
	Initialized      bool                     `json:"initialized"`
	User             *models.User             `json:"user"`
	Subscription     models.SubscriptionState `json:"subscription"`
	SessionExpiresAt *time.Time               `json:"session_expires_at,omitempty"`
}

// NewSessionView строит представление из снимка хранилища.
func NewSessionView(st session.State) SessionView {
	v := SessionView{
		Status:       st.Status,
		Initialized:  st.Initialized,
		User:         st.User,
		Subscription: st.Subscription,
	}
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		exp := st.Session.ExpiresAt
		v.SessionExpiresAt = &exp
	}
	return v
}
