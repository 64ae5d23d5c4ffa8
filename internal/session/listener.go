package session

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/therapy-rooms/internal/events"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// HandleAuthEvent переносит события провайдера в состояние хранилища.
//
// Локальные SIGNED_IN и SIGNED_OUT пропускаются: их порождает действие самого
// хранилища, которое уже выполнило переход. Исключение: SIGNED_OUT с причиной
// session_expired, когда шлюз сам сбросил сессию. Локальный TOKEN_REFRESHED
// заменяет сессию. Удалённые события проходят те же переходы, что и действия.
func (s *Store) HandleAuthEvent(ctx context.Context, ev events.AuthEvent) {
	const op = "session.HandleAuthEvent"
	log := s.log.With(sl.Op(op), slog.String("kind", string(ev.Kind)), slog.String("source", string(ev.Source)))

	switch ev.Kind {
	case events.TokenRefreshed:
		if ev.Session == nil {
			return
		}
		if ev.Source == events.SourceRemote {
			s.gw.Restore(ev.Session)
		}
		s.replaceSession(ev.Session)

	case events.SignedIn:
		if ev.Source == events.SourceLocal || ev.Session == nil {
			return
		}
		s.gw.Restore(ev.Session)
		userID := ev.UserID
		if userID == "" {
			userID = ev.Session.UserID
		}
		user, err := s.loadOrCreateProfile(ctx, models.AuthUser{ID: userID, Email: ev.Session.Email})
		if err != nil {
			log.Warn("failed to load profile for remote sign in", sl.Err(err))
			return
		}
		s.commit(persistSave, authenticated(user, ev.Session))
		log.Info("remote sign in applied", slog.String("user_id", user.ID))

	case events.SignedOut:
		if ev.Source == events.SourceLocal && ev.Reason != events.ReasonSessionExpired {
			return
		}
		cur := s.state.Load()
		if cur.User == nil || (ev.UserID != "" && ev.UserID != cur.User.ID) {
			return
		}
		s.gw.Restore(nil)
		s.commit(persistClear, unauthenticated)
		log.Info("sign out applied", slog.String("reason", string(ev.Reason)))

	case events.UserUpdated:
		if ev.Source == events.SourceLocal {
			return
		}
		cur := s.state.Load()
		if !cur.Authenticated() {
			return
		}
		user, err := s.getProfile(ctx, cur.User.ID)
		if err != nil {
			log.Warn("failed to reload profile", sl.Err(err))
			return
		}
		s.commit(persistSave, func(c State) State {
			if c.Authenticated() && c.User.ID == user.ID {
				c.User = user
			}
			return c
		})

	default:
		log.Debug("auth event ignored")
	}
}

// Listen подписывает хранилище на шину событий. Возвращает функцию отписки.
func (s *Store) Listen(ctx context.Context, bus *events.Bus) func() {
	return bus.Subscribe(func(ev events.AuthEvent) {
		s.HandleAuthEvent(ctx, ev)
	})
}

func (s *Store) replaceSession(sess *models.Session) {
	if cur := s.state.Load(); !cur.Authenticated() {
		return
	}
	s.commit(persistSave, func(cur State) State {
		if !cur.Authenticated() || (sess.UserID != "" && sess.UserID != cur.User.ID) {
			return cur
		}
		cur.Session = sess
		return cur
	})
}
