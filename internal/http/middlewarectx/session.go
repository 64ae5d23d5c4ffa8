package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

type contextKey string

// UserID — ключ контекста с идентификатором пользователя текущей сессии.
const UserID contextKey = "user_id"

// Snapshotter отдаёт текущее состояние хранилища сессии.
type Snapshotter interface {
	Snapshot() session.State
}

// RequireSession пропускает запрос только при наличии пользователя в сессии
// и кладёт его id в контекст. Иначе отвечает 401.
func RequireSession(log *slog.Logger, store Snapshotter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := store.Snapshot()
			if !st.Authenticated() {
				log.Info("request without session",
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(models.ErrNotAuthenticated.Error()))
				return
			}

			ctx := context.WithValue(r.Context(), UserID, st.User.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom возвращает id пользователя, положенный RequireSession.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}
