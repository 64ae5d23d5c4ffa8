package bridge

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/therapy-rooms/internal/app/core"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/handlers/account"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/handlers/auth"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/handlers/health"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/handlers/rooms"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/handlers/route"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/middlewarectx"
)

// RouteOptions — параметры маршрутизатора, не зависящие от ядра.
type RouteOptions struct {
	RateLimit float64
	RateBurst int
	PageSize  int
}

// NewRouter регистрирует все маршруты моста.
func NewRouter(c *core.Core, logger *slog.Logger, opts RouteOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		c.Metrics.Middleware,
	)

	authHandler := auth.New(logger, c.Session)
	accountHandler := account.New(logger, c.Session)
	roomsHandler := rooms.New(logger, c.Catalog, opts.PageSize)

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(middlewarectx.RateLimitMiddleware(logger, rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)))
		}

		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)
		r.Post("/auth/signout", authHandler.SignOut)
		r.Post("/auth/reset", authHandler.ResetPassword)
		r.Get("/session", accountHandler.Session)

		// Группа, требующая активной сессии
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireSession(logger, c.Session))
			r.Put("/auth/password", authHandler.UpdatePassword)
			r.Post("/session/refresh", accountHandler.Refresh)
			r.Patch("/profile", accountHandler.UpdateProfile)
			r.Post("/onboarding/complete", accountHandler.CompleteOnboarding)
		})

		r.Get("/rooms", roomsHandler.List)
		r.Get("/rooms/{slug}", roomsHandler.Get)

		r.Get("/route", route.New(logger, c.Guard).ServeHTTP)
	})

	checks := make(map[string]health.Check, len(c.Checks()))
	for name, check := range c.Checks() {
		checks[name] = health.Check(check)
	}
	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", c.Metrics.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	return r
}
