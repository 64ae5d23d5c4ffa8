// Package bridge поднимает локальный HTTP-мост, через который оболочка
// интерфейса обращается к клиентскому ядру.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/app/core"
	"github.com/magabrotheeeer/therapy-rooms/internal/config"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
)

// App — ядро и HTTP-сервер моста.
type App struct {
	server *http.Server
	logger *slog.Logger
	core   *core.Core
}

// New собирает ядро и маршрутизатор.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...core.Option) (*App, error) {
	c, err := core.Build(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	router := NewRouter(c, logger, RouteOptions{
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		PageSize:  cfg.Catalog.PageSize,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		core:   c,
	}, nil
}

// Run запускает ядро и сервер; при отмене ctx останавливает сервер и закрывает ядро.
func (a *App) Run(ctx context.Context) error {
	a.core.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP bridge starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP bridge gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.core.Close(); err != nil {
		a.logger.Warn("failed to close core", sl.Err(err))
	}
}
