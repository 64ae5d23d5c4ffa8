// Package main Therapy Rooms local bridge
//
// @title           Therapy Rooms Bridge API
// @version         1.0
// @description     Локальный мост между оболочкой интерфейса и клиентским ядром: сессия, профиль, каталог комнат, навигация.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      127.0.0.1:8787
// @BasePath  /api/v1
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/therapy-rooms/internal/app/bridge"
	"github.com/magabrotheeeer/therapy-rooms/internal/config"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: sl.Level(cfg.LogLevel)}))

	logger.Info("starting therapy-rooms bridge", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bridge.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("therapy-rooms bridge stopped gracefully")
}
