// Package core собирает клиентское ядро из конфигурации: шлюз аутентификации,
// хранилище сессии, каталог комнат, охранник маршрутов и необязательные
// redis, PostgreSQL и ретранслятор событий. Используется мостом и CLI.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/therapy-rooms/internal/cache"
	"github.com/magabrotheeeer/therapy-rooms/internal/config"
	"github.com/magabrotheeeer/therapy-rooms/internal/events"
	"github.com/magabrotheeeer/therapy-rooms/internal/gateway"
	"github.com/magabrotheeeer/therapy-rooms/internal/guard"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/retry"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/metrics"
	"github.com/magabrotheeeer/therapy-rooms/internal/migrations"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/rabbitmq"
	"github.com/magabrotheeeer/therapy-rooms/internal/securestore"
	"github.com/magabrotheeeer/therapy-rooms/internal/services/catalog"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
	"github.com/magabrotheeeer/therapy-rooms/internal/storage/postgres"
	"github.com/magabrotheeeer/therapy-rooms/internal/storage/rest"
)

// Backend — хранилище профилей и комнат.
type Backend interface {
	session.Profiles
	catalog.RoomSource
}

// Check проверяет доступность зависимости.
type Check func(ctx context.Context) error

// Core — собранное ядро.
type Core struct {
	Log     *slog.Logger
	Bus     *events.Bus
	Gateway *gateway.Client
	Session *session.Store
	Catalog *catalog.Service
	Guard   *guard.Watcher
	Metrics *metrics.Metrics

	checks  map[string]Check
	closers []func() error
	stops   []func()
}

// Option настраивает сборку.
type Option func(*options)

type options struct {
	navigator guard.Navigator
	relay     bool
	backend   Backend
	cache     cache.Cache
}

// WithNavigator задаёт получателя решений охранника. По умолчанию решения пишутся в лог.
func WithNavigator(nav guard.Navigator) Option {
	return func(o *options) { o.navigator = nav }
}

// WithoutRelay отключает ретрансляцию событий через AMQP даже при заданном URL.
func WithoutRelay() Option {
	return func(o *options) { o.relay = false }
}

// WithBackend подменяет хранилище профилей и комнат.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithCache подменяет кеш каталога.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// Build собирает ядро. Ошибки подключения к обязательным зависимостям
// возвращаются, необязательный ретранслятор при сбое отключается с предупреждением.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*Core, error) {
	const op = "core.Build"

	o := options{relay: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Core{
		Log:     log,
		Bus:     events.NewBus(),
		Metrics: metrics.New(),
		checks:  make(map[string]Check),
	}

	c.Gateway = gateway.New(gateway.Config{
		BaseURL:    cfg.Supabase.URL,
		APIKey:     cfg.Supabase.AnonKey,
		Timeout:    cfg.Supabase.Timeout,
		RedirectTo: cfg.Supabase.RedirectTo,
	}, c.Bus, log)

	persister, err := newPersister(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	backend := o.backend
	if backend == nil {
		backend, err = c.newBackend(cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	store := o.cache
	if store == nil {
		store, err = c.newCache(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	read := retry.Policy{
		Attempts: cfg.Catalog.ReadAttempts,
		Initial:  cfg.Catalog.BackoffInitial,
		Max:      cfg.Catalog.BackoffMax,
	}
	write := retry.Policy{
		Attempts: cfg.Catalog.WriteAttempts,
		Initial:  cfg.Catalog.BackoffInitial,
		Max:      cfg.Catalog.BackoffInitial,
	}

	catalogOpts := catalog.DefaultOptions()
	catalogOpts.StaleTime = cfg.Catalog.StaleTime
	catalogOpts.CacheTTL = cfg.Catalog.CacheTTL
	catalogOpts.Retry = read
	catalogOpts.Metrics = c.Metrics
	c.Catalog = catalog.New(backend, store, log.With(slog.String("component", "catalog")), catalogOpts)

	c.Session = session.New(c.Gateway, backend, persister, log.With(slog.String("component", "session")),
		session.WithRetry(read, write))

	nav := o.navigator
	if nav == nil {
		nav = logNavigator{log: log}
	}
	c.Guard = guard.NewWatcher(nav, "", log.With(slog.String("component", "guard")))

	c.stops = append(c.stops,
		c.Session.Listen(ctx, c.Bus),
		c.Session.Subscribe(c.Guard.OnState),
		c.Session.Subscribe(c.Metrics.ObserveSession),
		c.Bus.Subscribe(c.Metrics.ObserveAuthEvent),
	)

	if o.relay && cfg.RabbitMQ.URL != "" {
		if err := c.startRelay(ctx, cfg.RabbitMQ); err != nil {
			log.Warn("auth event relay disabled", sl.Op(op), sl.Err(err))
		}
	}

	return c, nil
}

// Start восстанавливает сессию и прогревает каталог параллельно.
// Ошибки прогрева не мешают запуску.
func (c *Core) Start(ctx context.Context) {
	const op = "core.Start"
	var g errgroup.Group
	g.Go(func() error {
		c.Session.Initialize(ctx)
		return nil
	})
	g.Go(func() error {
		if _, err := c.Catalog.ListRooms(ctx, models.RoomFilter{}); err != nil {
			c.Log.Warn("catalog prefetch failed", sl.Op(op), sl.Err(err))
		}
		return nil
	})
	_ = g.Wait()
}

// Checks возвращает проверки готовности подключённых зависимостей.
func (c *Core) Checks() map[string]Check {
	return c.checks
}

// Close отписывает наблюдателей, дожидается фоновых обновлений каталога
// и закрывает соединения.
func (c *Core) Close() error {
	for i := len(c.stops) - 1; i >= 0; i-- {
		c.stops[i]()
	}
	c.stops = nil
	if c.Catalog != nil {
		c.Catalog.Wait()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Core) newBackend(cfg *config.Config) (Backend, error) {
	if cfg.StorageConnectionString == "" {
		return rest.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.Timeout, c.accessToken), nil
	}
	db, err := postgres.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, db.Close)
	if err := migrations.Run(db.DB); err != nil {
		return nil, err
	}
	c.checks["postgres"] = db.CheckDatabaseReady
	return db, nil
}

func (c *Core) newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisConnection.AddressRedis == "" {
		return cache.NewMemory(cfg.Catalog.CacheSize, cfg.Catalog.CacheTTL), nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, r.Close)
	c.checks["redis"] = r.Ping
	return r, nil
}

func (c *Core) startRelay(ctx context.Context, cfg config.RabbitMQ) error {
	conn, err := rabbitmq.Connect(cfg.URL, 5, 2*time.Second)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, conn.Close)

	topo := rabbitmq.Topology{
		Exchange:  cfg.Exchange,
		DeviceKey: cfg.DeviceKey,
		RemoteKey: cfg.RemoteKey,
		Queue:     cfg.Queue,
	}
	ch, queue, err := rabbitmq.SetupChannel(conn, topo)
	if err != nil {
		return err
	}

	relay := rabbitmq.NewRelay(ch, topo, c.Bus, c.Log.With(slog.String("component", "relay")))
	stop, err := relay.Start(ctx, ch, queue)
	if err != nil {
		return err
	}
	c.stops = append(c.stops, stop)
	c.checks["rabbitmq"] = func(context.Context) error {
		if conn.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}
	return nil
}

// accessToken отдаёт табличному API токен через CurrentSession, чтобы истёкший
// токен обновлялся, а отказ в обновлении завершал сессию.
func (c *Core) accessToken(ctx context.Context) (string, error) {
	res := c.Gateway.CurrentSession(ctx)
	if !res.Success {
		return "", res.Err()
	}
	if res.Data == nil {
		return "", nil
	}
	return res.Data.AccessToken, nil
}

func newPersister(cfg config.Storage) (session.Persister, error) {
	dir := cfg.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "therapy-rooms")
	}

	var keys securestore.KeyStore
	if cfg.Encrypt {
		ks, err := securestore.NewFileKeyStore(filepath.Join(dir, "keys"))
		if err != nil {
			return nil, err
		}
		keys = ks
	}
	fs, err := securestore.NewFileStore(filepath.Join(dir, "data"), keys)
	if err != nil {
		return nil, err
	}
	return session.NewKVPersister(fs), nil
}

type logNavigator struct {
	log *slog.Logger
}

func (n logNavigator) Replace(route string) {
	n.log.Info("navigate", slog.String("route", route))
}
