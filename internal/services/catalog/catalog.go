// Package catalog содержит сервис каталога комнат: чтение из бэкенда,
// кеширование со stale-while-revalidate и постраничную выдачу.
package catalog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/therapy-rooms/internal/cache"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/retry"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// RoomSource определяет методы чтения комнат из бэкенда.
type RoomSource interface {
	// ListRooms возвращает активные комнаты по фильтру, новые первыми. limit == 0 — без ограничения.
	ListRooms(ctx context.Context, filter models.RoomFilter, limit, offset int) ([]models.Room, error)
	// GetRoomBySlug возвращает активную комнату или ошибку models.ErrNotFound.
	GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error)
}

// Metrics принимает наблюдения о работе каталога.
type Metrics interface {
	CacheLookup(result string)
	Fetch(op string, d time.Duration, err error)
}

// Результаты обращения к кешу.
const (
	CacheFresh = "fresh"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

const keyPrefix = "catalog:"

// Options — политика кеширования и повторов.
type Options struct {
	StaleTime time.Duration
	CacheTTL  time.Duration
	Retry     retry.Policy
	Now       func() time.Time
	Metrics   Metrics
}

// DefaultOptions — 5 минут свежести, 30 минут жизни записи, повторы чтения по умолчанию.
func DefaultOptions() Options {
	return Options{
		StaleTime: 5 * time.Minute,
		CacheTTL:  30 * time.Minute,
		Retry:     retry.Read,
		Now:       time.Now,
	}
}

// Service реализует каталог комнат поверх RoomSource и кеша.
type Service struct {
	source  RoomSource
	cache   cache.Cache
	log     *slog.Logger
	opts    Options
	metrics Metrics

	group singleflight.Group
	wg    sync.WaitGroup
}

// New создает сервис каталога. Нулевые поля opts заменяются значениями по умолчанию.
func New(source RoomSource, c cache.Cache, log *slog.Logger, opts Options) *Service {
	def := DefaultOptions()
	if opts.StaleTime <= 0 {
		opts.StaleTime = def.StaleTime
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = def.Retry
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Service{source: source, cache: c, log: log, opts: opts, metrics: m}
}

// entry — запись кеша с моментом получения данных.
type entry[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ListRooms возвращает все активные комнаты по фильтру. При отсутствии совпадений
// возвращается пустой непустой срез.
func (s *Service) ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	const op = "catalog.ListRooms"
	key := keyPrefix + "list:" + filter.Key()

	rooms, err := cached(ctx, s, key, func(ctx context.Context) ([]models.Room, error) {
		rooms, err := s.source.ListRooms(ctx, filter, 0, 0)
		if err != nil {
			return nil, err
		}
		return s.normalize(rooms, filter), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return rooms, nil
}

// page — кешируемая страница: NextOffset < 0 означает последнюю страницу.
type page struct {
	Items      []models.Room `json:"items"`
	NextOffset int           `json:"next_offset"`
}

// ListRoomsPage возвращает страницу каталога. pageToken пуст для первой страницы;
// страница короче pageSize не имеет следующего токена.
func (s *Service) ListRoomsPage(ctx context.Context, filter models.RoomFilter, pageSize int, pageToken string) (models.RoomPage, error) {
	const op = "catalog.ListRoomsPage"
	if pageSize <= 0 {
		return models.RoomPage{}, fmt.Errorf("%s: %w: page size must be positive", op, models.ErrValidation)
	}
	offset, err := DecodePageToken(pageToken)
	if err != nil {
		return models.RoomPage{}, fmt.Errorf("%s: %w", op, err)
	}

	key := fmt.Sprintf("%spage:%s|o=%d|n=%d", keyPrefix, filter.Key(), offset, pageSize)
	p, err := cached(ctx, s, key, func(ctx context.Context) (page, error) {
		rooms, err := s.source.ListRooms(ctx, filter, pageSize, offset)
		if err != nil {
			return page{}, err
		}
		next := -1
		if len(rooms) >= pageSize {
			next = offset + pageSize
		}
		return page{Items: s.normalize(rooms, filter), NextOffset: next}, nil
	})
	if err != nil {
		return models.RoomPage{}, fmt.Errorf("%s: %w", op, err)
	}

	result := models.RoomPage{Items: p.Items}
	if result.Items == nil {
		result.Items = []models.Room{}
	}
	if p.NextOffset >= 0 {
		result.NextPageToken = EncodePageToken(p.NextOffset)
	}
	return result, nil
}

// GetRoom возвращает активную комнату по slug. Отсутствующая или неактивная
// комната возвращается как nil без ошибки.
func (s *Service) GetRoom(ctx context.Context, slug string) (*models.Room, error) {
	const op = "catalog.GetRoom"
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}

	room, err := cached(ctx, s, keyPrefix+"room:"+slug, func(ctx context.Context) (*models.Room, error) {
		room, err := s.source.GetRoomBySlug(ctx, slug)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if room == nil || !room.IsActive {
			return nil, nil
		}
		if !room.HasValidConfig() {
			s.log.Warn("hiding room with invalid config", sl.Op(op), slog.String("slug", room.Slug))
			return nil, nil
		}
		return room, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return room, nil
}

// Invalidate удаляет все закешированные выборки каталога.
func (s *Service) Invalidate(ctx context.Context) error {
	const op = "catalog.Invalidate"
	if err := s.cache.InvalidatePrefix(ctx, keyPrefix); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Wait дожидается завершения фоновых обновлений.
func (s *Service) Wait() {
	s.wg.Wait()
}

// cached возвращает значение из кеша. Свежая запись отдаётся как есть, устаревшая
// отдаётся сразу с запуском фонового обновления, промах загружается синхронно.
// Загрузки одного ключа объединяются.
func cached[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	var e entry[T]
	found, err := s.cache.Get(ctx, key, &e)
	if err != nil {
		s.log.Warn("catalog cache read failed", slog.String("key", key), sl.Err(err))
		found = false
	}

	if found {
		if s.opts.Now().Sub(e.FetchedAt) < s.opts.StaleTime {
			s.metrics.CacheLookup(CacheFresh)
			return e.Value, nil
		}
		s.metrics.CacheLookup(CacheStale)
		s.revalidate(ctx, key, func(ctx context.Context) (any, error) {
			return load(ctx, s, key, fetch)
		})
		return e.Value, nil
	}

	s.metrics.CacheLookup(CacheMiss)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return load(ctx, s, key, fetch)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// load читает данные из бэкенда с повторами и сохраняет их в кеш.
func load[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	var v T
	start := time.Now()
	err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
		var err error
		v, err = fetch(ctx)
		return err
	})
	s.metrics.Fetch(opName(key), time.Since(start), err)
	if err != nil {
		return v, err
	}

	e := entry[T]{Value: v, FetchedAt: s.opts.Now()}
	if err := s.cache.Set(ctx, key, e, s.opts.CacheTTL); err != nil {
		s.log.Warn("failed to cache catalog entry", slog.String("key", key), sl.Err(err))
	}
	return v, nil
}

// revalidate запускает фоновое обновление ключа. Обновление не отменяется
// вместе с запросом, который его вызвал.
func (s *Service) revalidate(ctx context.Context, key string, fn func(context.Context) (any, error)) {
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err, _ := s.group.Do(key, func() (any, error) {
			return fn(bg)
		})
		if err != nil {
			s.log.Warn("background catalog refresh failed", slog.String("key", key), sl.Err(err))
		}
	}()
}

// normalize повторно применяет инварианты каталога к ответу бэкенда:
// только активные комнаты, соответствующие фильтру, новые первыми.
// Комнаты с неверной конфигурацией отбрасываются.
func (s *Service) normalize(rooms []models.Room, filter models.RoomFilter) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if !filter.Matches(r) {
			continue
		}
		if !r.HasValidConfig() {
			s.log.Warn("dropping room with invalid config", slog.String("slug", r.Slug), slog.String("type", string(r.Type)))
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b models.Room) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func opName(key string) string {
	rest := strings.TrimPrefix(key, keyPrefix)
	if i := strings.IndexByte(rest, ':'); i > 0 {
		return rest[:i]
	}
	return rest
}

const tokenPrefix = "offset:"

// EncodePageToken кодирует смещение в непрозрачный токен страницы.
func EncodePageToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(tokenPrefix + strconv.Itoa(offset)))
}

// DecodePageToken возвращает смещение из токена. Пустой токен — первая страница.
func DecodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed page token", models.ErrValidation)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(raw), tokenPrefix))
	if err != nil || !strings.HasPrefix(string(raw), tokenPrefix) || n < 0 {
		return 0, fmt.Errorf("%w: malformed page token", models.ErrValidation)
	}
	return n, nil
}

type nopMetrics struct{}

func (nopMetrics) CacheLookup(string) {}
func (nopMetrics) Fetch(string, time.Duration, error) {}
