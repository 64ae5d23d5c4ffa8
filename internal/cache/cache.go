// Package cache предоставляет кеши JSON-значений с ограниченным временем жизни:
// общий на redis и локальный LRU в памяти процесса.
package cache

import (
	"context"
	"time"
)

// Cache — хранилище JSON-значений.
type Cache interface {
	// Get декодирует значение в result. false без ошибки означает промах.
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	// InvalidatePrefix удаляет все ключи с префиксом.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

var (
	_ Cache = (*Redis)(nil)
	_ Cache = (*Memory)(nil)
)
