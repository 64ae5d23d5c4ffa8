// Package retry реализует политику повторов с ограниченной экспоненциальной задержкой.
// Повторяются только временные сбои: чтения несколько раз, записи один раз.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// Policy описывает число попыток и границы задержки.
type Policy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// Read — политика по умолчанию для чтений: 3 попытки, 1s → 30s.
var Read = Policy{Attempts: 3, Initial: time.Second, Max: 30 * time.Second}

// Write — политика по умолчанию для записей: одна повторная попытка.
var Write = Policy{Attempts: 2, Initial: time.Second, Max: time.Second}

// Transient сообщает, что ошибку имеет смысл повторить: временный ответ
// провайдера, сетевой сбой или обрыв соединения с базой до отправки запроса.
// Всё остальное, включая 4xx провайдера и ошибки декодирования, постоянно.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, models.ErrTransient) || errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do выполняет op по политике p. Возвращает последнюю ошибку op.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.MaxInterval = p.Max
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err != nil && !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
