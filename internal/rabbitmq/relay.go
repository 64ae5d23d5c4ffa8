package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/therapy-rooms/internal/events"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// outgoing — локальное событие в том виде, в котором оно уходит в брокер.
// Токены сессии наружу не передаются.
type outgoing struct {
	Kind   events.Kind `json:"kind"`
	UserID string      `json:"user_id,omitempty"`
	At     time.Time   `json:"at"`
}

// incoming — событие, опубликованное другим участником (например, бэкендом
// при отзыве сессии).
type incoming struct {
	Kind    events.Kind     `json:"kind"`
	UserID  string          `json:"user_id,omitempty"`
	Session *models.Session `json:"session,omitempty"`
	At      time.Time       `json:"at"`
}

var knownKinds = map[events.Kind]struct{}{
	events.SignedIn:         {},
	events.SignedOut:        {},
	events.TokenRefreshed:   {},
	events.UserUpdated:      {},
	events.PasswordRecovery: {},
}

// Relay связывает шину событий с брокером.
type Relay struct {
	pub  Publisher
	topo Topology
	bus  *events.Bus
	log  *slog.Logger
}

// NewRelay создает ретранслятор.
func NewRelay(pub Publisher, topo Topology, bus *events.Bus, log *slog.Logger) *Relay {
	return &Relay{pub: pub, topo: topo, bus: bus, log: log}
}

// Forward публикует локальное событие с ключом устройства. Удалённые события
// не пересылаются обратно.
func (r *Relay) Forward(ev events.AuthEvent) {
	const op = "rabbitmq.Relay.Forward"
	if ev.Source != events.SourceLocal {
		return
	}
	msg := outgoing{Kind: ev.Kind, UserID: ev.UserID, At: ev.At}
	if err := PublishMessage(r.pub, r.topo.Exchange, r.topo.DeviceKey, msg); err != nil {
		r.log.Warn("failed to relay auth event", sl.Op(op), slog.String("kind", string(ev.Kind)), sl.Err(err))
	}
}

// Handle разбирает удалённое событие и передаёт его в шину.
// Нераспознанные сообщения отбрасываются, чтобы не возвращаться в очередь бесконечно.
func (r *Relay) Handle(body []byte) error {
	const op = "rabbitmq.Relay.Handle"
	var in incoming
	if err := json.Unmarshal(body, &in); err != nil {
		r.log.Warn("dropping malformed auth event", sl.Op(op), sl.Err(err))
		return nil
	}
	if _, ok := knownKinds[in.Kind]; !ok {
		r.log.Warn("dropping unknown auth event", sl.Op(op), slog.String("kind", string(in.Kind)))
		return nil
	}

	r.bus.Publish(events.AuthEvent{
		Kind:    in.Kind,
		Source:  events.SourceRemote,
		UserID:  in.UserID,
		Session: in.Session,
		At:      in.At,
	})
	r.log.Info("remote auth event received", sl.Op(op), slog.String("kind", string(in.Kind)))
	return nil
}

// Start подписывает ретранслятор на шину и запускает потребителя очереди.
// Возвращает функцию отписки от шины.
func (r *Relay) Start(ctx context.Context, ch *amqp.Channel, queue string) (func(), error) {
	const op = "rabbitmq.Relay.Start"
	if err := ConsumerMessage(ctx, ch, queue, r.Handle, r.log); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.bus.Subscribe(r.Forward), nil
}
