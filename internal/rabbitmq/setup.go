package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Topology описывает обменник и ключи маршрутизации ретранслятора.
type Topology struct {
	Exchange  string
	DeviceKey string
	RemoteKey string
	// Queue — имя очереди удалённых событий. Пустое имя — временная очередь брокера.
	Queue string
}

// SetupChannel объявляет durable direct-обменник и очередь удалённых событий,
// привязанную к RemoteKey. Возвращает канал и фактическое имя очереди.
func SetupChannel(conn *amqp.Connection, t Topology) (*amqp.Channel, string, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		t.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	durable, exclusive := true, false
	if t.Queue == "" {
		durable, exclusive = false, true
	}
	q, err := ch.QueueDeclare(
		t.Queue,
		durable,
		!durable,
		exclusive,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: failed to declare queue %s: %w", op, t.Queue, err)
	}

	if err := ch.QueueBind(q.Name, t.RemoteKey, t.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.Name, t.RemoteKey, err)
	}
	return ch, q.Name, nil
}
