package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Exchange — имя обменника.
type Exchange string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeStatus — topic exchange для снимков статусов.
const ExchangeStatus Exchange = "flowtrack.status"

// routingPrefix — префикс routing key снимка.
const routingPrefix = "status."

// RoutingKeyAll — шаблон привязки на снимки всех flows.
const RoutingKeyAll RoutingKey = routingPrefix + "*"

// RoutingKeyFor возвращает routing key снимков flow.
//
// Точки и пробелы заменяются на "_", чтобы имя flow
// оставалось одним словом topic-шаблона.
func RoutingKeyFor(flow string) RoutingKey {
	key := domain.FlowKey(flow)
	key = strings.NewReplacer(".", "_", " ", "_", "*", "_", "#", "_").Replace(key)
	return RoutingKey(routingPrefix + key)
}

// SetupTopology объявляет exchange снимков.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, declareExchange)
}

func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeStatus), // name
		"topic",                // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeStatus, err)
	}
	return nil
}

// declareTailQueue объявляет временную очередь подписчика
// и привязывает её к exchange снимков.
// Очередь эксклюзивная и удаляется при отключении.
func declareTailQueue(ch *amqp.Channel, binding RoutingKey) (string, error) {
	if err := declareExchange(ch); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(
		"",    // name (server-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare tail queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(binding), string(ExchangeStatus), false, nil); err != nil {
		return "", fmt.Errorf("bind tail queue %s to %s: %w", q.Name, ExchangeStatus, err)
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Flowtrack RabbitMQ Topology:

    flowtrack.status (topic)
    └── <exclusive auto-delete queue> [routing: status.<flow> | status.*]
            Consumer: flowtrack-cli status tail
  `
}
