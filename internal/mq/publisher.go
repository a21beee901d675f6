package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// MessageTypeStatusUpdated — новый снимок статусов flow.
const MessageTypeStatusUpdated MessageType = "status.updated"

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusMessage оборачивает снимок в конверт.
func NewStatusMessage(update domain.StatusUpdate) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      MessageTypeStatusUpdated,
		Payload:   update,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher публикует снимки статусов в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
//
// Снимки не переживают рестарт брокера: следующий тик
// всё равно пришлёт свежий.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishStatus публикует снимок статусов flow.
func (p *Publisher) PublishStatus(ctx context.Context, update domain.StatusUpdate) error {
	return p.Publish(ctx, ExchangeStatus, RoutingKeyFor(update.FlowName), NewStatusMessage(update))
}
