package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// StatusHandler — обработчик снимка статусов.
type StatusHandler func(ctx context.Context, update domain.StatusUpdate) error

// TailConsumer читает снимки статусов из временной очереди.
//
// Очередь создаётся заново при каждом (пере)подключении, поэтому
// снимки, опубликованные во время разрыва, теряются.
type TailConsumer struct {
	conn    *Connection
	logger  *slog.Logger
	binding RoutingKey
	handler StatusHandler

	cancelFunc context.CancelFunc
}

// NewTailConsumer создаёт consumer снимков flow.
// Пустое имя flow — снимки всех flows.
func NewTailConsumer(conn *Connection, logger *slog.Logger, flow string, handler StatusHandler) *TailConsumer {
	if logger == nil {
		logger = slog.Default()
	}

	binding := RoutingKeyAll
	if flow != "" {
		binding = RoutingKeyFor(flow)
	}

	return &TailConsumer{
		conn:    conn,
		logger:  logger,
		binding: binding,
		handler: handler,
	}
}

// Start потребляет снимки до отмены ctx или ошибки обработчика.
func (c *TailConsumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "binding", c.binding, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}

		c.logger.Debug("tail consumer started", "binding", c.binding)

		err = c.processDeliveries(ctx, deliveries)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errDeliveriesClosed) {
			return err
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect", "binding", c.binding)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// Stop останавливает consumer.
func (c *TailConsumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

var errDeliveriesClosed = errors.New("deliveries channel closed")

// setupConsume объявляет очередь и начинает потребление.
func (c *TailConsumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	queue, err := declareTailQueue(ch, c.binding)
	if err != nil {
		return nil, err
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer tag (auto-generated)
		true,  // auto-ack: снимки не переотправляются
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *TailConsumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}

			update, err := DecodeStatus(raw.Body)
			if err != nil {
				c.logger.Warn("skipping malformed message",
					"message_id", raw.MessageId,
					"error", err,
				)
				continue
			}

			if err := c.handler(ctx, update); err != nil {
				return err
			}
		}
	}
}

// DecodeStatus разбирает конверт status.updated.
func DecodeStatus(body []byte) (domain.StatusUpdate, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.StatusUpdate{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != MessageTypeStatusUpdated {
		return domain.StatusUpdate{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return ParsePayload[domain.StatusUpdate](&msg)
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после json.Unmarshal — map[string]any
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
