package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"line-order-intake/internal/models"
	"line-order-intake/internal/shop"
)

// OrderCompletedEventType is the broker message type of finished orders.
const OrderCompletedEventType = "order.completed"

// DefaultQueue receives order events when RABBITMQ_QUEUE is unset.
const DefaultQueue = "line_orders"

// OrderCompletedEvent is the broker payload.
type OrderCompletedEvent struct {
	Event      string              `json:"event"`
	ShopID     string              `json:"shopId"`
	ShopName   string              `json:"shopName"`
	Order      models.OrderSummary `json:"order"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Publisher is the subset of *amqp091.Channel used by BrokerChannel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// BrokerChannel publishes finished orders to a RabbitMQ queue.
type BrokerChannel struct {
	publisher Publisher
	queue     string
	now       func() time.Time
}

// NewBrokerChannel creates a channel publishing to queue via the default exchange.
func NewBrokerChannel(publisher Publisher, queue string) (*BrokerChannel, error) {
	if publisher == nil {
		return nil, fmt.Errorf("broker publisher cannot be nil")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &BrokerChannel{publisher: publisher, queue: queue, now: time.Now}, nil
}

// DialRabbitMQ connects, opens a channel and declares the durable queue.
// The returned close func releases both.
func DialRabbitMQ(url, queue string) (*amqp091.Channel, func(), error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open RabbitMQ channel: %w", err)
	}
	if queue == "" {
		queue = DefaultQueue
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare RabbitMQ queue: %w", err)
	}

	log.Info().Str("queue", queue).Msg("RabbitMQ connection established.")
	return ch, func() {
		ch.Close()
		conn.Close()
	}, nil
}

func (b *BrokerChannel) Name() string { return "broker" }

// Enabled is true for every shop.
func (b *BrokerChannel) Enabled(*shop.Config) bool { return true }

func (b *BrokerChannel) Send(ctx context.Context, summary *models.OrderSummary, cfg *shop.Config) error {
	now := b.now()
	body, err := json.Marshal(OrderCompletedEvent{
		Event:      OrderCompletedEventType,
		ShopID:     cfg.ID,
		ShopName:   cfg.Name,
		Order:      *summary,
		OccurredAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	err = b.publisher.PublishWithContext(ctx,
		"",      // exchange (default)
		b.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    now,
			Type:         OrderCompletedEventType,
			Body:         body,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("queue", b.queue).Msg("Could not publish to RabbitMQ")
		return fmt.Errorf("publish order event: %w", err)
	}
	log.Debug().Str("queue", b.queue).Str("orderNum", summary.OrderNum).Msg("Published message to RabbitMQ")
	return nil
}
