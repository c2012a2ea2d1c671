package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/config"
)

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close() error
}

// NewPublisher connects to RabbitMQ when messaging is enabled, otherwise
// returns a publisher that drops events.
func NewPublisher(cfg config.MessagingConfig) (Publisher, error) {
	if !cfg.Enabled {
		return NoopPublisher{}, nil
	}
	return DialRabbit(cfg.URL, cfg.Exchange)
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes persistent JSON messages to a topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     io.Closer
	channel  Channel
	exchange string
}

// NewRabbitPublisher publishes on an already declared exchange. The
// publisher closes channel on Close but not the connection behind it.
func NewRabbitPublisher(channel Channel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{channel: channel, exchange: exchange}
}

// DialRabbit connects and declares the exchange.
func DialRabbit(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("connected to RabbitMQ")

	return &RabbitPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish publishes an event to the exchange
func (p *RabbitPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, Source, data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		eventType,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Msg("event published")

	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close RabbitMQ channel")
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*RabbitPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
