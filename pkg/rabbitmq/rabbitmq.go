package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/eventdesk/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeKind is the exchange type used for every exchange declared here
const ExchangeKind = "topic"

// Config holds broker settings
type Config struct {
	URL      string
	Exchange string
	Queue    string
	// BindingKeys are bound to Queue on the consumer side. Defaults to "#".
	BindingKeys []string
	Prefetch    int
}

// Publisher publishes JSON messages to a topic exchange
type Publisher struct {
	cfg     Config
	conn    *amqp.Connection
	mu      sync.Mutex
	channel *amqp.Channel
}

// NewPublisher dials the broker and declares the exchange
func NewPublisher(cfg Config) (*Publisher, error) {
	conn, ch, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg, conn: conn, channel: ch}, nil
}

func open(cfg Config) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return conn, ch, nil
}

// Publish marshals payload to JSON and publishes it with routingKey
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	logger.Debug("rabbitmq message published",
		zap.String("exchange", p.cfg.Exchange),
		zap.String("routing_key", routingKey),
		zap.Int("bytes", len(body)),
	)
	return nil
}

// Close closes the channel and connection
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Consumer reads deliveries from a durable queue bound to the exchange
type Consumer struct {
	cfg     Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConsumer dials the broker and declares and binds the queue
func NewConsumer(cfg Config) (*Consumer, error) {
	conn, ch, err := open(cfg)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	keys := cfg.BindingKeys
	if len(keys) == 0 {
		keys = []string{"#"}
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("rabbitmq queue bind %s: %w", key, err)
		}
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("rabbitmq qos: %w", err)
		}
	}

	return &Consumer{cfg: cfg, conn: conn, channel: ch}, nil
}

// Consume starts delivery with manual acknowledgement
func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}

	logger.Info("rabbitmq consuming", zap.String("queue", c.cfg.Queue))
	return msgs, nil
}

// Close closes the channel and connection
func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
