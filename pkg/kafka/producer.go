package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prohmpiriya/eventdesk/pkg/config"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Config holds producer settings
type Config struct {
	Brokers      []string
	ClientID     string
	TopicPrefix  string
	ProduceWait  time.Duration
	MaxRetries   int
	RequiredAcks kgo.Acks
}

// DefaultConfig returns a config for a local single-broker cluster
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "eventdesk",
		ProduceWait:  5 * time.Second,
		MaxRetries:   3,
		RequiredAcks: kgo.AllISRAcks(),
	}
}

// FromAppConfig builds a Config from the application config
func FromAppConfig(c *config.KafkaConfig) *Config {
	cfg := DefaultConfig()
	if len(c.Brokers) > 0 {
		cfg.Brokers = c.Brokers
	}
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	cfg.TopicPrefix = c.TopicPrefix
	return cfg
}

// Message is a record to publish
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer publishes records with franz-go
type Producer struct {
	client *kgo.Client
	cfg    *Config
}

// NewProducer creates a producer. Brokers are contacted lazily.
func NewProducer(cfg *Config) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(cfg.RequiredAcks),
		kgo.RecordRetries(cfg.MaxRetries),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.RequiredAcks != kgo.AllISRAcks() {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Producer{client: client, cfg: cfg}, nil
}

// Topic returns the prefixed topic name
func (p *Producer) Topic(name string) string {
	return TopicName(p.cfg.TopicPrefix, name)
}

// TopicName joins prefix and name with a dot
func TopicName(prefix, name string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Publish produces a message synchronously
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	record := &kgo.Record{
		Topic: p.Topic(msg.Topic),
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProduceWait)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", record.Topic, err)
	}

	logger.Debug("kafka record produced",
		zap.String("topic", record.Topic),
		zap.String("key", msg.Key),
	)
	return nil
}

// PublishJSON marshals value and publishes it under key
func (p *Producer) PublishJSON(ctx context.Context, topic, key string, value any, headers map[string]string) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kafka payload: %w", err)
	}
	return p.Publish(ctx, &Message{Topic: topic, Key: key, Value: body, Headers: headers})
}

// Ping checks broker connectivity
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		logger.Warn("kafka flush on close failed", zap.Error(err))
	}
	p.client.Close()
}
