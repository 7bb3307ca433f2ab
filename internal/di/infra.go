package di

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/eventdesk/pkg/config"
	"github.com/prohmpiriya/eventdesk/pkg/database"
	"github.com/prohmpiriya/eventdesk/pkg/kafka"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/rabbitmq"
	"github.com/prohmpiriya/eventdesk/pkg/redis"
	"go.uber.org/zap"
)

// Infra holds the external connections shared by the container and CLI commands.
// Redis, Kafka and RabbitMQ are optional: nil when disabled or unreachable.
type Infra struct {
	DB        *database.PostgresDB
	Redis     *redis.Client
	Producer  *kafka.Producer
	Publisher *rabbitmq.Publisher
}

// Connect dials PostgreSQL, then the optional brokers. Only a database failure is fatal.
func Connect(ctx context.Context, cfg *config.Config) (*Infra, error) {
	db, err := database.NewPostgres(ctx, database.FromAppConfig(&cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	infra := &Infra{DB: db}

	if rdb, err := redis.NewClient(ctx, redis.FromAppConfig(&cfg.Redis)); err != nil {
		logger.Warn("redis unavailable, webhook locks and seat holds disabled", zap.Error(err))
	} else if err := rdb.RegisterSeatScripts(ctx); err != nil {
		logger.Warn("seat hold scripts not loaded", zap.Error(err))
		infra.Redis = rdb
	} else {
		infra.Redis = rdb
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.FromAppConfig(&cfg.Kafka))
		if err != nil {
			logger.Warn("kafka unavailable, finance events will not be published", zap.Error(err))
		} else {
			infra.Producer = producer
		}
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := rabbitmq.NewPublisher(RabbitConfig(&cfg.RabbitMQ))
		if err != nil {
			logger.Warn("rabbitmq unavailable, notifications will be dropped", zap.Error(err))
		} else {
			infra.Publisher = pub
		}
	}

	return infra, nil
}

// RabbitConfig maps the broker settings onto the notifications exchange
func RabbitConfig(c *config.RabbitMQConfig) rabbitmq.Config {
	return rabbitmq.Config{
		URL:         c.URL,
		Exchange:    c.Exchange,
		Queue:       c.Queue,
		BindingKeys: []string{"email.*", "sms.*", "whatsapp.*"},
		Prefetch:    10,
	}
}

// Close releases every connection
func (i *Infra) Close() {
	if i.Publisher != nil {
		i.Publisher.Close()
	}
	if i.Producer != nil {
		i.Producer.Close()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
