package kafka

import (
	"context"
	"os"
	"testing"

	"github.com/prohmpiriya/eventdesk/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "finance.payment.succeeded", "finance.payment.succeeded"},
		{"prod", "finance.refund.processed", "prod.finance.refund.processed"},
		{"staging.", "finance.dispute.opened", "staging.finance.dispute.opened"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TopicName(tt.prefix, tt.name))
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(&config.KafkaConfig{
		Brokers:     []string{"k1:9092", "k2:9092"},
		TopicPrefix: "dev",
	})

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, "eventdesk", cfg.ClientID)
	assert.Equal(t, "dev", cfg.TopicPrefix)
}

func TestProducer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultConfig()
	if brokers := os.Getenv("TEST_KAFKA_BROKERS"); brokers != "" {
		cfg.Brokers = []string{brokers}
	}
	cfg.TopicPrefix = "test"

	p, err := NewProducer(cfg)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	require.NoError(t, p.Ping(ctx))
	assert.NoError(t, p.PublishJSON(ctx, "eventdesk.probe", "k", map[string]string{"hello": "world"}, nil))
}
