package notification

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/eventdesk/pkg/rabbitmq"
)

// Publisher is the subset of the RabbitMQ publisher used here
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// QueueNotifier publishes jobs to the notifications exchange
type QueueNotifier struct {
	pub Publisher
}

// NewQueueNotifier wraps a publisher
func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

// Notify publishes job with its routing key
func (n *QueueNotifier) Notify(ctx context.Context, job *Job) error {
	if job.To == "" {
		return fmt.Errorf("notification %s: empty recipient", job.Template)
	}
	if err := n.pub.Publish(ctx, job.RoutingKey(), job); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.RoutingKey(), err)
	}
	return nil
}

var _ Publisher = (*rabbitmq.Publisher)(nil)
