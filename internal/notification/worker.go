package notification

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.uber.org/zap"
)

// Worker consumes notification jobs and hands them to the channel's sender
type Worker struct {
	senders map[Channel]Sender
	metrics *telemetry.FinanceMetrics
	log     *logger.Logger
}

// NewWorker creates a worker. metrics may be nil.
func NewWorker(senders map[Channel]Sender, metrics *telemetry.FinanceMetrics) *Worker {
	return &Worker{
		senders: senders,
		metrics: metrics,
		log:     logger.Get().Named("notification-worker"),
	}
}

// Handle decodes and delivers one job
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	sender, ok := w.senders[job.Channel]
	if !ok || sender == nil {
		w.record(ctx, job.Channel, "unsupported")
		return fmt.Errorf("%w: %s", ErrUnknownChannel, job.Channel)
	}

	if err := sender.Send(ctx, &job); err != nil {
		w.record(ctx, job.Channel, "failed")
		return err
	}
	w.record(ctx, job.Channel, "sent")
	w.log.Info("notification sent",
		zap.String("job_id", job.ID),
		zap.String("channel", string(job.Channel)),
		zap.String("template", job.Template),
		zap.String("tenant_id", job.TenantID),
	)
	return nil
}

// Run processes deliveries until ctx is done or the channel closes.
// Failed jobs are dropped rather than requeued so a bad address cannot loop.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := w.Handle(ctx, d.Body); err != nil {
				w.log.Error("notification failed",
					zap.String("routing_key", d.RoutingKey),
					zap.Error(err),
				)
				if nackErr := d.Nack(false, false); nackErr != nil {
					w.log.Warn("nack failed", zap.Error(nackErr))
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				w.log.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) record(ctx context.Context, ch Channel, outcome string) {
	if w.metrics == nil {
		return
	}
	w.metrics.NotificationsSent.Inc(ctx, telemetry.ChannelAttr(string(ch)), telemetry.OutcomeAttr(outcome))
}
