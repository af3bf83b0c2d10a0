package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-table-orderflow/internal/notify"
)

// Mailer sends the staff email for one order.
type Mailer interface {
	Send(ctx context.Context, to string, msg notify.OrderCreated) error
}

// Recorder publishes order metrics.
type Recorder interface {
	OrderCreated(ctx context.Context, table string, total int64, items int, at time.Time) error
}

// Processor consumes "order created" notifications from SQS.
type Processor struct {
	mailer    Mailer
	metrics   Recorder
	recipient string
	log       *slog.Logger
}

// NewProcessor returns a Processor. A nil mailer or empty recipient skips
// email; a nil recorder skips metrics.
func NewProcessor(mailer Mailer, metrics Recorder, recipient string, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{mailer: mailer, metrics: metrics, recipient: recipient, log: log}
}

// Handle processes a batch and reports the records that should be retried.
// Malformed bodies are logged and dropped since a retry cannot fix them.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		err := p.processMessage(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, notify.ErrMalformed):
			p.log.Warn("dropping malformed message", "message_id", rec.MessageId, "error", err)
		default:
			p.log.Error("worker error", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	msg, err := notify.Decode(rec.Body)
	if err != nil {
		return err
	}
	log := p.log.With("order_id", msg.OrderID, "correlation_id", msg.CorrelationID)
	log.Info("received order notification", "table", msg.Table)

	if p.metrics != nil {
		// Metrics are best effort and never fail the record.
		if err := p.metrics.OrderCreated(ctx, msg.Table, msg.Total, msg.ItemCount, msg.CreatedAt); err != nil {
			log.Warn("failed to record order metrics", "error", err)
		}
	}

	if p.mailer == nil || p.recipient == "" {
		log.Debug("no notification recipient configured, skipping email")
		return nil
	}
	if err := p.mailer.Send(ctx, p.recipient, msg); err != nil {
		return fmt.Errorf("notify %s: %w", msg.OrderID, err)
	}
	log.Info("order email sent")
	return nil
}
