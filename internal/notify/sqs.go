package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

// Publisher is satisfied by aws.Publisher.
type Publisher interface {
	Publish(ctx context.Context, body string, attributes map[string]string) error
}

// SQSNotifier implements orders.Notifier by queueing an OrderCreated message.
type SQSNotifier struct {
	pub   Publisher
	newID func() string
}

func NewSQSNotifier(pub Publisher) *SQSNotifier {
	return &SQSNotifier{pub: pub, newID: uuid.NewString}
}

var _ orders.Notifier = (*SQSNotifier)(nil)

func (n *SQSNotifier) OrderCreated(ctx context.Context, o orders.Order) error {
	msg := FromOrder(o, n.newID())
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order notification: %w", err)
	}
	attrs := map[string]string{
		"order_id":       msg.OrderID,
		"correlation_id": msg.CorrelationID,
	}
	if err := n.pub.Publish(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("publish order notification: %w", err)
	}
	return nil
}
