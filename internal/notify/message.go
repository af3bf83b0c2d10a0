// Package notify carries the best-effort "order created" signal from the
// order service to staff: an SQS message produced at create time and an email
// sent by the worker that consumes it.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

var ErrMalformed = errors.New("malformed order notification")

// OrderCreated is the queue payload for a newly created order.
type OrderCreated struct {
	OrderID       string    `json:"order_id"`
	Table         string    `json:"table"`
	CustomerName  string    `json:"customer_name"`
	Total         int64     `json:"total"`
	ItemCount     int       `json:"item_count"`
	CreatedAt     time.Time `json:"created_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// FromOrder builds the payload for o.
func FromOrder(o orders.Order, correlationID string) OrderCreated {
	return OrderCreated{
		OrderID:       o.OrderID,
		Table:         o.Table,
		CustomerName:  o.CustomerName,
		Total:         o.Total,
		ItemCount:     o.ItemCount,
		CreatedAt:     o.CreatedAt,
		CorrelationID: correlationID,
	}
}

// Decode parses a queue body. Bodies that are not JSON or lack an order id
// return an error wrapping ErrMalformed.
func Decode(body string) (OrderCreated, error) {
	var m OrderCreated
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return OrderCreated{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.OrderID == "" {
		return OrderCreated{}, fmt.Errorf("%w: missing order_id", ErrMalformed)
	}
	return m, nil
}
