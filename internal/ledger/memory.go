// Package ledger holds the order ledger backends: DynamoDB, PostgreSQL and an
// in-memory store for local runs and tests.
package ledger

import (
	"context"
	"sync"

	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

// Memory is an in-process Ledger. Orders and items are kept in insertion order.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]orders.Order
	items  map[string][]orders.LineItem
	seq    []string
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		orders: map[string]orders.Order{},
		items:  map[string][]orders.LineItem{},
	}
}

var _ orders.Ledger = (*Memory)(nil)

func (m *Memory) Append(ctx context.Context, order orders.Order, items []orders.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.OrderID]; ok {
		return orders.ErrDuplicateID
	}
	order.Items = nil
	m.orders[order.OrderID] = order
	m.items[order.OrderID] = append([]orders.LineItem(nil), items...)
	m.seq = append(m.seq, order.OrderID)
	return nil
}

func (m *Memory) Query(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orders.Order, 0, len(m.seq))
	for _, id := range m.seq {
		if o := m.orders[id]; f.Match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, orderID string) (*orders.Order, []orders.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil, orders.ErrNotFound
	}
	return &o, append([]orders.LineItem(nil), m.items[orderID]...), nil
}

func (m *Memory) UpdateStatus(ctx context.Context, u orders.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[u.OrderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != u.From {
		return orders.ErrStatusConflict
	}
	o.Status = u.To
	o.UpdatedAt = u.UpdatedAt
	if u.CompletedAt != "" {
		o.CompletedAt = u.CompletedAt
	}
	m.orders[u.OrderID] = o
	return nil
}

func (m *Memory) Delete(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return orders.ErrNotFound
	}
	delete(m.orders, orderID)
	delete(m.items, orderID)
	for i, id := range m.seq {
		if id == orderID {
			m.seq = append(m.seq[:i], m.seq[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// ItemCount returns the number of line items stored for orderID.
func (m *Memory) ItemCount(orderID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items[orderID])
}
