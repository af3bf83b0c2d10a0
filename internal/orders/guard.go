package orders

import (
	"context"
	"log/slog"
)

// OrderLister is the read side the Guard needs.
type OrderLister interface {
	ListOrders(ctx context.Context, q Query) ([]Order, error)
}

// Availability answers whether a table may take a new order.
type Availability struct {
	Available   bool   `json:"available"`
	ActiveOrder *Order `json:"activeOrder,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Guard enforces one active order per table.
//
// The check and the subsequent create are separate ledger calls, so two
// concurrent checkouts for the same table can both pass. Tables are claimed by
// scanning one physical QR code at a time, which keeps that window small.
type Guard struct {
	orders OrderLister
	log    *slog.Logger
}

// NewGuard returns a Guard reading orders through lister.
func NewGuard(lister OrderLister, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{orders: lister, log: log}
}

// CheckAvailability looks for a pending, preparing or ready order placed today
// on table. If the ledger cannot be queried the table is reported available.
func (g *Guard) CheckAvailability(ctx context.Context, table string) Availability {
	list, err := g.orders.ListOrders(ctx, Query{Table: table, Today: true})
	if err != nil {
		g.log.Warn("table availability check failed, allowing order",
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		return Availability{Available: true, Error: "could not verify table status"}
	}
	for i := range list {
		if list[i].Status.Active() {
			active := list[i]
			return Availability{Available: false, ActiveOrder: &active}
		}
	}
	return Availability{Available: true}
}
