package orders

import (
	"strings"
	"time"
)

// Status is the fulfillment stage of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in pipeline order.
var Statuses = []Status{StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

// transitions is the forward-only lifecycle graph.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusCompleted},
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether an order in s still occupies its table.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusPreparing || s == StatusReady
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is one customer transaction bound to a table.
type Order struct {
	OrderID      string    `json:"orderId" dynamodbav:"order_id"`
	Table        string    `json:"table" dynamodbav:"table_id"`
	CustomerName string    `json:"customerName" dynamodbav:"customer_name"`
	Status       Status    `json:"status" dynamodbav:"status"`
	Total        int64     `json:"total" dynamodbav:"total"`
	ItemCount    int       `json:"itemCount" dynamodbav:"item_count"`
	Notes        string    `json:"notes" dynamodbav:"notes"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"updated_at"`
	// CompletedAt is RFC3339 once the order is completed or cancelled, empty before.
	CompletedAt string `json:"completedAt" dynamodbav:"completed_at"`

	Items []LineItem `json:"items,omitempty" dynamodbav:"-"`
}

// LineItem is one catalog item within an order. Name, category and price are
// copied from the catalog at order time and never refreshed.
type LineItem struct {
	ItemID    string    `json:"itemId" dynamodbav:"item_id"`
	OrderID   string    `json:"orderId" dynamodbav:"order_id"`
	Seq       int       `json:"-" dynamodbav:"seq"`
	MenuID    string    `json:"menuId" dynamodbav:"menu_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Category  string    `json:"category" dynamodbav:"category"`
	Quantity  int       `json:"quantity" dynamodbav:"quantity"`
	UnitPrice int64     `json:"unitPrice" dynamodbav:"unit_price"`
	Subtotal  int64     `json:"subtotal" dynamodbav:"subtotal"`
	Notes     string    `json:"notes,omitempty" dynamodbav:"notes"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// ItemInput is a requested line item. Zero quantity means 1.
type ItemInput struct {
	MenuID   string
	Name     string
	Category string
	Quantity int
	Price    int64
	Notes    string
}

// CreateOrderInput is the payload for CreateOrder.
type CreateOrderInput struct {
	Table        string
	Items        []ItemInput
	Notes        string
	CustomerName string
}

// Query filters a ListOrders call. Filters are conjunctive; zero values match everything.
type Query struct {
	Table  string
	Status Status
	Today  bool
	Limit  int
}

// Unfiltered reports whether q selects the full order list.
func (q Query) Unfiltered() bool {
	return q == Query{}
}

// Filter is the ledger-level predicate derived from a Query.
type Filter struct {
	Table  string
	Status Status
	From   time.Time // inclusive; zero = unbounded
	To     time.Time // exclusive; zero = unbounded
}

// Match reports whether o satisfies every set field of f.
func (f Filter) Match(o Order) bool {
	if f.Table != "" && strings.TrimSpace(o.Table) != strings.TrimSpace(f.Table) {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// StatusUpdate is a conditional status write: it applies only while the stored
// status still equals From.
type StatusUpdate struct {
	OrderID     string
	From        Status
	To          Status
	UpdatedAt   time.Time
	CompletedAt string
}

// Stats aggregates orders per status plus revenue over completed orders.
type Stats struct {
	TotalOrders     int   `json:"totalOrders"`
	PendingOrders   int   `json:"pendingOrders"`
	PreparingOrders int   `json:"preparingOrders"`
	ReadyOrders     int   `json:"readyOrders"`
	CompletedOrders int   `json:"completedOrders"`
	CancelledOrders int   `json:"cancelledOrders"`
	TotalRevenue    int64 `json:"totalRevenue"`
	TodayOrders     int   `json:"todayOrders"`
	TodayRevenue    int64 `json:"todayRevenue"`
}
