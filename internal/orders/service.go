package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	defaultCustomerName = "Guest"
	maxIDAttempts       = 3
)

// Ledger is the system of record for orders and their line items, modelled as
// an append-oriented tabular store.
type Ledger interface {
	// Append writes the order and all of its items as one logical write.
	// Returns ErrDuplicateID if order.OrderID already exists.
	Append(ctx context.Context, order Order, items []LineItem) error
	// Query returns orders matching f, in no particular order.
	Query(ctx context.Context, f Filter) ([]Order, error)
	// Get returns the order and its items in creation order, or ErrNotFound.
	Get(ctx context.Context, orderID string) (*Order, []LineItem, error)
	// UpdateStatus applies u if the stored status equals u.From.
	// Returns ErrNotFound or ErrStatusConflict.
	UpdateStatus(ctx context.Context, u StatusUpdate) error
	// Delete removes the order and all of its items, or returns ErrNotFound.
	Delete(ctx context.Context, orderID string) error
	Ping(ctx context.Context) error
}

// Notifier receives a best-effort signal for every created order.
type Notifier interface {
	OrderCreated(ctx context.Context, order Order) error
}

// Backend is the order API shared by the in-process Service, the remote ledger
// client and the caching gateway in front of either.
type Backend interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	AdvanceStatus(ctx context.Context, orderID string, status Status) (*Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, q Query) ([]Order, error)
	Stats(ctx context.Context) (Stats, error)
	Health(ctx context.Context) error
}

// Service implements the order lifecycle on top of a Ledger.
type Service struct {
	ledger   Ledger
	ids      *IDGenerator
	notifier Notifier
	log      *slog.Logger
	loc      *time.Location
	nowFunc  func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets the order-created notifier.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithLocation sets the timezone used for "today" and order-id dates.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// WithIDGenerator overrides the order-id generator.
func WithIDGenerator(g *IDGenerator) Option { return func(s *Service) { s.ids = g } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.nowFunc = now } }

// NewService wires a lifecycle Service over ledger.
func NewService(ledger Ledger, opts ...Option) *Service {
	s := &Service{
		ledger:  ledger,
		log:     slog.Default(),
		loc:     time.UTC,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = NewIDGenerator("", s.loc)
	}
	return s
}

var _ Backend = (*Service)(nil)

// CreateOrder validates the input, computes totals and appends the order with
// its line items. The notifier is called afterwards; its failure is only logged.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	table := strings.TrimSpace(in.Table)
	if table == "" {
		return nil, invalid("table", "table is required")
	}
	if len(in.Items) == 0 {
		return nil, invalid("items", "at least one item is required")
	}
	for i, it := range in.Items {
		if it.Quantity < 0 {
			return nil, invalid(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
		if it.Price < 0 {
			return nil, invalid(fmt.Sprintf("items[%d].price", i), "price must not be negative")
		}
	}

	customer := strings.TrimSpace(in.CustomerName)
	if customer == "" {
		customer = defaultCustomerName
	}

	now := s.nowFunc().UTC()
	var (
		order Order
		items []LineItem
		err   error
	)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		order, items = buildOrder(s.ids.Next(now), table, customer, strings.TrimSpace(in.Notes), in.Items, now)
		err = s.ledger.Append(ctx, order, items)
		if !errors.Is(err, ErrDuplicateID) {
			break
		}
		s.log.Warn("order id collision, regenerating", slog.String("order_id", order.OrderID))
	}
	if err != nil {
		return nil, fmt.Errorf("append order: %w", err)
	}

	s.log.Info("order created",
		slog.String("order_id", order.OrderID),
		slog.String("table", order.Table),
		slog.Int64("total", order.Total),
		slog.Int("item_count", order.ItemCount),
	)

	if s.notifier != nil {
		if nerr := s.notifier.OrderCreated(ctx, order); nerr != nil {
			s.log.Warn("order notification failed",
				slog.String("order_id", order.OrderID),
				slog.String("error", nerr.Error()),
			)
		}
	}

	order.Items = items
	return &order, nil
}

func buildOrder(id, table, customer, notes string, in []ItemInput, now time.Time) (Order, []LineItem) {
	items := make([]LineItem, 0, len(in))
	var total int64
	var count int
	for i, it := range in {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		subtotal := int64(qty) * it.Price
		total += subtotal
		count += qty
		items = append(items, LineItem{
			ItemID:    LineItemID(id, i+1),
			OrderID:   id,
			Seq:       i + 1,
			MenuID:    it.MenuID,
			Name:      it.Name,
			Category:  it.Category,
			Quantity:  qty,
			UnitPrice: it.Price,
			Subtotal:  subtotal,
			Notes:     it.Notes,
			CreatedAt: now,
		})
	}
	return Order{
		OrderID:      id,
		Table:        table,
		CustomerName: customer,
		Status:       StatusPending,
		Total:        total,
		ItemCount:    count,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, items
}

// AdvanceStatus moves an order along the lifecycle graph. Re-applying the
// current status of an active order is a no-op.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, invalid("orderId", "orderId is required")
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", status)}
	}

	current, _, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == status && !status.Terminal() {
		return current, nil
	}
	if !CanTransition(current.Status, status) {
		return nil, &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("invalid status transition %s -> %s", current.Status, status),
			Err:     ErrInvalidTransition,
		}
	}

	now := s.nowFunc().UTC()
	u := StatusUpdate{OrderID: orderID, From: current.Status, To: status, UpdatedAt: now}
	if status.Terminal() {
		u.CompletedAt = now.Format(time.RFC3339Nano)
	}
	if err := s.ledger.UpdateStatus(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info("order status changed",
		slog.String("order_id", orderID),
		slog.String("from", string(u.From)),
		slog.String("to", string(u.To)),
	)

	current.Status = status
	current.UpdatedAt = now
	current.CompletedAt = u.CompletedAt
	return current, nil
}

// DeleteOrder removes an order and its items.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return invalid("orderId", "orderId is required")
	}
	if err := s.ledger.Delete(ctx, orderID); err != nil {
		return err
	}
	s.log.Info("order deleted", slog.String("order_id", orderID))
	return nil
}

// GetOrder returns an order with its line items.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, invalid("orderId", "orderId is required")
	}
	order, items, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// ListOrders returns matching orders, newest first, truncated to q.Limit.
func (s *Service) ListOrders(ctx context.Context, q Query) ([]Order, error) {
	if q.Status != "" && q.Status != "all" && !q.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", q.Status)}
	}
	f := Filter{Table: strings.TrimSpace(q.Table)}
	if q.Status != "all" {
		f.Status = q.Status
	}
	if q.Today {
		f.From, f.To = s.today()
	}

	list, err := s.ledger.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if q.Limit > 0 && len(list) > q.Limit {
		list = list[:q.Limit]
	}
	return list, nil
}

// Stats aggregates every order in the ledger.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	list, err := s.ledger.Query(ctx, Filter{})
	if err != nil {
		return Stats{}, fmt.Errorf("query orders: %w", err)
	}
	from, to := s.today()
	return ComputeStats(list, from, to), nil
}

// Health pings the ledger.
func (s *Service) Health(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

func (s *Service) today() (time.Time, time.Time) {
	now := s.nowFunc().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// ComputeStats counts orders per status. Revenue only includes completed
// orders; "today" is the half-open window [from, to).
func ComputeStats(list []Order, from, to time.Time) Stats {
	var st Stats
	today := Filter{From: from, To: to}
	for _, o := range list {
		st.TotalOrders++
		switch o.Status {
		case StatusPending:
			st.PendingOrders++
		case StatusPreparing:
			st.PreparingOrders++
		case StatusReady:
			st.ReadyOrders++
		case StatusCompleted:
			st.CompletedOrders++
			st.TotalRevenue += o.Total
		case StatusCancelled:
			st.CancelledOrders++
		}
		if today.Match(o) {
			st.TodayOrders++
			if o.Status == StatusCompleted {
				st.TodayRevenue += o.Total
			}
		}
	}
	return st
}
