// Package gateway fronts an order backend with bounded timeouts, short-lived
// caches for the hot dashboard reads, and stale fallbacks when upstream fails.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imrishuroy/go-table-orderflow/internal/cache"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

const (
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultCacheTTL     = 3 * time.Second
)

var (
	// ErrUpstreamTimeout means the upstream call hit its deadline. For writes
	// the outcome is unknown.
	ErrUpstreamTimeout = errors.New("upstream timed out")
	// ErrUpstreamUnavailable covers every other non-domain upstream failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

type noCacheKey struct{}

// WithoutCache marks ctx so reads go straight to upstream. The fresh result
// still refreshes the cache.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCacheKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(noCacheKey{}).(bool)
	return v
}

// Gateway implements orders.Backend over another orders.Backend.
type Gateway struct {
	upstream     orders.Backend
	list         *cache.TTL[[]orders.Order]
	stats        *cache.TTL[orders.Stats]
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *slog.Logger
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithTimeouts overrides the read and write deadlines. Zero keeps the default.
func WithTimeouts(read, write time.Duration) Option {
	return func(g *Gateway) {
		if read > 0 {
			g.readTimeout = read
		}
		if write > 0 {
			g.writeTimeout = write
		}
	}
}

// WithCaches injects the order-list and stats caches.
func WithCaches(list *cache.TTL[[]orders.Order], stats *cache.TTL[orders.Stats]) Option {
	return func(g *Gateway) {
		g.list = list
		g.stats = stats
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.log = l } }

// New wraps upstream. Without WithCaches, both caches use DefaultCacheTTL.
func New(upstream orders.Backend, opts ...Option) *Gateway {
	g := &Gateway{
		upstream:     upstream,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.list == nil {
		g.list = cache.New[[]orders.Order](DefaultCacheTTL, nil)
	}
	if g.stats == nil {
		g.stats = cache.New[orders.Stats](DefaultCacheTTL, nil)
	}
	return g
}

var _ orders.Backend = (*Gateway)(nil)

// ListOrders implements orders.Backend, dropping the staleness flag.
func (g *Gateway) ListOrders(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	list, _, err := g.ListOrdersCached(ctx, q)
	return list, err
}

// ListOrdersCached returns the order list. Only the unfiltered list is cached;
// stale reports that the value came from an expired cache after upstream failed.
func (g *Gateway) ListOrdersCached(ctx context.Context, q orders.Query) (list []orders.Order, stale bool, err error) {
	if q.Status == "all" {
		q.Status = ""
	}
	if !q.Unfiltered() {
		list, err = g.readList(ctx, q)
		return list, false, err
	}

	if !cacheBypassed(ctx) {
		if cached, ok := g.list.Get(); ok {
			return cached, false, nil
		}
	}
	list, err = g.readList(ctx, q)
	if err == nil {
		g.list.Set(list)
		return list, false, nil
	}
	if cached, ok := g.list.Stale(); ok && !orders.IsValidation(err) {
		g.log.Warn("serving stale order list",
			slog.Int("count", len(cached)),
			slog.String("error", err.Error()),
		)
		return cached, true, nil
	}
	return nil, false, err
}

func (g *Gateway) readList(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.readTimeout)
	defer cancel()
	list, err := g.upstream.ListOrders(ctx, q)
	return list, g.classify(ctx, "list orders", err)
}

// Stats implements orders.Backend, dropping the staleness flag.
func (g *Gateway) Stats(ctx context.Context) (orders.Stats, error) {
	st, _, err := g.StatsCached(ctx)
	return st, err
}

// StatsCached is the stats read with the same cache and stale rules as the
// unfiltered order list.
func (g *Gateway) StatsCached(ctx context.Context) (orders.Stats, bool, error) {
	if !cacheBypassed(ctx) {
		if cached, ok := g.stats.Get(); ok {
			return cached, false, nil
		}
	}

	rctx, cancel := context.WithTimeout(ctx, g.readTimeout)
	st, err := g.upstream.Stats(rctx)
	err = g.classify(rctx, "stats", err)
	cancel()
	if err == nil {
		g.stats.Set(st)
		return st, false, nil
	}
	if cached, ok := g.stats.Stale(); ok {
		g.log.Warn("serving stale stats", slog.String("error", err.Error()))
		return cached, true, nil
	}
	return orders.Stats{}, false, err
}

// GetOrder is never cached.
func (g *Gateway) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.readTimeout)
	defer cancel()
	o, err := g.upstream.GetOrder(ctx, orderID)
	if err = g.classify(ctx, "get order", err); err != nil {
		return nil, err
	}
	return o, nil
}

func (g *Gateway) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.readTimeout)
	defer cancel()
	return g.classify(ctx, "health", g.upstream.Health(ctx))
}

func (g *Gateway) CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*orders.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	o, err := g.upstream.CreateOrder(ctx, in)
	if err = g.afterWrite(ctx, "create order", err); err != nil {
		return nil, err
	}
	return o, nil
}

func (g *Gateway) AdvanceStatus(ctx context.Context, orderID string, status orders.Status) (*orders.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	o, err := g.upstream.AdvanceStatus(ctx, orderID, status)
	if err = g.afterWrite(ctx, "update order status", err); err != nil {
		return nil, err
	}
	return o, nil
}

func (g *Gateway) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	return g.afterWrite(ctx, "delete order", g.upstream.DeleteOrder(ctx, orderID))
}

// afterWrite drops both caches unless upstream rejected the write outright.
// A timed-out write may still have landed, so it invalidates too.
func (g *Gateway) afterWrite(ctx context.Context, op string, err error) error {
	err = g.classify(ctx, op, err)
	if err == nil || errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrUpstreamUnavailable) {
		g.Invalidate()
	}
	return err
}

// Invalidate clears both caches.
func (g *Gateway) Invalidate() {
	g.list.Invalidate()
	g.stats.Invalidate()
}

func (g *Gateway) classify(ctx context.Context, op string, err error) error {
	return classify(ctx, op, err, isDomain)
}

// classify maps upstream failures onto the gateway taxonomy. Errors for which
// domain reports true pass through unchanged.
func classify(ctx context.Context, op string, err error, domain func(error) bool) error {
	if err == nil {
		return nil
	}
	if domain(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrUpstreamTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
}

func isDomain(err error) bool {
	return orders.IsValidation(err) ||
		errors.Is(err, orders.ErrNotFound) ||
		errors.Is(err, orders.ErrStatusConflict) ||
		errors.Is(err, orders.ErrDuplicateID)
}
