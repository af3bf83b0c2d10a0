package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/imrishuroy/go-table-orderflow/internal/menu"
)

// Catalog bounds every menu.Catalog call by the read or write timeout and
// maps non-domain failures onto ErrUpstreamTimeout and ErrUpstreamUnavailable.
// Menu reads are not cached.
type Catalog struct {
	upstream     menu.Catalog
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewCatalog wraps upstream. Zero timeouts use the gateway defaults.
func NewCatalog(upstream menu.Catalog, read, write time.Duration) *Catalog {
	if read <= 0 {
		read = DefaultReadTimeout
	}
	if write <= 0 {
		write = DefaultWriteTimeout
	}
	return &Catalog{upstream: upstream, readTimeout: read, writeTimeout: write}
}

var _ menu.Catalog = (*Catalog)(nil)

func isMenuDomain(err error) bool {
	return errors.Is(err, menu.ErrNotFound) ||
		errors.Is(err, menu.ErrDuplicate) ||
		errors.Is(err, menu.ErrInvalid) ||
		errors.Is(err, menu.ErrCategoryExists) ||
		errors.Is(err, menu.ErrCategoryNotEmpty)
}

func (c *Catalog) read(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.readTimeout)
}

func (c *Catalog) write(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.writeTimeout)
}

func (c *Catalog) Get(ctx context.Context, category, id string) (*menu.Item, error) {
	ctx, cancel := c.read(ctx)
	defer cancel()
	it, err := c.upstream.Get(ctx, category, id)
	return it, classify(ctx, "get menu item", err, isMenuDomain)
}

func (c *Catalog) Find(ctx context.Context, id string) (*menu.Item, error) {
	ctx, cancel := c.read(ctx)
	defer cancel()
	it, err := c.upstream.Find(ctx, id)
	return it, classify(ctx, "find menu item", err, isMenuDomain)
}

func (c *Catalog) List(ctx context.Context, category string) ([]menu.Item, error) {
	ctx, cancel := c.read(ctx)
	defer cancel()
	items, err := c.upstream.List(ctx, category)
	return items, classify(ctx, "list menu", err, isMenuDomain)
}

func (c *Catalog) Categories(ctx context.Context) ([]menu.Category, error) {
	ctx, cancel := c.read(ctx)
	defer cancel()
	cats, err := c.upstream.Categories(ctx)
	return cats, classify(ctx, "list categories", err, isMenuDomain)
}

func (c *Catalog) Create(ctx context.Context, it menu.Item) (*menu.Item, error) {
	ctx, cancel := c.write(ctx)
	defer cancel()
	created, err := c.upstream.Create(ctx, it)
	return created, classify(ctx, "create menu item", err, isMenuDomain)
}

func (c *Catalog) Update(ctx context.Context, id string, p menu.Patch) (*menu.Item, error) {
	ctx, cancel := c.write(ctx)
	defer cancel()
	updated, err := c.upstream.Update(ctx, id, p)
	return updated, classify(ctx, "update menu item", err, isMenuDomain)
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	ctx, cancel := c.write(ctx)
	defer cancel()
	return classify(ctx, "delete menu item", c.upstream.Delete(ctx, id), isMenuDomain)
}

func (c *Catalog) AdjustStock(ctx context.Context, id, category string, delta int) (menu.StockResult, error) {
	ctx, cancel := c.write(ctx)
	defer cancel()
	res, err := c.upstream.AdjustStock(ctx, id, category, delta)
	return res, classify(ctx, "adjust stock", err, isMenuDomain)
}

// BulkAdjustStock shares one write timeout across the batch. Failures are
// already reported per item.
func (c *Catalog) BulkAdjustStock(ctx context.Context, updates []menu.StockUpdate) []menu.StockResult {
	ctx, cancel := c.write(ctx)
	defer cancel()
	return c.upstream.BulkAdjustStock(ctx, updates)
}

func (c *Catalog) CreateCategory(ctx context.Context, name string) (string, error) {
	ctx, cancel := c.write(ctx)
	defer cancel()
	n, err := c.upstream.CreateCategory(ctx, name)
	return n, classify(ctx, "create category", err, isMenuDomain)
}

func (c *Catalog) DeleteCategory(ctx context.Context, name string) error {
	ctx, cancel := c.write(ctx)
	defer cancel()
	return classify(ctx, "delete category", c.upstream.DeleteCategory(ctx, name), isMenuDomain)
}
