package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-table-orderflow/internal/menu"
)

// stallingCatalog blocks List until ctx ends and fails Categories outright.
type stallingCatalog struct {
	menu.Catalog
	catErr error
}

func (s stallingCatalog) List(ctx context.Context, category string) ([]menu.Item, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s stallingCatalog) Categories(ctx context.Context) ([]menu.Category, error) {
	return nil, s.catErr
}

func TestCatalog_ClassifiesUpstreamErrors(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(stallingCatalog{Catalog: menu.NewMemory(), catErr: errors.New("connection refused")}, 20*time.Millisecond, 0)

	start := time.Now()
	_, err := c.List(ctx, "")
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = c.Categories(ctx)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCatalog_DomainErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(menu.NewMemory(), 0, 0)

	_, err := c.Find(ctx, "ghost")
	assert.ErrorIs(t, err, menu.ErrNotFound)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = c.Create(ctx, menu.Item{ID: "a", Category: "coffee", Name: "A", Price: 1, Available: true, Stock: 2})
	require.NoError(t, err)
	_, err = c.Create(ctx, menu.Item{ID: "a", Category: "coffee", Name: "A", Price: 1})
	assert.ErrorIs(t, err, menu.ErrDuplicate)

	res, err := c.AdjustStock(ctx, "a", "coffee", -3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewStock)
	assert.False(t, res.Available)

	assert.ErrorIs(t, c.DeleteCategory(ctx, "coffee"), menu.ErrCategoryNotEmpty)
}
