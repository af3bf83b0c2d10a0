// Package menu is the café's item catalog: items grouped by category, each
// with a price, an availability flag and a stock counter.
package menu

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("menu not found")
	ErrDuplicate        = errors.New("menu with this id already exists")
	ErrInvalid          = errors.New("invalid menu input")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryNotEmpty = errors.New("cannot delete category with menu items")
)

// Item is one sellable catalog entry.
type Item struct {
	ID          string    `json:"id" dynamodbav:"id"`
	Category    string    `json:"category" dynamodbav:"category"`
	Name        string    `json:"name" dynamodbav:"name"`
	Price       int64     `json:"price" dynamodbav:"price"`
	Description string    `json:"description" dynamodbav:"description"`
	Image       string    `json:"image" dynamodbav:"image"`
	Available   bool      `json:"available" dynamodbav:"available"`
	Stock       int       `json:"stock" dynamodbav:"stock"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// Category is a category name with the number of items filed under it.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Patch holds the fields an update may change. Nil fields are left alone.
type Patch struct {
	Name        *string
	Category    *string
	Price       *int64
	Description *string
	Image       *string
	Available   *bool
	Stock       *int
}

// Apply returns a copy of it with p applied.
func (p Patch) Apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) != "" {
		it.Category = NormalizeCategory(*p.Category)
	}
	if p.Price != nil {
		it.Price = *p.Price
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Image != nil {
		it.Image = *p.Image
	}
	if p.Available != nil {
		it.Available = *p.Available
	}
	if p.Stock != nil {
		it.Stock = *p.Stock
	}
	return it
}

// StockUpdate is a signed stock delta for one item.
type StockUpdate struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Delta    int    `json:"quantity"`
}

// StockResult reports one stock adjustment.
type StockResult struct {
	ID            string `json:"id"`
	Success       bool   `json:"success"`
	PreviousStock int    `json:"previousStock"`
	NewStock      int    `json:"newStock"`
	Available     bool   `json:"available"`
	Error         string `json:"error,omitempty"`
}

// Catalog is the menu contract used by the API and by cart checkout.
type Catalog interface {
	Get(ctx context.Context, category, id string) (*Item, error)
	// Find looks id up across every category.
	Find(ctx context.Context, id string) (*Item, error)
	// List returns a category's items newest first; an empty category lists everything.
	List(ctx context.Context, category string) ([]Item, error)
	Categories(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, it Item) (*Item, error)
	Update(ctx context.Context, id string, p Patch) (*Item, error)
	Delete(ctx context.Context, id string) error
	// AdjustStock adds delta to the item's stock, clamping at zero, and sets
	// available to newStock > 0.
	AdjustStock(ctx context.Context, id, category string, delta int) (StockResult, error)
	BulkAdjustStock(ctx context.Context, updates []StockUpdate) []StockResult
	CreateCategory(ctx context.Context, name string) (string, error)
	DeleteCategory(ctx context.Context, name string) error
}

// NormalizeCategory trims and lower-cases a category name.
func NormalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ClampStock applies delta to current without going below zero.
func ClampStock(current, delta int) int {
	if n := current + delta; n > 0 {
		return n
	}
	return 0
}
