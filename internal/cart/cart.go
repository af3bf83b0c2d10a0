// Package cart stages a table's order before checkout and reconciles it
// against the live menu.
package cart

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/imrishuroy/go-table-orderflow/internal/menu"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

var (
	ErrEmpty        = errors.New("cart is empty")
	ErrUnavailable  = errors.New("item is not available")
	ErrExceedsStock = errors.New("quantity exceeds stock")
	ErrUnknownItem  = errors.New("item is not on the menu")
	ErrInvalidTable = errors.New("table number must contain digits only")
	ErrNotInCart    = errors.New("item is not in the cart")
)

// Line is one staged menu item. Name, category and price are the values the
// customer saw; Checkout replaces them with the catalog's.
type Line struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
	stock    int
}

// Cart is a single table's staging area. It is not safe for concurrent use.
type Cart struct {
	Table string `json:"tableNumber"`
	Lines []Line `json:"items"`
}

// New returns an empty cart for table.
func New(table string) *Cart {
	return &Cart{Table: strings.TrimSpace(table)}
}

// StorageKey is the key a client persists this cart under.
func (c *Cart) StorageKey() string {
	return "cart_" + c.Table
}

func (c *Cart) index(id string) int {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return i
		}
	}
	return -1
}

// Add puts one more of it in the cart. Unavailable items are refused, and
// the quantity never exceeds a positive stock count.
func (c *Cart) Add(it menu.Item) error {
	if !it.Available {
		return fmt.Errorf("%s: %w", it.ID, ErrUnavailable)
	}
	if i := c.index(it.ID); i >= 0 {
		if it.Stock > 0 && c.Lines[i].Quantity+1 > it.Stock {
			return fmt.Errorf("%s: %w", it.ID, ErrExceedsStock)
		}
		c.Lines[i].Quantity++
		c.Lines[i].stock = it.Stock
		return nil
	}
	c.Lines = append(c.Lines, Line{
		ID:       it.ID,
		Name:     it.Name,
		Category: it.Category,
		Price:    it.Price,
		Quantity: 1,
		stock:    it.Stock,
	})
	return nil
}

// Stage adds a line by menu id only, to be resolved at Checkout. A quantity
// below one counts as one.
func (c *Cart) Stage(id string, quantity int, notes string) {
	if quantity < 1 {
		quantity = 1
	}
	if i := c.index(id); i >= 0 {
		c.Lines[i].Quantity += quantity
		if notes != "" {
			c.Lines[i].Notes = notes
		}
		return
	}
	c.Lines = append(c.Lines, Line{ID: id, Quantity: quantity, Notes: notes})
}

// StageLine is Stage without merging: the line is kept apart from any other
// line for the same id, so per-line notes survive checkout.
func (c *Cart) StageLine(id string, quantity int, notes string) {
	if quantity < 1 {
		quantity = 1
	}
	c.Lines = append(c.Lines, Line{ID: id, Quantity: quantity, Notes: notes})
}

// SetQuantity sets a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(id string, quantity int) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotInCart)
	}
	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return nil
	}
	if s := c.Lines[i].stock; s > 0 && quantity > s {
		return fmt.Errorf("%s: %w", id, ErrExceedsStock)
	}
	c.Lines[i].Quantity = quantity
	return nil
}

func (c *Cart) Remove(id string) {
	if i := c.index(id); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

func (c *Cart) Clear() { c.Lines = nil }

// Quantity returns how many of id are staged across all its lines.
func (c *Cart) Quantity(id string) int {
	n := 0
	for _, l := range c.Lines {
		if l.ID == id {
			n += l.Quantity
		}
	}
	return n
}

func (c *Cart) TotalItems() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Price * int64(l.Quantity)
	}
	return total
}

// Checkout resolves every line against catalog and returns order items priced
// from the catalog. Stock is checked against the id's total over all lines.
// The cart itself is left untouched.
func (c *Cart) Checkout(ctx context.Context, catalog menu.Catalog) ([]orders.ItemInput, error) {
	if len(c.Lines) == 0 {
		return nil, ErrEmpty
	}
	items := make([]orders.ItemInput, 0, len(c.Lines))
	for _, l := range c.Lines {
		if strings.TrimSpace(l.ID) == "" {
			return nil, fmt.Errorf("line without a menu id: %w", ErrUnknownItem)
		}
		it, err := lookup(ctx, catalog, l)
		if err != nil {
			return nil, err
		}
		if !it.Available {
			return nil, fmt.Errorf("%s: %w", it.Name, ErrUnavailable)
		}
		if it.Stock > 0 && c.Quantity(l.ID) > it.Stock {
			return nil, fmt.Errorf("%s: %w (%d left)", it.Name, ErrExceedsStock, it.Stock)
		}
		items = append(items, orders.ItemInput{
			MenuID:   it.ID,
			Name:     it.Name,
			Category: it.Category,
			Quantity: l.Quantity,
			Price:    it.Price,
			Notes:    l.Notes,
		})
	}
	return items, nil
}

func lookup(ctx context.Context, catalog menu.Catalog, l Line) (*menu.Item, error) {
	var (
		it  *menu.Item
		err error
	)
	if l.Category != "" {
		it, err = catalog.Get(ctx, l.Category, l.ID)
	} else {
		it, err = catalog.Find(ctx, l.ID)
	}
	if errors.Is(err, menu.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", l.ID, ErrUnknownItem)
	}
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", l.ID, err)
	}
	return it, nil
}

var (
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	tableInText = regexp.MustCompile(`(?i)table[=:]?\s*(\d+)`)
)

// ValidTableNumber reports whether a manually typed table number is digits only.
func ValidTableNumber(s string) bool {
	return digitsOnly.MatchString(strings.TrimSpace(s))
}

// ParseTable extracts the table number from scanned QR text: a URL with a
// table query parameter, text like "table 5", or the bare trimmed text.
func ParseTable(scanned string) string {
	text := strings.TrimSpace(scanned)
	if strings.Contains(text, "table=") {
		if u, err := url.Parse(text); err == nil {
			if t := u.Query().Get("table"); t != "" {
				return t
			}
		}
	}
	if m := tableInText.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
