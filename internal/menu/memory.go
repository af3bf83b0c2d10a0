package menu

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Catalog for local runs without AWS. It follows the
// DynamoCatalog contract, including that ids are unique across categories.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]Item
	categories map[string]bool
	nowFunc    func() time.Time
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		items:      map[string]Item{},
		categories: map[string]bool{},
		nowFunc:    time.Now,
	}
}

var _ Catalog = (*Memory)(nil)

func (m *Memory) Get(ctx context.Context, category, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok || it.Category != NormalizeCategory(category) {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *Memory) Find(ctx context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

// List orders categories by name and items newest first within each.
func (m *Memory) List(ctx context.Context, category string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	category = NormalizeCategory(category)
	var out []Item
	for _, it := range m.items {
		if category == "" || it.Category == category {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Categories(ctx context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Category, 0, len(m.categories))
	for name := range m.categories {
		out = append(out, Category{Name: name, Count: m.count(name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) count(category string) int {
	n := 0
	for _, it := range m.items {
		if it.Category == category {
			n++
		}
	}
	return n
}

func (m *Memory) Create(ctx context.Context, it Item) (*Item, error) {
	it.Category = NormalizeCategory(it.Category)
	if err := validateItem(it); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; ok {
		return nil, ErrDuplicate
	}
	it.CreatedAt = m.nowFunc().UTC()
	m.items[it.ID] = it
	m.categories[it.Category] = true
	return &it, nil
}

func (m *Memory) Update(ctx context.Context, id string, p Patch) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := p.Apply(current)
	updated.ID = current.ID
	if err := validateItem(updated); err != nil {
		return nil, err
	}
	m.items[id] = updated
	m.categories[updated.Category] = true
	return &updated, nil
}

// Delete removes the item and drops its category once empty.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	if m.count(it.Category) == 0 {
		delete(m.categories, it.Category)
	}
	return nil
}

func (m *Memory) AdjustStock(ctx context.Context, id, category string, delta int) (StockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if category = NormalizeCategory(category); !ok || (category != "" && it.Category != category) {
		return StockResult{ID: id}, ErrNotFound
	}
	prev := it.Stock
	it.Stock = ClampStock(prev, delta)
	it.Available = it.Stock > 0
	m.items[id] = it
	return StockResult{ID: id, Success: true, PreviousStock: prev, NewStock: it.Stock, Available: it.Available}, nil
}

func (m *Memory) BulkAdjustStock(ctx context.Context, updates []StockUpdate) []StockResult {
	results := make([]StockResult, 0, len(updates))
	for _, u := range updates {
		res, err := m.AdjustStock(ctx, u.ID, u.Category, u.Delta)
		if err != nil {
			res = StockResult{ID: u.ID, Error: stockError(err)}
		}
		results = append(results, res)
	}
	return results
}

func (m *Memory) CreateCategory(ctx context.Context, name string) (string, error) {
	name = NormalizeCategory(name)
	if name == "" {
		return "", fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.categories[name] {
		return "", ErrCategoryExists
	}
	m.categories[name] = true
	return name, nil
}

// DeleteCategory removes an empty category. Deleting an unknown category succeeds.
func (m *Memory) DeleteCategory(ctx context.Context, name string) error {
	name = NormalizeCategory(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count(name) > 0 {
		return ErrCategoryNotEmpty
	}
	delete(m.categories, name)
	return nil
}
