package menu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imrishuroy/go-table-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/go-table-orderflow/internal/logger"
)

func newTestCatalog(t *testing.T) (*DynamoCatalog, *awstest.FakeDynamoDB) {
	t.Helper()
	fake := awstest.NewFakeDynamoDB()
	fake.CreateTable("menu", "category", "id")
	fake.CreateTable("menu_categories", "name", "")
	c := NewDynamoCatalog(fake, "menu", "menu_categories", logger.Discard())
	now := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return c, fake
}

func mustCreate(t *testing.T, c *DynamoCatalog, it Item) *Item {
	t.Helper()
	got, err := c.Create(context.Background(), it)
	if err != nil {
		t.Fatalf("create %s: %v", it.ID, err)
	}
	return got
}

func TestCreate_RegistersCategory(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	got := mustCreate(t, c, Item{ID: "coffee_001", Category: " Coffee ", Name: "Latte", Price: 25000, Available: true, Stock: 10})
	if got.Category != "coffee" {
		t.Fatalf("expected normalized category, got %q", got.Category)
	}

	cats, err := c.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "coffee" || cats[0].Count != 1 {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	if _, err := c.Create(ctx, Item{ID: "coffee_001", Category: "snacks", Name: "Dup", Price: 1}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate across categories, got %v", err)
	}
	if _, err := c.Create(ctx, Item{ID: "x", Category: "coffee", Price: 1}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing name, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "a", Category: "coffee", Name: "A", Price: 1})
	mustCreate(t, c, Item{ID: "b", Category: "coffee", Name: "B", Price: 1})
	mustCreate(t, c, Item{ID: "s", Category: "snacks", Name: "S", Price: 1})

	coffee, err := c.List(ctx, "coffee")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(coffee) != 2 || coffee[0].ID != "b" || coffee[1].ID != "a" {
		t.Fatalf("expected newest first, got %+v", coffee)
	}

	all, err := c.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}
}

func TestFind(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "snack_001", Category: "snacks", Name: "Croissant", Price: 20000})

	got, err := c.Find(ctx, "snack_001")
	if err != nil || got.Category != "snacks" {
		t.Fatalf("find: %+v %v", got, err)
	}
	if _, err := c.Find(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_SameCategory(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "a", Category: "coffee", Name: "A", Price: 100, Available: true, Stock: 3})

	price := int64(150)
	avail := false
	got, err := c.Update(ctx, "a", Patch{Price: &price, Available: &avail})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Price != 150 || got.Available || got.Stock != 3 || got.Name != "A" {
		t.Fatalf("unexpected update result: %+v", got)
	}
	stored, _ := c.Get(ctx, "coffee", "a")
	if stored.Price != 150 || stored.Available {
		t.Fatalf("update not persisted: %+v", stored)
	}

	if _, err := c.Update(ctx, "missing", Patch{Price: &price}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_MovesCategory(t *testing.T) {
	c, fake := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "a", Category: "coffee", Name: "A", Price: 100})

	cat := "Seasonal"
	got, err := c.Update(ctx, "a", Patch{Category: &cat})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Category != "seasonal" {
		t.Fatalf("expected seasonal, got %q", got.Category)
	}
	if _, err := c.Get(ctx, "coffee", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old row should be gone, got %v", err)
	}
	if _, err := c.Get(ctx, "seasonal", "a"); err != nil {
		t.Fatalf("new row missing: %v", err)
	}
	if n := len(fake.Items("menu")); n != 1 {
		t.Fatalf("expected exactly one item row, got %d", n)
	}
}

func TestDelete_DropsEmptyCategory(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "a", Category: "coffee", Name: "A", Price: 1})
	mustCreate(t, c, Item{ID: "b", Category: "coffee", Name: "B", Price: 1})

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete a: %v", err)
	}
	cats, _ := c.Categories(ctx)
	if len(cats) != 1 || cats[0].Count != 1 {
		t.Fatalf("expected coffee with one item, got %+v", cats)
	}

	if err := c.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete b: %v", err)
	}
	cats, _ = c.Categories(ctx)
	if len(cats) != 0 {
		t.Fatalf("expected empty category to be removed, got %+v", cats)
	}

	if err := c.Delete(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustStock_ClampsAtZero(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "a", Category: "coffee", Name: "A", Price: 1, Available: true, Stock: 3})

	res, err := c.AdjustStock(ctx, "a", "coffee", -5)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if res.PreviousStock != 3 || res.NewStock != 0 || res.Available {
		t.Fatalf("unexpected result: %+v", res)
	}
	stored, _ := c.Get(ctx, "coffee", "a")
	if stored.Stock != 0 || stored.Available {
		t.Fatalf("stock not persisted: %+v", stored)
	}

	res, err = c.AdjustStock(ctx, "a", "", 4)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if res.NewStock != 4 || !res.Available {
		t.Fatalf("unexpected restock result: %+v", res)
	}

	if _, err := c.AdjustStock(ctx, "a", "snacks", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong category, got %v", err)
	}
}

func TestBulkAdjustStock_PerItemResults(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	mustCreate(t, c, Item{ID: "a", Category: "coffee", Name: "A", Price: 1, Stock: 1})
	mustCreate(t, c, Item{ID: "s", Category: "snacks", Name: "S", Price: 1, Stock: 0})

	results := c.BulkAdjustStock(ctx, []StockUpdate{
		{ID: "a", Category: "coffee", Delta: 10},
		{ID: "ghost", Category: "coffee", Delta: 1},
		{ID: "s", Category: "snacks", Delta: 2},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || results[0].NewStock != 11 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Success || results[1].Error != "Menu not found" {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
	if !results[2].Success || !results[2].Available {
		t.Fatalf("unexpected third result: %+v", results[2])
	}
}

func TestCategories_CreateDelete(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	name, err := c.CreateCategory(ctx, "  Dessert ")
	if err != nil || name != "dessert" {
		t.Fatalf("create category: %q %v", name, err)
	}
	if _, err := c.CreateCategory(ctx, "dessert"); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
	if _, err := c.CreateCategory(ctx, "  "); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	mustCreate(t, c, Item{ID: "cake", Category: "dessert", Name: "Cake", Price: 1})
	if err := c.DeleteCategory(ctx, "dessert"); !errors.Is(err, ErrCategoryNotEmpty) {
		t.Fatalf("expected ErrCategoryNotEmpty, got %v", err)
	}

	if _, err := c.CreateCategory(ctx, "empty"); err != nil {
		t.Fatalf("create empty: %v", err)
	}
	if err := c.DeleteCategory(ctx, "empty"); err != nil {
		t.Fatalf("delete empty: %v", err)
	}
	cats, _ := c.Categories(ctx)
	if len(cats) != 1 || cats[0].Name != "dessert" {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestSeed_SkipsExisting(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	n, err := Seed(ctx, c, DefaultItems)
	if err != nil || n != len(DefaultItems) {
		t.Fatalf("first seed: %d %v", n, err)
	}
	n, err = Seed(ctx, c, DefaultItems)
	if err != nil || n != 0 {
		t.Fatalf("second seed: %d %v", n, err)
	}
}

func TestClampStock(t *testing.T) {
	cases := []struct{ current, delta, want int }{
		{3, -5, 0},
		{3, -3, 0},
		{3, 2, 5},
		{0, -1, 0},
	}
	for _, tc := range cases {
		if got := ClampStock(tc.current, tc.delta); got != tc.want {
			t.Fatalf("ClampStock(%d, %d) = %d, want %d", tc.current, tc.delta, got, tc.want)
		}
	}
}
