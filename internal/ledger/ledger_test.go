package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-table-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

var base = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newDynamo(t *testing.T) (*DynamoStore, *awstest.FakeDynamoDB) {
	t.Helper()
	fake := awstest.NewFakeDynamoDB()
	fake.CreateTable("orders", "order_id", "")
	fake.CreateTable("order_items", "order_id", "seq")
	return NewDynamoStore(fake, "orders", "order_items"), fake
}

func ledgers(t *testing.T) map[string]func() orders.Ledger {
	return map[string]func() orders.Ledger{
		"memory": func() orders.Ledger { return NewMemory() },
		"dynamodb": func() orders.Ledger {
			s, _ := newDynamo(t)
			return s
		},
	}
}

func sampleOrder(id, table string, status orders.Status, created time.Time) (orders.Order, []orders.LineItem) {
	o := orders.Order{
		OrderID:      id,
		Table:        table,
		CustomerName: "Guest",
		Status:       status,
		Total:        70000,
		ItemCount:    3,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	items := []orders.LineItem{
		{ItemID: orders.LineItemID(id, 1), OrderID: id, Seq: 1, MenuID: "coffee_001", Name: "Kopi Susu", Category: "coffee", Quantity: 2, UnitPrice: 25000, Subtotal: 50000, CreatedAt: created},
		{ItemID: orders.LineItemID(id, 2), OrderID: id, Seq: 2, MenuID: "snack_001", Name: "Pisang Goreng", Category: "snack", Quantity: 1, UnitPrice: 20000, Subtotal: 20000, CreatedAt: created},
	}
	return o, items
}

func TestLedger_AppendAndGet(t *testing.T) {
	for name, mk := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := mk()
			o, items := sampleOrder("ORD-20260314-0001", "5", orders.StatusPending, base)
			require.NoError(t, l.Append(ctx, o, items))

			got, gotItems, err := l.Get(ctx, o.OrderID)
			require.NoError(t, err)
			assert.Equal(t, "5", got.Table)
			assert.Equal(t, int64(70000), got.Total)
			assert.True(t, got.CreatedAt.Equal(base))
			assert.Empty(t, got.CompletedAt)
			require.Len(t, gotItems, 2)
			assert.Equal(t, "coffee_001", gotItems[0].MenuID)
			assert.Equal(t, "snack_001", gotItems[1].MenuID)

			err = l.Append(ctx, o, items)
			assert.ErrorIs(t, err, orders.ErrDuplicateID)
		})
	}
}

func TestLedger_GetMissing(t *testing.T) {
	for name, mk := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := mk().Get(context.Background(), "ORD-nope")
			assert.ErrorIs(t, err, orders.ErrNotFound)
		})
	}
}

func TestLedger_QueryFilters(t *testing.T) {
	for name, mk := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := mk()
			seed := []struct {
				id, table string
				status    orders.Status
				created   time.Time
			}{
				{"A", "5", orders.StatusPending, base},
				{"B", "5", orders.StatusCompleted, base.Add(time.Hour)},
				{"C", "12", orders.StatusPending, base.Add(-24 * time.Hour)},
			}
			for _, s := range seed {
				o, items := sampleOrder(s.id, s.table, s.status, s.created)
				require.NoError(t, l.Append(ctx, o, items))
			}

			all, err := l.Query(ctx, orders.Filter{})
			require.NoError(t, err)
			assert.Len(t, all, 3)

			byTable, err := l.Query(ctx, orders.Filter{Table: "5"})
			require.NoError(t, err)
			assert.Len(t, byTable, 2)

			pending5, err := l.Query(ctx, orders.Filter{Table: "5", Status: orders.StatusPending})
			require.NoError(t, err)
			require.Len(t, pending5, 1)
			assert.Equal(t, "A", pending5[0].OrderID)

			day := base.Truncate(24 * time.Hour)
			today, err := l.Query(ctx, orders.Filter{From: day, To: day.Add(24 * time.Hour)})
			require.NoError(t, err)
			assert.Len(t, today, 2)
		})
	}
}

func TestLedger_UpdateStatus(t *testing.T) {
	for name, mk := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := mk()
			o, items := sampleOrder("ORD-1", "5", orders.StatusReady, base)
			require.NoError(t, l.Append(ctx, o, items))

			later := base.Add(10 * time.Minute)
			err := l.UpdateStatus(ctx, orders.StatusUpdate{
				OrderID:     "ORD-1",
				From:        orders.StatusReady,
				To:          orders.StatusCompleted,
				UpdatedAt:   later,
				CompletedAt: later.Format(time.RFC3339Nano),
			})
			require.NoError(t, err)

			got, _, err := l.Get(ctx, "ORD-1")
			require.NoError(t, err)
			assert.Equal(t, orders.StatusCompleted, got.Status)
			assert.True(t, got.UpdatedAt.Equal(later))
			assert.Equal(t, later.Format(time.RFC3339Nano), got.CompletedAt)

			err = l.UpdateStatus(ctx, orders.StatusUpdate{OrderID: "ORD-1", From: orders.StatusReady, To: orders.StatusCompleted, UpdatedAt: later})
			assert.ErrorIs(t, err, orders.ErrStatusConflict)

			err = l.UpdateStatus(ctx, orders.StatusUpdate{OrderID: "ORD-2", From: orders.StatusPending, To: orders.StatusPreparing, UpdatedAt: later})
			assert.ErrorIs(t, err, orders.ErrNotFound)
		})
	}
}

func TestLedger_Delete(t *testing.T) {
	for name, mk := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := mk()
			o, items := sampleOrder("ORD-1", "5", orders.StatusPending, base)
			require.NoError(t, l.Append(ctx, o, items))

			require.NoError(t, l.Delete(ctx, "ORD-1"))
			_, _, err := l.Get(ctx, "ORD-1")
			assert.ErrorIs(t, err, orders.ErrNotFound)
			assert.ErrorIs(t, l.Delete(ctx, "ORD-1"), orders.ErrNotFound)
		})
	}
}

func TestDynamoStore_AppendWritesItemsAtomically(t *testing.T) {
	ctx := context.Background()
	s, fake := newDynamo(t)
	o, items := sampleOrder("ORD-1", "5", orders.StatusPending, base)
	require.NoError(t, s.Append(ctx, o, items))
	assert.Len(t, fake.Items("order_items"), 2)

	// A duplicate id must not leave extra item rows behind.
	o2, items2 := sampleOrder("ORD-1", "7", orders.StatusPending, base)
	items2 = append(items2, orders.LineItem{ItemID: orders.LineItemID("ORD-1", 3), OrderID: "ORD-1", Seq: 3, Quantity: 1})
	assert.ErrorIs(t, s.Append(ctx, o2, items2), orders.ErrDuplicateID)
	assert.Len(t, fake.Items("order_items"), 2)
	assert.Equal(t, 2, fake.Calls("TransactWriteItems"))
}

func TestDynamoStore_AppendRejectsOversizedOrder(t *testing.T) {
	s, fake := newDynamo(t)
	o, _ := sampleOrder("ORD-1", "5", orders.StatusPending, base)
	items := make([]orders.LineItem, maxTransactItems)
	for i := range items {
		items[i] = orders.LineItem{ItemID: orders.LineItemID("ORD-1", i+1), OrderID: "ORD-1", Seq: i + 1, Quantity: 1}
	}

	err := s.Append(context.Background(), o, items)
	assert.True(t, orders.IsValidation(err))
	assert.Zero(t, fake.TotalCalls())
}

func TestDynamoStore_DeleteRemovesItems(t *testing.T) {
	ctx := context.Background()
	s, fake := newDynamo(t)
	o, items := sampleOrder("ORD-1", "5", orders.StatusPending, base)
	require.NoError(t, s.Append(ctx, o, items))
	other, otherItems := sampleOrder("ORD-2", "6", orders.StatusPending, base)
	require.NoError(t, s.Append(ctx, other, otherItems))

	require.NoError(t, s.Delete(ctx, "ORD-1"))
	assert.Len(t, fake.Items("orders"), 1)
	assert.Len(t, fake.Items("order_items"), 2)
}

func TestDynamoStore_ScanErrorIsWrapped(t *testing.T) {
	s, fake := newDynamo(t)
	boom := errors.New("throttled")
	fake.FailWith("Scan", boom)

	_, err := s.Query(context.Background(), orders.Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDynamoStore_Ping(t *testing.T) {
	s, fake := newDynamo(t)
	require.NoError(t, s.Ping(context.Background()))

	fake.FailWith("GetItem", errors.New("unreachable"))
	assert.Error(t, s.Ping(context.Background()))
}
