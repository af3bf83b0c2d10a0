package ledgerclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-table-orderflow/internal/gateway"
	"github.com/imrishuroy/go-table-orderflow/internal/handlers"
	"github.com/imrishuroy/go-table-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-table-orderflow/internal/ledger"
	"github.com/imrishuroy/go-table-orderflow/internal/ledgerclient"
	"github.com/imrishuroy/go-table-orderflow/internal/logger"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

func newLedgerServer(t *testing.T) (*ledgerclient.Client, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	svc := orders.NewService(ledger.NewMemory(),
		orders.WithClock(func() time.Time { return now }),
		orders.WithLocation(time.FixedZone("WIB", 7*3600)),
		orders.WithLogger(logger.Discard()),
	)
	r := handlers.NewEngine(logger.Discard())
	handlers.RegisterOrderRoutes(r, "/", handlers.OrdersConfig{Backend: svc, Logger: logger.Discard()})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return ledgerclient.New(srv.URL, srv.Client()), srv
}

func exampleInput() orders.CreateOrderInput {
	return orders.CreateOrderInput{
		Table:        "5",
		CustomerName: "Budi",
		Items: []orders.ItemInput{
			{MenuID: "coffee_001", Name: "Hapiyo Latte", Category: "coffee", Quantity: 2, Price: 25000},
			{MenuID: "snack_001", Name: "Butter Croissant", Category: "snacks", Quantity: 1, Price: 20000, Notes: "warm"},
		},
	}
}

func TestClient_RoundTrip(t *testing.T) {
	c, _ := newLedgerServer(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	o, err := c.CreateOrder(ctx, exampleInput())
	require.NoError(t, err)
	assert.Equal(t, int64(70000), o.Total)
	assert.Equal(t, 3, o.ItemCount)
	assert.Equal(t, orders.StatusPending, o.Status)

	got, err := c.GetOrder(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Budi", got.CustomerName)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "warm", got.Items[1].Notes)
	assert.Equal(t, int64(20000), got.Items[1].Subtotal)

	list, err := c.ListOrders(ctx, orders.Query{Table: "5", Today: true, Status: orders.StatusPending, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated, err := c.AdvanceStatus(ctx, o.OrderID, orders.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPreparing, updated.Status)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.PreparingOrders)

	require.NoError(t, c.DeleteOrder(ctx, o.OrderID))
	_, err = c.GetOrder(ctx, o.OrderID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestClient_DomainErrorsSurvive(t *testing.T) {
	c, _ := newLedgerServer(t)
	ctx := context.Background()

	_, err := c.CreateOrder(ctx, orders.CreateOrderInput{Table: "5"})
	assert.True(t, orders.IsValidation(err), "got %v", err)

	o, err := c.CreateOrder(ctx, exampleInput())
	require.NoError(t, err)
	_, err = c.AdvanceStatus(ctx, o.OrderID, orders.StatusCompleted)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	err = c.DeleteOrder(ctx, "ORD-20260314-0000")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestClient_ForwardsIdempotencyKey(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"orderId":"ORD-20260314-0001","table":"5","total":1,"itemCount":1,"status":"pending","createdAt":"2026-03-14T03:00:00Z"}`))
	}))
	defer srv.Close()

	c := ledgerclient.New(srv.URL, nil)
	ctx := idempotency.WithKey(context.Background(), "abc")
	o, err := c.CreateOrder(ctx, orders.CreateOrderInput{Table: "5", Items: []orders.ItemInput{{MenuID: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "ORD-20260314-0001", o.OrderID)
}

func TestClient_ProtocolAndRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "health":
			http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":false,"error":"sheet locked"}`))
		}
	}))
	defer srv.Close()
	c := ledgerclient.New(srv.URL, nil)

	err := c.Health(context.Background())
	assert.ErrorIs(t, err, ledgerclient.ErrProtocol)

	_, err = c.Stats(context.Background())
	var remote *ledgerclient.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "sheet locked", remote.Message)
}

func TestClient_BehindGateway(t *testing.T) {
	c, srv := newLedgerServer(t)
	gw := gateway.New(c, gateway.WithLogger(logger.Discard()))
	ctx := context.Background()

	_, err := gw.CreateOrder(ctx, exampleInput())
	require.NoError(t, err)
	list, err := gw.ListOrders(ctx, orders.Query{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	srv.Close()
	list, stale, err := gw.ListOrdersCached(gateway.WithoutCache(ctx), orders.Query{})
	require.NoError(t, err)
	assert.True(t, stale)
	assert.Len(t, list, 1)

	_, err = gw.GetOrder(ctx, "ORD-20260314-0001")
	assert.ErrorIs(t, err, gateway.ErrUpstreamUnavailable)
}
