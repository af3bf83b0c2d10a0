package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-table-orderflow/internal/gateway"
	"github.com/imrishuroy/go-table-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-table-orderflow/internal/menu"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
	"github.com/imrishuroy/go-table-orderflow/internal/validation"
)

// OrdersConfig groups dependencies for the action-style order endpoint.
// Only Backend is required.
type OrdersConfig struct {
	Backend orders.Backend
	// Guard, when set, rejects createOrder for occupied tables and serves checkTable.
	Guard *orders.Guard
	// Catalog, when set, prices createOrder items from the live menu. Calls are
	// bounded by CatalogReadTimeout and CatalogWriteTimeout (zero = defaults).
	Catalog             menu.Catalog
	CatalogReadTimeout  time.Duration
	CatalogWriteTimeout time.Duration
	// Idempotency, when set, de-duplicates createOrder by Idempotency-Key.
	Idempotency *idempotency.Store
	Logger      *slog.Logger
	Now         func() time.Time
}

// cachedReader is implemented by gateway.Gateway.
type cachedReader interface {
	ListOrdersCached(ctx context.Context, q orders.Query) ([]orders.Order, bool, error)
	StatsCached(ctx context.Context) (orders.Stats, bool, error)
}

type ordersHandler struct {
	cfg      OrdersConfig
	validate *validatorv10.Validate
	log      *slog.Logger
}

// RegisterOrderRoutes mounts GET and POST ?action=... at path.
func RegisterOrderRoutes(r gin.IRouter, path string, cfg OrdersConfig) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Catalog = boundCatalog(cfg.Catalog, cfg.CatalogReadTimeout, cfg.CatalogWriteTimeout)
	h := &ordersHandler{cfg: cfg, validate: validation.New(), log: cfg.Logger}
	r.GET(path, h.get)
	r.POST(path, h.post)
}

func (h *ordersHandler) get(c *gin.Context) {
	switch action := c.DefaultQuery("action", "getOrders"); action {
	case "getOrders":
		h.getOrders(c)
	case "getOrdersByTable":
		h.getOrdersByTable(c)
	case "getOrderById":
		h.getOrderByID(c)
	case "getStats":
		h.getStats(c)
	case "health":
		h.health(c)
	case "checkTable":
		if h.cfg.Guard == nil {
			h.invalidAction(c, action)
			return
		}
		h.checkTable(c)
	default:
		h.invalidAction(c, action)
	}
}

func (h *ordersHandler) post(c *gin.Context) {
	switch action := c.Query("action"); action {
	case "createOrder":
		h.createOrder(c)
	case "updateOrderStatus":
		h.updateOrderStatus(c)
	case "deleteOrder":
		h.deleteOrder(c)
	default:
		h.invalidAction(c, action)
	}
}

func (h *ordersHandler) invalidAction(c *gin.Context, action string) {
	available := "getOrders, getOrdersByTable, getOrderById, getStats, health"
	if h.cfg.Guard != nil {
		available += ", checkTable"
	}
	if c.Request.Method == http.MethodPost {
		available = "createOrder, updateOrderStatus, deleteOrder"
	}
	fail(c, http.StatusBadRequest, fmt.Sprintf("invalid action %q. Available: %s", action, available), "", nil)
}

// readContext honours noCache=true.
func readContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if c.Query("noCache") == "true" {
		ctx = gateway.WithoutCache(ctx)
	}
	return ctx
}

func parseQuery(c *gin.Context) (orders.Query, error) {
	q := orders.Query{
		Table:  strings.TrimSpace(c.Query("table")),
		Status: orders.Status(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
	switch strings.ToLower(c.Query("today")) {
	case "true", "1", "yes":
		q.Today = true
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, &orders.ValidationError{Field: "limit", Message: "limit must be a non-negative number"}
		}
		q.Limit = n
	}
	return q, nil
}

func (h *ordersHandler) listOrders(ctx context.Context, q orders.Query) ([]orders.Order, bool, error) {
	if cr, ok := h.cfg.Backend.(cachedReader); ok {
		return cr.ListOrdersCached(ctx, q)
	}
	list, err := h.cfg.Backend.ListOrders(ctx, q)
	return list, false, err
}

func listBody(list []orders.Order, stale bool) gin.H {
	if list == nil {
		list = []orders.Order{}
	}
	body := gin.H{"orders": list, "count": len(list)}
	if stale {
		body["stale"] = true
	}
	return body
}

func (h *ordersHandler) getOrders(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	list, stale, err := h.listOrders(readContext(c), q)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, listBody(list, stale))
}

// getOrdersByTable lists today's orders for one table.
func (h *ordersHandler) getOrdersByTable(c *gin.Context) {
	table := strings.TrimSpace(c.Query("table"))
	if table == "" {
		writeError(c, h.log, &orders.ValidationError{Field: "table", Message: "table is required"})
		return
	}
	list, stale, err := h.listOrders(readContext(c), orders.Query{Table: table, Today: true})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, listBody(list, stale))
}

func (h *ordersHandler) getOrderByID(c *gin.Context) {
	o, err := h.cfg.Backend.GetOrder(c.Request.Context(), c.Query("orderId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, gin.H{"order": o})
}

func (h *ordersHandler) getStats(c *gin.Context) {
	ctx := readContext(c)
	var (
		st    orders.Stats
		stale bool
		err   error
	)
	if cr, isCached := h.cfg.Backend.(cachedReader); isCached {
		st, stale, err = cr.StatsCached(ctx)
	} else {
		st, err = h.cfg.Backend.Stats(ctx)
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	body := gin.H{"stats": st}
	if stale {
		body["stale"] = true
	}
	ok(c, body)
}

func (h *ordersHandler) health(c *gin.Context) {
	if err := h.cfg.Backend.Health(c.Request.Context()); err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, gin.H{"status": "ok", "timestamp": h.cfg.Now().UTC().Format(time.RFC3339)})
}

func (h *ordersHandler) checkTable(c *gin.Context) {
	table := strings.TrimSpace(c.Query("table"))
	if table == "" {
		writeError(c, h.log, &orders.ValidationError{Field: "table", Message: "table is required"})
		return
	}
	av := h.cfg.Guard.CheckAvailability(c.Request.Context(), table)
	body := gin.H{"table": table, "available": av.Available}
	if av.ActiveOrder != nil {
		body["activeOrder"] = av.ActiveOrder
	}
	if av.Error != "" {
		body["warning"] = av.Error
	}
	ok(c, body)
}

func (h *ordersHandler) updateOrderStatus(c *gin.Context) {
	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	o, err := h.cfg.Backend.AdvanceStatus(c.Request.Context(), req.OrderID, orders.Status(req.Status))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, gin.H{
		"orderId":     o.OrderID,
		"status":      o.Status,
		"updatedAt":   o.UpdatedAt,
		"completedAt": o.CompletedAt,
	})
}

func (h *ordersHandler) deleteOrder(c *gin.Context) {
	var req validation.DeleteOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	if err := h.cfg.Backend.DeleteOrder(c.Request.Context(), req.OrderID); err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, gin.H{"orderId": req.OrderID, "message": "Order deleted successfully"})
}
