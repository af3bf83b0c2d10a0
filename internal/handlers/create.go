package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-table-orderflow/internal/cart"
	"github.com/imrishuroy/go-table-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
	"github.com/imrishuroy/go-table-orderflow/internal/validation"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

func (h *ordersHandler) createOrder(c *gin.Context) {
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	ctx := idempotency.WithKey(c.Request.Context(), key)

	store := h.cfg.Idempotency
	if key == "" {
		store = nil
	}
	if store != nil && !h.claim(ctx, c, store, key, req) {
		return
	}

	body, orderID, err := h.placeOrder(ctx, req)
	if err != nil {
		h.release(ctx, store, key, err.Error())
		writeError(c, h.log, err)
		return
	}
	if orderID == "" {
		h.release(ctx, store, key, fmt.Sprint(body["code"]))
		c.JSON(http.StatusOK, body)
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		writeError(c, h.log, fmt.Errorf("marshal create response: %w", err))
		return
	}
	if store != nil {
		if err := store.MarkDone(ctx, key, orderID, string(raw), http.StatusOK); err != nil {
			h.log.Warn("could not record idempotent response",
				slog.String("idempotency_key", key),
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// placeOrder runs the guard, prices the items and creates the order. A
// rejection that is not an error (an occupied table) comes back as a failure
// body with an empty order id.
func (h *ordersHandler) placeOrder(ctx context.Context, req validation.CreateOrderRequest) (gin.H, string, error) {
	table := strings.TrimSpace(req.Table.String())

	if h.cfg.Guard != nil {
		av := h.cfg.Guard.CheckAvailability(ctx, table)
		if !av.Available {
			return gin.H{
				"success":     false,
				"error":       fmt.Sprintf("table %s already has an active order", table),
				"code":        CodeTableOccupied,
				"activeOrder": av.ActiveOrder,
			}, "", nil
		}
	}

	items, err := h.orderItems(ctx, table, req.Items)
	if err != nil {
		return nil, "", err
	}

	o, err := h.cfg.Backend.CreateOrder(ctx, orders.CreateOrderInput{
		Table:        table,
		Items:        items,
		Notes:        req.Notes,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		return nil, "", err
	}
	return gin.H{
		"success":   true,
		"orderId":   o.OrderID,
		"table":     o.Table,
		"total":     o.Total,
		"itemCount": o.ItemCount,
		"status":    o.Status,
		"createdAt": o.CreatedAt,
	}, o.OrderID, nil
}

// orderItems trusts the request prices unless a catalog is configured, in
// which case the cart reconciles every line against the live menu.
func (h *ordersHandler) orderItems(ctx context.Context, table string, reqItems []validation.OrderItem) ([]orders.ItemInput, error) {
	if h.cfg.Catalog == nil {
		items := make([]orders.ItemInput, 0, len(reqItems))
		for _, it := range reqItems {
			items = append(items, orders.ItemInput{
				MenuID:   it.Ref(),
				Name:     it.Name,
				Category: it.Category,
				Quantity: it.Quantity,
				Price:    it.Price,
				Notes:    it.Notes,
			})
		}
		return items, nil
	}

	ct := cart.New(table)
	for i, it := range reqItems {
		if strings.TrimSpace(it.Ref()) == "" {
			return nil, &orders.ValidationError{
				Field:   "items",
				Message: fmt.Sprintf("line %d needs an id or menuId to be priced from the menu", i+1),
			}
		}
		ct.StageLine(it.Ref(), it.Quantity, it.Notes)
	}
	items, err := ct.Checkout(ctx, h.cfg.Catalog)
	if err != nil {
		if errors.Is(err, cart.ErrUnknownItem) || errors.Is(err, cart.ErrUnavailable) ||
			errors.Is(err, cart.ErrExceedsStock) || errors.Is(err, cart.ErrEmpty) {
			return nil, &orders.ValidationError{Field: "items", Message: err.Error(), Err: err}
		}
		return nil, fmt.Errorf("price order items: %w", err)
	}
	return items, nil
}

// claim takes ownership of key. When it returns false the response has
// already been written: a replay, an in-flight duplicate or a key reused
// for a different body.
func (h *ordersHandler) claim(ctx context.Context, c *gin.Context, store *idempotency.Store, key string, req validation.CreateOrderRequest) bool {
	canonical, err := json.Marshal(req)
	if err != nil {
		writeError(c, h.log, fmt.Errorf("fingerprint request: %w", err))
		return false
	}
	fp := idempotency.Fingerprint(canonical)

	owned, err := store.CreateIfNotExists(ctx, key, fp)
	if err != nil {
		writeError(c, h.log, fmt.Errorf("claim idempotency key: %w", err))
		return false
	}
	if owned {
		return true
	}

	rec, err := store.Get(ctx, key)
	if err != nil {
		writeError(c, h.log, fmt.Errorf("read idempotency key: %w", err))
		return false
	}
	switch {
	case rec == nil:
		fail(c, http.StatusConflict, "a request with this Idempotency-Key is in progress", CodeInProgress, nil)
	case rec.Fingerprint != fp:
		fail(c, http.StatusConflict, "Idempotency-Key was already used for a different request", CodeIdempotencyMismatch, nil)
	case rec.Status == idempotency.StatusDone && rec.ResponseBody != "":
		status := rec.ResponseStatus
		if status == 0 {
			status = http.StatusOK
		}
		h.log.Info("replaying idempotent create",
			slog.String("idempotency_key", key),
			slog.String("order_id", rec.OrderID),
		)
		c.Header(headerReplayed, "true")
		c.Data(status, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	default:
		fail(c, http.StatusConflict, "a request with this Idempotency-Key is in progress", CodeInProgress, gin.H{"orderId": rec.OrderID})
	}
	return false
}

// release marks a claimed key FAILED so the client may retry with it.
func (h *ordersHandler) release(ctx context.Context, store *idempotency.Store, key, note string) {
	if store == nil {
		return
	}
	if err := store.MarkFailed(ctx, key, note); err != nil {
		h.log.Warn("could not release idempotency key",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()),
		)
	}
}
