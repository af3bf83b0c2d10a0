package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-table-orderflow/internal/gateway"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

// Codes used only at the HTTP layer, next to the orders.Code* values.
const (
	CodeTableOccupied       = "table_occupied"
	CodeInProgress          = "in_progress"
	CodeIdempotencyMismatch = "idempotency_mismatch"
	CodeUpstreamTimeout     = "upstream_timeout"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternal            = "internal"
)

// ok writes a success envelope merged with fields.
func ok(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// fail writes a failure envelope. An empty code is omitted.
func fail(c *gin.Context, status int, msg, code string, extra gin.H) {
	body := gin.H{"success": false, "error": msg}
	if code != "" {
		body["code"] = code
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// writeError maps an order-path error onto the envelope. Domain rejections
// are ordinary 200 responses; upstream failures are 502/504.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	if code := orders.ErrorCode(err); code != "" {
		var extra gin.H
		var ve *orders.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			extra = gin.H{"field": ve.Field}
		}
		fail(c, http.StatusOK, err.Error(), code, extra)
		return
	}
	switch {
	case errors.Is(err, gateway.ErrUpstreamTimeout):
		log.Warn("upstream timeout", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		fail(c, http.StatusGatewayTimeout, "order service timed out", CodeUpstreamTimeout, nil)
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		log.Warn("upstream unavailable", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		fail(c, http.StatusBadGateway, "order service unavailable", CodeUpstreamUnavailable, nil)
	case errors.Is(err, context.Canceled):
		fail(c, http.StatusServiceUnavailable, "request cancelled", "", nil)
	default:
		log.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, "internal error", CodeInternal, nil)
	}
}
