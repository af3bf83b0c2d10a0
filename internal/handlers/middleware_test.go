package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-table-orderflow/internal/logger"
)

func TestRequestID(t *testing.T) {
	r := newRouter(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": c.GetString(ctxRequestID)}) })
	})

	res := do(t, r, http.MethodGet, "/ping", "")
	minted := res.Header.Get(HeaderRequestID)
	assert.Len(t, minted, 36)
	assert.Equal(t, minted, res.Body["id"])

	res = do(t, r, http.MethodGet, "/ping", "", HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", res.Header.Get(HeaderRequestID))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger.NewWithWriter(&buf, "api", "info")))
	r.GET("/api/orders", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do(t, r, http.MethodGet, "/api/orders?action=getStats", "", HeaderRequestID, "req-7")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, float64(http.StatusNoContent), line["status"])
	assert.Equal(t, "getStats", line["action"])
	assert.Equal(t, "req-7", line["request_id"])
	assert.Equal(t, "api", line["service"])
}
