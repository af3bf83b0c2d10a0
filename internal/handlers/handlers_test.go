package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-table-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/go-table-orderflow/internal/ledger"
	"github.com/imrishuroy/go-table-orderflow/internal/logger"
	"github.com/imrishuroy/go-table-orderflow/internal/menu"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	testNow = time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	jakarta = time.FixedZone("WIB", 7*3600)
)

func newService() *orders.Service {
	return orders.NewService(ledger.NewMemory(),
		orders.WithClock(func() time.Time { return testNow }),
		orders.WithLocation(jakarta),
		orders.WithLogger(logger.Discard()),
	)
}

func newCatalog(t *testing.T) *menu.DynamoCatalog {
	t.Helper()
	fake := awstest.NewFakeDynamoDB()
	fake.CreateTable("menu", "category", "id")
	fake.CreateTable("menu_categories", "name", "")
	return menu.NewDynamoCatalog(fake, "menu", "menu_categories", logger.Discard())
}

func newRouter(register func(r *gin.Engine)) *gin.Engine {
	r := NewEngine(logger.Discard())
	register(r)
	return r
}

type response struct {
	Code   int
	Header http.Header
	Body   map[string]any
	Raw    string
}

func do(t *testing.T, r http.Handler, method, target, body string, headers ...string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := response{Code: w.Code, Header: w.Header(), Raw: w.Body.String()}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp.Body), "body: %s", w.Body.String())
	}
	return resp
}

const exampleOrder = `{
	"table": 5,
	"customerName": "Budi",
	"items": [
		{"id": "coffee_001", "name": "Hapiyo Latte", "category": "coffee", "quantity": 2, "price": 25000},
		{"menuId": "snack_001", "name": "Butter Croissant", "category": "snacks", "quantity": 1, "price": 20000}
	]
}`
