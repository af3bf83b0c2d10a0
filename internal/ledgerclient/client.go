// Package ledgerclient speaks the action-style ledger protocol over HTTP so a
// gateway can front a ledger service running elsewhere.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/imrishuroy/go-table-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

// ErrProtocol means the ledger answered with something that is not a protocol envelope.
var ErrProtocol = errors.New("unexpected ledger response")

// RemoteError is a failure reported by the ledger that maps to no domain error.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return "ledger: " + e.Message
	}
	return fmt.Sprintf("ledger: %s (%s)", e.Message, e.Code)
}

// Client implements orders.Backend against a remote ledger service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the ledger at baseURL. A nil httpClient uses one
// without its own timeout; callers bound requests through ctx.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

var _ orders.Backend = (*Client)(nil)

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type itemPayload struct {
	MenuID   string `json:"menuId"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Notes    string `json:"notes,omitempty"`
}

type createPayload struct {
	Table        string        `json:"table"`
	Items        []itemPayload `json:"items"`
	Notes        string        `json:"notes,omitempty"`
	CustomerName string        `json:"customerName,omitempty"`
}

type createResponse struct {
	envelope
	OrderID   string        `json:"orderId"`
	Table     string        `json:"table"`
	Total     int64         `json:"total"`
	ItemCount int           `json:"itemCount"`
	Status    orders.Status `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (c *Client) CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*orders.Order, error) {
	p := createPayload{Table: in.Table, Notes: in.Notes, CustomerName: in.CustomerName}
	for _, it := range in.Items {
		p.Items = append(p.Items, itemPayload{
			MenuID:   it.MenuID,
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Price:    it.Price,
			Notes:    it.Notes,
		})
	}
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "createOrder", nil, p, &resp); err != nil {
		return nil, err
	}
	return &orders.Order{
		OrderID:      resp.OrderID,
		Table:        resp.Table,
		CustomerName: in.CustomerName,
		Status:       resp.Status,
		Total:        resp.Total,
		ItemCount:    resp.ItemCount,
		Notes:        in.Notes,
		CreatedAt:    resp.CreatedAt,
		UpdatedAt:    resp.CreatedAt,
	}, nil
}

type statusResponse struct {
	envelope
	OrderID     string        `json:"orderId"`
	Status      orders.Status `json:"status"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	CompletedAt string        `json:"completedAt"`
}

func (c *Client) AdvanceStatus(ctx context.Context, orderID string, status orders.Status) (*orders.Order, error) {
	body := map[string]string{"orderId": orderID, "status": string(status)}
	var resp statusResponse
	if err := c.do(ctx, http.MethodPost, "updateOrderStatus", nil, body, &resp); err != nil {
		return nil, err
	}
	return &orders.Order{
		OrderID:     resp.OrderID,
		Status:      resp.Status,
		UpdatedAt:   resp.UpdatedAt,
		CompletedAt: resp.CompletedAt,
	}, nil
}

func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	var resp envelope
	return c.do(ctx, http.MethodPost, "deleteOrder", nil, map[string]string{"orderId": orderID}, &resp)
}

type orderResponse struct {
	envelope
	Order orders.Order `json:"order"`
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, "getOrderById", url.Values{"orderId": {orderID}}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

type listResponse struct {
	envelope
	Orders []orders.Order `json:"orders"`
	Count  int            `json:"count"`
}

func (c *Client) ListOrders(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	params := url.Values{}
	if q.Table != "" {
		params.Set("table", q.Table)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Today {
		params.Set("today", "true")
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "getOrders", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

type statsResponse struct {
	envelope
	Stats orders.Stats `json:"stats"`
}

func (c *Client) Stats(ctx context.Context) (orders.Stats, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodGet, "getStats", nil, nil, &resp); err != nil {
		return orders.Stats{}, err
	}
	return resp.Stats, nil
}

func (c *Client) Health(ctx context.Context) error {
	var resp envelope
	return c.do(ctx, http.MethodGet, "health", nil, nil, &resp)
}

// failure lets do read the envelope out of any response type.
type failure interface {
	failed() (bool, string, string)
}

func (e *envelope) failed() (bool, string, string) { return !e.Success, e.Code, e.Error }

func (c *Client) do(ctx context.Context, method, action string, params url.Values, body any, out failure) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse ledger url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("action", action)
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", action, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := idempotency.KeyFrom(ctx); key != "" && method == http.MethodPost {
		req.Header.Set("Idempotency-Key", key)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", action, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s returned HTTP %d: %v", ErrProtocol, action, res.StatusCode, err)
	}

	failed, code, msg := out.failed()
	if !failed {
		return nil
	}
	if derr := orders.ErrorFromCode(code, msg); derr != nil {
		return derr
	}
	return &RemoteError{Code: code, Message: msg}
}
