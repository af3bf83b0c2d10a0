package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFlexString_AcceptsStringAndNumber(t *testing.T) {
	cases := map[string]string{
		`{"table":"5"}`:  "5",
		`{"table":5}`:    "5",
		`{"table":12.0}`: "12.0",
		`{"table":null}`: "",
	}
	for body, want := range cases {
		var req CreateOrderRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("%s: unexpected error %v", body, err)
		}
		if string(req.Table) != want {
			t.Fatalf("%s: expected %q, got %q", body, want, req.Table)
		}
	}

	var req CreateOrderRequest
	if err := json.Unmarshal([]byte(`{"table":{"n":1}}`), &req); err == nil {
		t.Fatal("expected error for object table")
	}
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()

	req := CreateOrderRequest{
		Table: "5",
		Items: []OrderItem{
			{ID: "coffee_001", Name: "Hapiyo Latte", Quantity: 2, Price: 25000},
			{MenuID: "snack_001", Name: "Butter Croissant", Quantity: 1, Price: 20000},
		},
		CustomerName: "Guest",
	}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_MissingFields(t *testing.T) {
	v := New()

	err := v.Struct(CreateOrderRequest{Table: "  "})
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	fields := FieldErrors(err)
	if _, ok := fields["table"]; !ok {
		t.Fatalf("expected table error, got %v", fields)
	}
	if _, ok := fields["items"]; !ok {
		t.Fatalf("expected items error, got %v", fields)
	}
}

func TestCreateOrderRequest_ItemRules(t *testing.T) {
	v := New()

	err := v.Struct(CreateOrderRequest{Table: "5", Items: []OrderItem{{Name: "no id"}, {ID: "x", Quantity: -1}}})
	if err == nil {
		t.Fatal("expected error")
	}
	fields := FieldErrors(err)
	if _, ok := fields["items[0].id"]; ok {
		t.Fatalf("an off-menu line needs no id: %v", fields)
	}
	if fields["items[1].quantity"] != "must not be negative" {
		t.Fatalf("unexpected quantity message: %v", fields)
	}

	// Off-menu lines and a menu id repeated with different notes are both valid.
	err = v.Struct(CreateOrderRequest{Table: "5", Items: []OrderItem{
		{Name: "Custom", Quantity: 1, Price: 10000},
		{ID: "a", Notes: "hot"},
		{MenuID: "a", Notes: "iced"},
	}})
	if err != nil {
		t.Fatalf("expected valid request, got %v", FieldErrors(err))
	}
}

func TestUpdateStatusRequest(t *testing.T) {
	v := New()
	if err := v.Struct(UpdateStatusRequest{OrderID: "ORD-1", Status: "ready"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	err := v.Struct(UpdateStatusRequest{OrderID: "ORD-1", Status: "served"})
	if err == nil {
		t.Fatal("expected invalid status")
	}
	if got := FieldErrors(err)["status"]; !strings.HasPrefix(got, "must be one of") {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMenuRequests(t *testing.T) {
	v := New()
	price := int64(25000)
	if err := v.Struct(CreateMenuRequest{ID: "coffee_009", Category: "coffee", Name: "Kopi", Price: &price}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := v.Struct(CreateMenuRequest{ID: "coffee_009", Category: "coffee", Name: "Kopi"}); err == nil {
		t.Fatal("expected missing price error")
	}
	neg := -1
	if err := v.Struct(UpdateMenuRequest{Stock: &neg}); err == nil {
		t.Fatal("expected negative stock error")
	}
	if err := v.Struct(StockRequest{ID: "a", Category: "coffee"}); err == nil {
		t.Fatal("expected missing quantity error")
	}
	if err := v.Struct(CategoryRequest{Name: "   "}); err == nil {
		t.Fatal("expected blank category error")
	}
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()

	run := func(body string) (*httptest.ResponseRecorder, error) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var req CreateOrderRequest
		return w, BindAndValidate(c, &req, v)
	}

	w, err := run(`{"table":`)
	if err == nil || w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d %v", w.Code, err)
	}

	w, err = run(`{"table":5,"items":[]}`)
	if err == nil || w.Code != http.StatusOK {
		t.Fatalf("expected 200 envelope for rule failure, got %d %v", w.Code, err)
	}
	var resp struct {
		Success bool              `json:"success"`
		Code    string            `json:"code"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Code != CodeValidation || resp.Fields["items"] == "" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}

	_, err = run(`{"table":"5","items":[{"id":"coffee_001","quantity":2,"price":25000}]}`)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
