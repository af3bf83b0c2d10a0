package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString accepts a JSON string or number. QR codes and older clients send
// table numbers both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// OrderItem is one requested line. Either id or menuId names the menu item;
// both may be empty for an off-menu line.
type OrderItem struct {
	ID       string `json:"id"`
	MenuID   string `json:"menuId"`
	Name     string `json:"name" validate:"max=120"`
	Category string `json:"category"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Price    int64  `json:"price" validate:"gte=0"`
	Notes    string `json:"notes" validate:"max=200"`
}

// Ref returns the menu id, preferring menuId over id.
func (i OrderItem) Ref() string {
	if i.MenuID != "" {
		return i.MenuID
	}
	return i.ID
}

// CreateOrderRequest is the createOrder body.
type CreateOrderRequest struct {
	Table        FlexString  `json:"table" validate:"required"`
	Items        []OrderItem `json:"items" validate:"required,min=1,dive"`
	Notes        string      `json:"notes" validate:"max=500"`
	CustomerName string      `json:"customerName" validate:"max=80"`
}

// UpdateStatusRequest is the updateOrderStatus body.
type UpdateStatusRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=pending preparing ready completed cancelled"`
}

// DeleteOrderRequest is the deleteOrder body.
type DeleteOrderRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// CreateMenuRequest is the POST /api/menu body. Available defaults to true.
type CreateMenuRequest struct {
	ID          string `json:"id" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Price       *int64 `json:"price" validate:"required,gte=0"`
	Description string `json:"description"`
	Image       string `json:"image" validate:"omitempty,url"`
	Available   *bool  `json:"available"`
	Stock       int    `json:"stock" validate:"gte=0"`
}

// UpdateMenuRequest is the PUT /api/menu/:id body. Absent fields are left alone.
type UpdateMenuRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Category    *string `json:"category"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Description *string `json:"description"`
	Image       *string `json:"image" validate:"omitempty,url"`
	Available   *bool   `json:"available"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
}

// StockRequest is a single signed stock adjustment.
type StockRequest struct {
	ID       string `json:"id" validate:"required"`
	Category string `json:"category" validate:"required"`
	Quantity *int   `json:"quantity" validate:"required"`
}

// BulkStockRequest adjusts several items at once.
type BulkStockRequest struct {
	Updates []StockRequest `json:"updates" validate:"required,dive"`
}

// CategoryRequest creates a category.
type CategoryRequest struct {
	Name string `json:"name" validate:"required"`
}
