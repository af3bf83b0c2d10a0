package menu

import (
	"context"
	"errors"
)

// DefaultItems is the starter menu loaded by Seed.
var DefaultItems = []Item{
	{ID: "coffee_001", Category: "coffee", Name: "Hapiyo Latte", Price: 25000, Description: "Smooth latte with the house espresso blend", Available: true, Stock: 50},
	{ID: "coffee_002", Category: "coffee", Name: "Cappuccino", Price: 23000, Description: "Classic cappuccino with a thick foam", Available: true, Stock: 50},
	{ID: "coffee_003", Category: "coffee", Name: "Americano", Price: 20000, Description: "Espresso topped with hot water", Available: true, Stock: 50},
	{ID: "coffee_004", Category: "coffee", Name: "Espresso", Price: 18000, Description: "A single intense shot", Available: true, Stock: 50},
	{ID: "non_coffee_001", Category: "non-coffee", Name: "Chocolate Hazelnut", Price: 28000, Description: "Dark chocolate with hazelnut", Available: true, Stock: 30},
	{ID: "non_coffee_002", Category: "non-coffee", Name: "Matcha Latte", Price: 26000, Description: "Japanese matcha with milk", Available: true, Stock: 30},
	{ID: "non_coffee_003", Category: "non-coffee", Name: "Thai Tea", Price: 22000, Description: "Thai tea with milk", Available: true, Stock: 30},
	{ID: "snack_001", Category: "snacks", Name: "Butter Croissant", Price: 20000, Description: "Fresh butter croissant", Available: true, Stock: 20},
	{ID: "snack_002", Category: "snacks", Name: "Chocolate Croissant", Price: 23000, Description: "Croissant with chocolate filling", Available: true, Stock: 15},
}

// Seed creates every item in items that does not exist yet and returns how many were added.
func Seed(ctx context.Context, c Catalog, items []Item) (int, error) {
	added := 0
	for _, it := range items {
		_, err := c.Create(ctx, it)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
