// internal/models/product.go
package models

import "time"

// Product is the canonical catalog entity that free-text references
// resolve against. It is owned by the data store; this core only reads it.
type Product struct {
	ID             int64     `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	UnitCostCents  int64     `json:"unitCostCents"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// StockLevel is one row of the stock_current view.
type StockLevel struct {
	ProductID int64  `json:"productId"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	StockQty  int64  `json:"stockQty"`
}
