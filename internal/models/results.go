// internal/models/results.go
package models

// SaleItem is one fully priced line of a sale, ready for the store.
type SaleItem struct {
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

// MutationResult is what a committed business action reports back:
// the created ids plus the post-state KPIs re-read after commit.
type MutationResult struct {
	Operation         Operation    `json:"operation"`
	SaleID            int64        `json:"saleId,omitempty"`
	SaleNumber        string       `json:"saleNumber,omitempty"`
	ExpenseID         int64        `json:"expenseId,omitempty"`
	ProductID         int64        `json:"productId,omitempty"`
	SKU               string       `json:"sku,omitempty"`
	MovementIDs       []int64      `json:"movementIds,omitempty"`
	TotalCents        int64        `json:"totalCents,omitempty"`
	CancelledCents    int64        `json:"cancelledCents,omitempty"`
	CancelledQty      int64        `json:"cancelledQty,omitempty"`
	Items             []SaleItem   `json:"items,omitempty"`
	StockAfter        []StockLevel `json:"stockAfter,omitempty"`
	RevenueCentsAfter int64        `json:"revenueCentsAfter"`
	ProfitCentsAfter  int64        `json:"profitCentsAfter"`
}
