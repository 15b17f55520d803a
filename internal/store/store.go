// internal/store/store.go
package store

import (
	"context"
	"time"

	"pos-assistant/internal/models"
)

// ==========================
// INPUTS
// ==========================

// SaleItemInput is one resolved sale line. UnitPriceCents overrides the
// catalog price when the user quoted one.
type SaleItemInput struct {
	ProductID      int64
	Quantity       int64
	UnitPriceCents *int64
}

type SaleInput struct {
	Items        []SaleItemInput
	Status       string
	CustomerName string
}

type ExpenseInput struct {
	Date        string
	Category    string
	Description string
	AmountCents int64
	Currency    string
}

type ProductInput struct {
	SKU            string
	Name           string
	Description    string
	UnitPriceCents int64
	UnitCostCents  int64
}

type StockInput struct {
	ProductID    int64
	Quantity     int64
	MovementType string
	Reason       string
}

// ==========================
// RESULTS
// ==========================

type SaleResult struct {
	SaleID       int64
	SaleNumber   string
	TotalCents   int64
	Items        []models.SaleItem
	RevenueCents int64
	ProfitCents  int64
}

type ExpenseResult struct {
	ExpenseID   int64
	AmountCents int64
	ProfitCents int64
}

type ProductResult struct {
	ProductID int64
	SKU       string
}

type StockResult struct {
	MovementID int64
	ProductID  int64
	StockQty   int64
}

type CancelSaleResult struct {
	SaleNumber     string
	CancelledCents int64
	RevenueCents   int64
	ProfitCents    int64
}

type CancelExpenseResult struct {
	Description    string
	CancelledCents int64
	ProfitCents    int64
}

type CancelStockResult struct {
	ProductName  string
	SKU          string
	CancelledQty int64
	StockQty     int64
}

// ==========================
// LAST OPERATIONS
// ==========================

type LastSale struct {
	ID         int64
	SaleNumber string
	TotalCents int64
	Status     string
	CreatedAt  time.Time
}

type LastExpense struct {
	ID          int64
	Description string
	AmountCents int64
	Category    string
	ExpenseDate string
	CreatedAt   time.Time
}

type LastStockMovement struct {
	ID           int64
	ProductID    int64
	ProductName  string
	SKU          string
	Quantity     int64
	MovementType string
	Reason       string
	CreatedAt    time.Time
}

const (
	LastOpSale    = "SALE"
	LastOpExpense = "EXPENSE"
	LastOpStock   = "STOCK"
)

// LastOperation identifies the most recent mutation of any kind. Exactly
// one of the payload pointers is set, matching Type.
type LastOperation struct {
	Type     string
	Sale     *LastSale
	Expense  *LastExpense
	Movement *LastStockMovement
}

// ==========================
// ANALYTICS ROWS
// ==========================

type SalesSummaryRow struct {
	Date       string
	SaleCount  int64
	TotalCents int64
}

// AnalyticsFilter narrows an aggregate query. Nil fields mean unfiltered.
type AnalyticsFilter struct {
	ProductID *int64
	DateFrom  *string
	DateTo    *string
	Category  *string
}

// ==========================
// CONTRACTS
// ==========================

// Reader is the read-only surface used by resolution and analytics.
type Reader interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
	ProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	ProductByID(ctx context.Context, id int64) (*models.Product, error)
	StockLevels(ctx context.Context, productID *int64) ([]models.StockLevel, error)
	RevenueCents(ctx context.Context, f AnalyticsFilter) (int64, error)
	ExpensesCents(ctx context.Context, f AnalyticsFilter) (int64, error)
	ProfitCents(ctx context.Context) (int64, error)
	SalesSummary(ctx context.Context, f AnalyticsFilter) ([]SalesSummaryRow, error)
	GetLastSale(ctx context.Context) (*LastSale, error)
	GetLastExpense(ctx context.Context) (*LastExpense, error)
	GetLastStockMovement(ctx context.Context) (*LastStockMovement, error)
	GetLastOperation(ctx context.Context) (*LastOperation, error)
}

// Mutator is the write-only surface. Every call either commits fully or
// returns a typed error with no rows committed.
type Mutator interface {
	RegisterSale(ctx context.Context, in SaleInput) (*SaleResult, error)
	RegisterExpense(ctx context.Context, in ExpenseInput) (*ExpenseResult, error)
	RegisterProduct(ctx context.Context, in ProductInput) (*ProductResult, error)
	AddStock(ctx context.Context, in StockInput) (*StockResult, error)
	DeactivateProduct(ctx context.Context, productID int64) (*ProductResult, error)
	CancelSale(ctx context.Context, saleID int64) (*CancelSaleResult, error)
	CancelExpense(ctx context.Context, expenseID int64) (*CancelExpenseResult, error)
	CancelStockMovement(ctx context.Context, movementID int64) (*CancelStockResult, error)
}

// Store is the full data-access contract consumed by the pipeline.
type Store interface {
	Reader
	Mutator
}
