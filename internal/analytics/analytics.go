// internal/analytics/analytics.go
package analytics

import (
	"context"

	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/models"
	"pos-assistant/internal/store"
)

// QueryKind enumerates the fixed menu of aggregate queries. Free-form
// query text is never accepted.
type QueryKind string

const (
	KindStock        QueryKind = "STOCK"
	KindRevenue      QueryKind = "REVENUE"
	KindExpenses     QueryKind = "EXPENSES"
	KindProfit       QueryKind = "PROFIT"
	KindSalesSummary QueryKind = "SALES_SUMMARY"
	KindProducts     QueryKind = "PRODUCTS"
)

// Result carries exactly the fields for its Kind. FilterExcludedAll
// distinguishes "the filter matched nothing" from "there is no data",
// so composition can ask a clarifying question instead of claiming the
// tenant has no records.
type Result struct {
	Kind              QueryKind
	Filter            store.AnalyticsFilter
	Stock             []models.StockLevel
	RevenueCents      int64
	ExpensesCents     int64
	ProfitCents       int64
	Sales             []store.SalesSummaryRow
	Products          []models.Product
	FilterExcludedAll bool
}

// Executor runs the read-only aggregate menu against the tenant views.
// rowLimit caps list-shaped results so an answer stays readable; zero
// means no cap.
type Executor struct {
	reader   store.Reader
	rowLimit int
	log      logger.Logger
}

func NewExecutor(reader store.Reader, rowLimit int, log logger.Logger) *Executor {
	return &Executor{
		reader:   reader,
		rowLimit: rowLimit,
		log:      log.With(map[string]interface{}{"component": "analytics"}),
	}
}

func capRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func filtered(f store.AnalyticsFilter) bool {
	return f.ProductID != nil || f.DateFrom != nil || f.DateTo != nil || f.Category != nil
}

// Query executes one aggregate from the menu. An unknown kind is a
// typed error, never a pass-through to the database.
func (e *Executor) Query(ctx context.Context, kind QueryKind, f store.AnalyticsFilter) (*Result, error) {
	switch kind {
	case KindStock:
		return e.stock(ctx, f)
	case KindRevenue:
		return e.revenue(ctx, f)
	case KindExpenses:
		return e.expenses(ctx, f)
	case KindProfit:
		return e.profit(ctx)
	case KindSalesSummary:
		return e.salesSummary(ctx, f)
	case KindProducts:
		return e.products(ctx)
	default:
		return nil, apperrors.NewInvalidQueryKindError(string(kind))
	}
}

func (e *Executor) stock(ctx context.Context, f store.AnalyticsFilter) (*Result, error) {
	levels, err := e.reader.StockLevels(ctx, f.ProductID)
	if err != nil {
		return nil, err
	}

	result := &Result{Kind: KindStock, Filter: f, Stock: capRows(levels, e.rowLimit)}
	if len(levels) == 0 && f.ProductID != nil {
		unfiltered, err := e.reader.StockLevels(ctx, nil)
		if err != nil {
			return nil, err
		}
		result.FilterExcludedAll = len(unfiltered) > 0
	}
	return result, nil
}

func (e *Executor) revenue(ctx context.Context, f store.AnalyticsFilter) (*Result, error) {
	total, err := e.reader.RevenueCents(ctx, f)
	if err != nil {
		return nil, err
	}

	result := &Result{Kind: KindRevenue, Filter: f, RevenueCents: total}
	if total == 0 && filtered(f) {
		unfiltered, err := e.reader.RevenueCents(ctx, store.AnalyticsFilter{})
		if err != nil {
			return nil, err
		}
		result.FilterExcludedAll = unfiltered != 0
	}
	return result, nil
}

func (e *Executor) expenses(ctx context.Context, f store.AnalyticsFilter) (*Result, error) {
	total, err := e.reader.ExpensesCents(ctx, f)
	if err != nil {
		return nil, err
	}

	result := &Result{Kind: KindExpenses, Filter: f, ExpensesCents: total}
	if total == 0 && filtered(f) {
		unfiltered, err := e.reader.ExpensesCents(ctx, store.AnalyticsFilter{})
		if err != nil {
			return nil, err
		}
		result.FilterExcludedAll = unfiltered != 0
	}
	return result, nil
}

func (e *Executor) profit(ctx context.Context) (*Result, error) {
	profit, err := e.reader.ProfitCents(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindProfit, ProfitCents: profit}, nil
}

func (e *Executor) salesSummary(ctx context.Context, f store.AnalyticsFilter) (*Result, error) {
	rows, err := e.reader.SalesSummary(ctx, f)
	if err != nil {
		return nil, err
	}

	result := &Result{Kind: KindSalesSummary, Filter: f, Sales: capRows(rows, e.rowLimit)}
	if len(rows) == 0 && filtered(f) {
		unfiltered, err := e.reader.SalesSummary(ctx, store.AnalyticsFilter{})
		if err != nil {
			return nil, err
		}
		result.FilterExcludedAll = len(unfiltered) > 0
	}
	return result, nil
}

func (e *Executor) products(ctx context.Context) (*Result, error) {
	products, err := e.reader.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindProducts, Products: capRows(products, e.rowLimit)}, nil
}

// KindFromString maps oracle-extracted query text onto the menu.
func KindFromString(s string) (QueryKind, bool) {
	switch QueryKind(s) {
	case KindStock, KindRevenue, KindExpenses, KindProfit, KindSalesSummary, KindProducts:
		return QueryKind(s), true
	}
	return "", false
}
