// internal/store/queries.go
package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/models"
)

// ==========================
// PRODUCT LOOKUPS
// ==========================

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var p models.Product
	var description sql.NullString
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &description,
		&p.UnitPriceCents, &p.UnitCostCents, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return &p, nil
}

const productColumns = `id, sku, name, description, unit_price_cents, unit_cost_cents, is_active, created_at`

// ActiveProducts returns the candidate set the resolver scores against,
// newest first so recency tie-breaks fall out of the ordering.
func (s *PostgresStore) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.NewDataAccessError(err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	return products, nil
}

func (s *PostgresStore) ProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE sku = $1`, sku))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	return p, nil
}

func (s *PostgresStore) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	return p, nil
}

// ==========================
// AGGREGATE VIEWS
// ==========================

func (s *PostgresStore) StockLevels(ctx context.Context, productID *int64) ([]models.StockLevel, error) {
	query := `SELECT product_id, sku, name, stock_qty FROM stock_current`
	args := []interface{}{}
	if productID != nil {
		query += ` WHERE product_id = $1`
		args = append(args, *productID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer rows.Close()

	var levels []models.StockLevel
	for rows.Next() {
		var l models.StockLevel
		if err := rows.Scan(&l.ProductID, &l.SKU, &l.Name, &l.StockQty); err != nil {
			return nil, apperrors.NewDataAccessError(err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	return levels, nil
}

func (s *PostgresStore) RevenueCents(ctx context.Context, f AnalyticsFilter) (int64, error) {
	if f.DateFrom == nil && f.DateTo == nil && f.ProductID == nil {
		var total int64
		if err := s.db.QueryRowContext(ctx,
			`SELECT total_revenue_cents FROM revenue_paid`).Scan(&total); err != nil {
			return 0, apperrors.NewDataAccessError(err)
		}
		return total, nil
	}

	query := `
		SELECT COALESCE(SUM(si.line_total_cents), 0)
		FROM sales s
		JOIN sale_items si ON si.sale_id = s.id
		WHERE s.status = 'PAID'`
	args := []interface{}{}
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		query += ` AND si.product_id = $1`
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += ` AND s.created_at::date >= $` + strconv.Itoa(len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += ` AND s.created_at::date <= $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, apperrors.NewDataAccessError(err)
	}
	return total, nil
}

func (s *PostgresStore) ExpensesCents(ctx context.Context, f AnalyticsFilter) (int64, error) {
	if f.DateFrom == nil && f.DateTo == nil && f.Category == nil {
		var total int64
		if err := s.db.QueryRowContext(ctx,
			`SELECT total_expenses_cents FROM expenses_total`).Scan(&total); err != nil {
			return 0, apperrors.NewDataAccessError(err)
		}
		return total, nil
	}

	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE TRUE`
	args := []interface{}{}
	if f.Category != nil {
		args = append(args, *f.Category)
		query += ` AND category = $1`
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += ` AND expense_date >= $` + strconv.Itoa(len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += ` AND expense_date <= $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, apperrors.NewDataAccessError(err)
	}
	return total, nil
}

func (s *PostgresStore) ProfitCents(ctx context.Context) (int64, error) {
	var profit int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT profit_cents FROM profit_summary`).Scan(&profit); err != nil {
		return 0, apperrors.NewDataAccessError(err)
	}
	return profit, nil
}

func (s *PostgresStore) SalesSummary(ctx context.Context, f AnalyticsFilter) ([]SalesSummaryRow, error) {
	query := `
		SELECT s.created_at::date::text, COUNT(DISTINCT s.id), COALESCE(SUM(si.line_total_cents), 0)
		FROM sales s
		JOIN sale_items si ON si.sale_id = s.id
		WHERE s.status = 'PAID'`
	args := []interface{}{}
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		query += ` AND si.product_id = $1`
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += ` AND s.created_at::date >= $` + strconv.Itoa(len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += ` AND s.created_at::date <= $` + strconv.Itoa(len(args))
	}
	query += `
		GROUP BY s.created_at::date
		ORDER BY s.created_at::date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer rows.Close()

	var summary []SalesSummaryRow
	for rows.Next() {
		var r SalesSummaryRow
		if err := rows.Scan(&r.Date, &r.SaleCount, &r.TotalCents); err != nil {
			return nil, apperrors.NewDataAccessError(err)
		}
		summary = append(summary, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	return summary, nil
}

// ==========================
// LAST OPERATIONS
// ==========================

func (s *PostgresStore) GetLastSale(ctx context.Context) (*LastSale, error) {
	var last LastSale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_number, total_amount_cents, status, created_at
		FROM sales
		ORDER BY created_at DESC
		LIMIT 1`).Scan(&last.ID, &last.SaleNumber, &last.TotalCents, &last.Status, &last.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	return &last, nil
}

func (s *PostgresStore) GetLastExpense(ctx context.Context) (*LastExpense, error) {
	var last LastExpense
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, description, amount_cents, category, expense_date::text, created_at
		FROM expenses
		ORDER BY created_at DESC
		LIMIT 1`).Scan(&last.ID, &description, &last.AmountCents, &last.Category, &last.ExpenseDate, &last.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	last.Description = description.String
	return &last, nil
}

// GetLastStockMovement skips OUT movements, those belong to sales.
func (s *PostgresStore) GetLastStockMovement(ctx context.Context) (*LastStockMovement, error) {
	var last LastStockMovement
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT sm.id, sm.product_id, sm.quantity, sm.movement_type, sm.reason, sm.created_at,
		       p.name, p.sku
		FROM stock_movements sm
		JOIN products p ON sm.product_id = p.id
		WHERE sm.movement_type IN ('IN', 'ADJUSTMENT')
		ORDER BY sm.created_at DESC
		LIMIT 1`).Scan(&last.ID, &last.ProductID, &last.Quantity, &last.MovementType,
		&reason, &last.CreatedAt, &last.ProductName, &last.SKU)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	last.Reason = reason.String
	return &last, nil
}

// GetLastOperation returns the most recent mutation across sales,
// expenses and stock movements, or nil when the tenant has none.
func (s *PostgresStore) GetLastOperation(ctx context.Context) (*LastOperation, error) {
	sale, err := s.GetLastSale(ctx)
	if err != nil {
		return nil, err
	}
	expense, err := s.GetLastExpense(ctx)
	if err != nil {
		return nil, err
	}
	movement, err := s.GetLastStockMovement(ctx)
	if err != nil {
		return nil, err
	}

	var latest *LastOperation
	if sale != nil {
		latest = &LastOperation{Type: LastOpSale, Sale: sale}
	}
	if expense != nil && (latest == nil || expense.CreatedAt.After(latestTime(latest))) {
		latest = &LastOperation{Type: LastOpExpense, Expense: expense}
	}
	if movement != nil && (latest == nil || movement.CreatedAt.After(latestTime(latest))) {
		latest = &LastOperation{Type: LastOpStock, Movement: movement}
	}
	return latest, nil
}

func latestTime(op *LastOperation) time.Time {
	switch op.Type {
	case LastOpSale:
		return op.Sale.CreatedAt
	case LastOpExpense:
		return op.Expense.CreatedAt
	default:
		return op.Movement.CreatedAt
	}
}
