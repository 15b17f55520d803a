// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pos-assistant/internal/common/database"
	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/models"
)

// PostgresStore implements Store on a tenant-bound Postgres handle.
type PostgresStore struct {
	db  *sql.DB
	log logger.Logger
}

func NewPostgresStore(client *database.PostgresClient, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:  client.GetDB(),
		log: log.With(map[string]interface{}{"component": "store"}),
	}
}

// NewPostgresStoreFromDB exists for tests running against a mocked handle.
func NewPostgresStoreFromDB(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: log.With(map[string]interface{}{"component": "store"}),
	}
}

// newSaleNumber returns a unique sale identifier.
func newSaleNumber() string {
	return "S-" + strings.ToUpper(uuid.New().String()[:8])
}

// ==========================
// MUTATIONS
// ==========================

// RegisterSale creates the sale header, all line rows and, for PAID
// sales, the matching OUT stock movements in a single transaction. It
// validates stock before writing anything and re-queries revenue and
// profit after the rows are in place.
func (s *PostgresStore) RegisterSale(ctx context.Context, in SaleInput) (*SaleResult, error) {
	if in.Status == "" {
		in.Status = "PAID"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer tx.Rollback()

	// Stock validation happens before any insert so a rejected sale
	// leaves nothing behind.
	items := make([]models.SaleItem, 0, len(in.Items))
	var totalCents int64

	for _, item := range in.Items {
		var name string
		var catalogPrice int64
		var active bool
		var stockQty int64

		err := tx.QueryRowContext(ctx, `
			SELECT p.name, p.unit_price_cents, p.is_active, COALESCE(s.stock_qty, 0)
			FROM products p
			LEFT JOIN stock_current s ON p.id = s.product_id
			WHERE p.id = $1`, item.ProductID).Scan(&name, &catalogPrice, &active, &stockQty)
		if err == sql.ErrNoRows {
			return nil, apperrors.NewBusinessRuleError(
				fmt.Sprintf("producto con ID %d no encontrado", item.ProductID), "")
		}
		if err != nil {
			return nil, apperrors.NewDataAccessError(err)
		}
		if !active {
			return nil, apperrors.NewBusinessRuleError(
				fmt.Sprintf("el producto %s está desactivado", name), "")
		}
		if in.Status == "PAID" && stockQty < item.Quantity {
			return nil, apperrors.NewBusinessRuleError(
				fmt.Sprintf("no hay suficiente stock de %s", name),
				fmt.Sprintf("disponible: %d unidades, solicitado: %d unidades", stockQty, item.Quantity))
		}

		price := catalogPrice
		if item.UnitPriceCents != nil {
			price = *item.UnitPriceCents
		}
		lineTotal := price * item.Quantity
		totalCents += lineTotal

		items = append(items, models.SaleItem{
			ProductID:      item.ProductID,
			ProductName:    name,
			Quantity:       item.Quantity,
			UnitPriceCents: price,
			LineTotalCents: lineTotal,
		})
	}

	saleNumber := newSaleNumber()
	var saleID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (sale_number, customer_name, status, total_amount_cents, paid_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, CASE WHEN $3 = 'PAID' THEN NOW() ELSE NULL END)
		RETURNING id`,
		saleNumber, in.CustomerName, in.Status, totalCents).Scan(&saleID)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price_cents, line_total_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			saleID, item.ProductID, item.Quantity, item.UnitPriceCents, item.LineTotalCents)
		if err != nil {
			return nil, apperrors.NewDataAccessError(err)
		}

		if in.Status == "PAID" {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO stock_movements (product_id, movement_type, quantity, reason, reference)
				VALUES ($1, 'OUT', $2, 'Sale', $3)`,
				item.ProductID, item.Quantity, saleNumber)
			if err != nil {
				return nil, apperrors.NewDataAccessError(err)
			}
		}
	}

	revenue, profit, err := kpisTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Sale registered", map[string]interface{}{
		"sale_id":     saleID,
		"sale_number": saleNumber,
		"total_cents": totalCents,
		"items":       len(items),
	})

	return &SaleResult{
		SaleID:       saleID,
		SaleNumber:   saleNumber,
		TotalCents:   totalCents,
		Items:        items,
		RevenueCents: revenue,
		ProfitCents:  profit,
	}, nil
}

func (s *PostgresStore) RegisterExpense(ctx context.Context, in ExpenseInput) (*ExpenseResult, error) {
	if in.Category == "" {
		in.Category = "GENERAL"
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer tx.Rollback()

	var expenseID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO expenses (expense_date, category, description, amount_cents, currency)
		VALUES (COALESCE(NULLIF($1, '')::date, CURRENT_DATE), $2, $3, $4, $5)
		RETURNING id`,
		in.Date, in.Category, in.Description, in.AmountCents, in.Currency).Scan(&expenseID)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	var profit int64
	if err := tx.QueryRowContext(ctx, `SELECT profit_cents FROM profit_summary`).Scan(&profit); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Expense registered", map[string]interface{}{
		"expense_id":   expenseID,
		"amount_cents": in.AmountCents,
		"category":     in.Category,
	})

	return &ExpenseResult{ExpenseID: expenseID, AmountCents: in.AmountCents, ProfitCents: profit}, nil
}

func (s *PostgresStore) RegisterProduct(ctx context.Context, in ProductInput) (*ProductResult, error) {
	var productID int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (sku, name, description, unit_price_cents, unit_cost_cents)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id`,
		in.SKU, in.Name, in.Description, in.UnitPriceCents, in.UnitCostCents).Scan(&productID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apperrors.NewBusinessRuleError(
				fmt.Sprintf("el SKU '%s' ya existe", in.SKU), "")
		}
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Product registered", map[string]interface{}{
		"product_id": productID,
		"sku":        in.SKU,
	})

	return &ProductResult{ProductID: productID, SKU: in.SKU}, nil
}

func (s *PostgresStore) AddStock(ctx context.Context, in StockInput) (*StockResult, error) {
	if in.MovementType == "" {
		in.MovementType = "IN"
	}
	if in.Reason == "" {
		in.Reason = "Stock update"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_active FROM products WHERE id = $1`, in.ProductID).Scan(&active)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewBusinessRuleError(
			fmt.Sprintf("producto con ID %d no encontrado", in.ProductID), "")
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	if !active {
		return nil, apperrors.NewBusinessRuleError("el producto está desactivado", "")
	}

	var movementID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO stock_movements (product_id, movement_type, quantity, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		in.ProductID, in.MovementType, in.Quantity, in.Reason).Scan(&movementID)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	var stockQty int64
	err = tx.QueryRowContext(ctx,
		`SELECT stock_qty FROM stock_current WHERE product_id = $1`, in.ProductID).Scan(&stockQty)
	if err != nil && err != sql.ErrNoRows {
		return nil, apperrors.NewDataAccessError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Stock updated", map[string]interface{}{
		"product_id": in.ProductID,
		"quantity":   in.Quantity,
		"stock_qty":  stockQty,
	})

	return &StockResult{MovementID: movementID, ProductID: in.ProductID, StockQty: stockQty}, nil
}

func (s *PostgresStore) DeactivateProduct(ctx context.Context, productID int64) (*ProductResult, error) {
	var sku string
	err := s.db.QueryRowContext(ctx, `
		UPDATE products SET is_active = FALSE WHERE id = $1
		RETURNING sku`, productID).Scan(&sku)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewBusinessRuleError(
			fmt.Sprintf("producto con ID %d no encontrado", productID), "")
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Product deactivated", map[string]interface{}{
		"product_id": productID,
		"sku":        sku,
	})

	return &ProductResult{ProductID: productID, SKU: sku}, nil
}

// ==========================
// CANCELLATIONS
// ==========================

// CancelSale removes a sale and its line rows; a PAID sale gets inverse
// IN movements first so stock is restored.
func (s *PostgresStore) CancelSale(ctx context.Context, saleID int64) (*CancelSaleResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer tx.Rollback()

	var saleNumber, status string
	var totalCents int64
	err = tx.QueryRowContext(ctx,
		`SELECT sale_number, total_amount_cents, status FROM sales WHERE id = $1`,
		saleID).Scan(&saleNumber, &totalCents, &status)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewBusinessRuleError(
			fmt.Sprintf("venta con ID %d no encontrada", saleID), "")
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	if status == "PAID" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_movements (product_id, movement_type, quantity, reason, reference)
			SELECT product_id, 'IN', quantity, 'Venta cancelada', $2
			FROM sale_items WHERE sale_id = $1`, saleID, saleNumber)
		if err != nil {
			return nil, apperrors.NewDataAccessError(err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	revenue, profit, err := kpisTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Sale cancelled", map[string]interface{}{
		"sale_id":     saleID,
		"sale_number": saleNumber,
	})

	return &CancelSaleResult{
		SaleNumber:     saleNumber,
		CancelledCents: totalCents,
		RevenueCents:   revenue,
		ProfitCents:    profit,
	}, nil
}

func (s *PostgresStore) CancelExpense(ctx context.Context, expenseID int64) (*CancelExpenseResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer tx.Rollback()

	var description sql.NullString
	var amountCents int64
	err = tx.QueryRowContext(ctx,
		`SELECT description, amount_cents FROM expenses WHERE id = $1`,
		expenseID).Scan(&description, &amountCents)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewBusinessRuleError(
			fmt.Sprintf("gasto con ID %d no encontrado", expenseID), "")
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	var profit int64
	if err := tx.QueryRowContext(ctx, `SELECT profit_cents FROM profit_summary`).Scan(&profit); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Expense cancelled", map[string]interface{}{"expense_id": expenseID})

	return &CancelExpenseResult{
		Description:    description.String,
		CancelledCents: amountCents,
		ProfitCents:    profit,
	}, nil
}

// CancelStockMovement reverses an IN or ADJUSTMENT movement with a
// negative ADJUSTMENT. OUT movements belong to sales and are only
// reversed through CancelSale.
func (s *PostgresStore) CancelStockMovement(ctx context.Context, movementID int64) (*CancelStockResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}
	defer tx.Rollback()

	var productID, quantity int64
	var movementType, productName, sku string
	var reason sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT sm.product_id, sm.quantity, sm.movement_type, sm.reason, p.name, p.sku
		FROM stock_movements sm
		JOIN products p ON sm.product_id = p.id
		WHERE sm.id = $1`, movementID).Scan(&productID, &quantity, &movementType, &reason, &productName, &sku)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewBusinessRuleError(
			fmt.Sprintf("movimiento de stock con ID %d no encontrado", movementID), "")
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	if movementType != "IN" && movementType != "ADJUSTMENT" {
		return nil, apperrors.NewBusinessRuleError(
			"solo se pueden cancelar movimientos de tipo IN o ADJUSTMENT", "")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (product_id, movement_type, quantity, reason)
		VALUES ($1, 'ADJUSTMENT', $2, $3)`,
		productID, -quantity, "Cancelación de: "+reason.String)
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	var stockQty int64
	err = tx.QueryRowContext(ctx,
		`SELECT stock_qty FROM stock_current WHERE product_id = $1`, productID).Scan(&stockQty)
	if err != nil && err != sql.ErrNoRows {
		return nil, apperrors.NewDataAccessError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	s.log.Info("Stock movement cancelled", map[string]interface{}{
		"movement_id": movementID,
		"product_id":  productID,
	})

	return &CancelStockResult{
		ProductName:  productName,
		SKU:          sku,
		CancelledQty: quantity,
		StockQty:     stockQty,
	}, nil
}

// kpisTx reads revenue and profit inside the mutation transaction so
// the returned KPIs reflect the rows just written.
func kpisTx(ctx context.Context, tx *sql.Tx) (revenue, profit int64, err error) {
	if err = tx.QueryRowContext(ctx, `SELECT total_revenue_cents FROM revenue_paid`).Scan(&revenue); err != nil {
		return 0, 0, apperrors.NewDataAccessError(err)
	}
	if err = tx.QueryRowContext(ctx, `SELECT profit_cents FROM profit_summary`).Scan(&profit); err != nil {
		return 0, 0, apperrors.NewDataAccessError(err)
	}
	return revenue, profit, nil
}
