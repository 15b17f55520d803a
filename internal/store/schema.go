// internal/store/schema.go
package store

import (
	"context"

	"pos-assistant/internal/common/database"
	apperrors "pos-assistant/internal/common/errors"
)

// Schema for one tenant. Views are the only read surface analytics is
// allowed to aggregate over.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    sku TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT,
    unit_cost_cents BIGINT NOT NULL DEFAULT 0 CHECK (unit_cost_cents >= 0),
    unit_price_cents BIGINT NOT NULL CHECK (unit_price_cents >= 0),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sales (
    id BIGSERIAL PRIMARY KEY,
    sale_number TEXT NOT NULL UNIQUE,
    customer_name TEXT,
    status TEXT NOT NULL CHECK (status IN ('PAID','PENDING','CANCELLED')),
    currency TEXT NOT NULL DEFAULT 'USD',
    total_amount_cents BIGINT NOT NULL CHECK (total_amount_cents >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    paid_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sale_items (
    id BIGSERIAL PRIMARY KEY,
    sale_id BIGINT NOT NULL REFERENCES sales(id),
    product_id BIGINT NOT NULL REFERENCES products(id),
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    unit_price_cents BIGINT NOT NULL,
    line_total_cents BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_movements (
    id BIGSERIAL PRIMARY KEY,
    product_id BIGINT NOT NULL REFERENCES products(id),
    movement_type TEXT NOT NULL CHECK (movement_type IN ('IN','OUT','ADJUSTMENT')),
    quantity INTEGER NOT NULL CHECK (quantity <> 0),
    reason TEXT,
    reference TEXT,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS expenses (
    id BIGSERIAL PRIMARY KEY,
    expense_date DATE NOT NULL DEFAULT CURRENT_DATE,
    category TEXT NOT NULL,
    description TEXT,
    amount_cents BIGINT NOT NULL CHECK (amount_cents >= 0),
    currency TEXT NOT NULL DEFAULT 'USD',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE VIEW revenue_paid AS
SELECT COALESCE(SUM(total_amount_cents), 0) AS total_revenue_cents
FROM sales WHERE status = 'PAID';

CREATE OR REPLACE VIEW expenses_total AS
SELECT COALESCE(SUM(amount_cents), 0) AS total_expenses_cents FROM expenses;

CREATE OR REPLACE VIEW profit_summary AS
SELECT (r.total_revenue_cents - e.total_expenses_cents) AS profit_cents
FROM revenue_paid r, expenses_total e;

CREATE OR REPLACE VIEW stock_current AS
SELECT
  p.id AS product_id,
  p.sku,
  p.name,
  COALESCE(
    SUM(
      CASE
        WHEN sm.movement_type IN ('IN', 'ADJUSTMENT') THEN sm.quantity
        WHEN sm.movement_type = 'OUT' THEN -sm.quantity
        ELSE 0
      END
    ),
    0
  ) AS stock_qty
FROM products p
LEFT JOIN stock_movements sm ON p.id = sm.product_id
WHERE p.is_active
GROUP BY p.id, p.sku, p.name;
`

// EnsureSchema creates the tenant tables and views if missing.
func EnsureSchema(ctx context.Context, client *database.PostgresClient) error {
	if _, err := client.Exec(ctx, schemaSQL); err != nil {
		return apperrors.NewDataAccessError(err)
	}
	return nil
}
