// internal/dispatch/dispatch_test.go
package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/models"
	"pos-assistant/internal/store"
)

// spyStore records every mutation call so tests can assert that a
// rejected dispatch touched nothing.
type spyStore struct {
	store.Store
	mutationCalls int

	saleResult    *store.SaleResult
	expenseResult *store.ExpenseResult
	productResult *store.ProductResult
	stockResult   *store.StockResult

	lastSale      *store.LastSale
	lastExpense   *store.LastExpense
	lastMovement  *store.LastStockMovement
	lastOperation *store.LastOperation

	cancelSaleResult    *store.CancelSaleResult
	cancelExpenseResult *store.CancelExpenseResult
	cancelStockResult   *store.CancelStockResult
	cancelledSaleID     int64

	stockLevels []models.StockLevel
}

func (s *spyStore) RegisterSale(ctx context.Context, in store.SaleInput) (*store.SaleResult, error) {
	s.mutationCalls++
	return s.saleResult, nil
}

func (s *spyStore) RegisterExpense(ctx context.Context, in store.ExpenseInput) (*store.ExpenseResult, error) {
	s.mutationCalls++
	return s.expenseResult, nil
}

func (s *spyStore) RegisterProduct(ctx context.Context, in store.ProductInput) (*store.ProductResult, error) {
	s.mutationCalls++
	return s.productResult, nil
}

func (s *spyStore) AddStock(ctx context.Context, in store.StockInput) (*store.StockResult, error) {
	s.mutationCalls++
	return s.stockResult, nil
}

func (s *spyStore) DeactivateProduct(ctx context.Context, productID int64) (*store.ProductResult, error) {
	s.mutationCalls++
	return s.productResult, nil
}

func (s *spyStore) CancelSale(ctx context.Context, saleID int64) (*store.CancelSaleResult, error) {
	s.mutationCalls++
	s.cancelledSaleID = saleID
	return s.cancelSaleResult, nil
}

func (s *spyStore) CancelExpense(ctx context.Context, expenseID int64) (*store.CancelExpenseResult, error) {
	s.mutationCalls++
	return s.cancelExpenseResult, nil
}

func (s *spyStore) CancelStockMovement(ctx context.Context, movementID int64) (*store.CancelStockResult, error) {
	s.mutationCalls++
	return s.cancelStockResult, nil
}

func (s *spyStore) GetLastSale(ctx context.Context) (*store.LastSale, error) { return s.lastSale, nil }
func (s *spyStore) GetLastExpense(ctx context.Context) (*store.LastExpense, error) {
	return s.lastExpense, nil
}
func (s *spyStore) GetLastStockMovement(ctx context.Context) (*store.LastStockMovement, error) {
	return s.lastMovement, nil
}
func (s *spyStore) GetLastOperation(ctx context.Context) (*store.LastOperation, error) {
	return s.lastOperation, nil
}
func (s *spyStore) StockLevels(ctx context.Context, productID *int64) ([]models.StockLevel, error) {
	return s.stockLevels, nil
}

func newTestDispatcher(t *testing.T, s *spyStore) *Dispatcher {
	t.Helper()
	return NewDispatcher(s, logger.NewTestLogger(t))
}

func TestDispatchRegisterSale(t *testing.T) {
	s := &spyStore{
		saleResult: &store.SaleResult{
			SaleID:     7,
			SaleNumber: "S-ABC12345",
			TotalCents: 4500,
			Items: []models.SaleItem{
				{ProductID: 2, ProductName: "Pulsera Negra", Quantity: 3, UnitPriceCents: 1500, LineTotalCents: 4500},
			},
			RevenueCents: 4500,
			ProfitCents:  2500,
		},
		stockLevels: []models.StockLevel{{ProductID: 2, SKU: "BC-BRACELET-BLACK", Name: "Pulsera Negra", StockQty: 7}},
	}
	d := newTestDispatcher(t, s)

	result, err := d.Dispatch(context.Background(), models.OpRegisterSale, &models.ResolvedEntities{
		Items: []models.ResolvedItem{{ProductID: 2, Quantity: 3}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, s.mutationCalls)
	assert.Equal(t, int64(7), result.SaleID)
	assert.Equal(t, int64(4500), result.RevenueCentsAfter)
	require.Len(t, result.StockAfter, 1)
	assert.Equal(t, int64(7), result.StockAfter[0].StockQty)
}

// Any unresolved required field means no mutation at all.
func TestDispatchValidationBlocksMutation(t *testing.T) {
	tests := []struct {
		name    string
		op      models.Operation
		ents    *models.ResolvedEntities
		missing string
	}{
		{
			name:    "sale without items",
			op:      models.OpRegisterSale,
			ents:    &models.ResolvedEntities{},
			missing: "items",
		},
		{
			name: "sale with zero quantity",
			op:   models.OpRegisterSale,
			ents: &models.ResolvedEntities{
				Items: []models.ResolvedItem{{ProductID: 2, Quantity: 0}},
			},
			missing: "items.quantity",
		},
		{
			name: "sale with unresolved product",
			op:   models.OpRegisterSale,
			ents: func() *models.ResolvedEntities {
				e := &models.ResolvedEntities{
					Items: []models.ResolvedItem{{ProductID: 2, Quantity: 3}},
				}
				e.MarkUnresolved("items.product", "no product matched any variation")
				return e
			}(),
			missing: "items.product",
		},
		{
			name:    "expense without amount",
			op:      models.OpRegisterExpense,
			ents:    &models.ResolvedEntities{},
			missing: "amount",
		},
		{
			name: "sale with unknown status",
			op:   models.OpRegisterSale,
			ents: &models.ResolvedEntities{
				Items:  []models.ResolvedItem{{ProductID: 2, Quantity: 1}},
				Status: "MAYBE",
			},
			missing: "status",
		},
		{
			name: "expense without description",
			op:   models.OpRegisterExpense,
			ents: func() *models.ResolvedEntities {
				amount := int64(5000)
				return &models.ResolvedEntities{AmountCents: &amount}
			}(),
			missing: "description",
		},
		{
			name:    "product without price",
			op:      models.OpRegisterProduct,
			ents:    &models.ResolvedEntities{Name: "Pulseras Azules"},
			missing: "unit_price",
		},
		{
			name:    "stock without product",
			op:      models.OpAddStock,
			ents:    &models.ResolvedEntities{Quantity: 10},
			missing: "product",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &spyStore{}
			d := newTestDispatcher(t, s)

			result, err := d.Dispatch(context.Background(), tt.op, tt.ents)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, 0, s.mutationCalls)

			stdErr := apperrors.AsStandard(err)
			require.NotNil(t, stdErr)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.missing)
		})
	}
}

func TestDispatchRegisterProductGeneratesSKU(t *testing.T) {
	s := &spyStore{productResult: &store.ProductResult{ProductID: 5, SKU: "BC-PULS-AZUL"}}
	d := newTestDispatcher(t, s)

	price := int64(1500)
	result, err := d.Dispatch(context.Background(), models.OpRegisterProduct, &models.ResolvedEntities{
		Name:           "Pulseras Azules",
		UnitPriceCents: &price,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, s.mutationCalls)
	assert.Equal(t, "BC-PULS-AZUL", result.SKU)
}

func TestDispatchAddStock(t *testing.T) {
	s := &spyStore{stockResult: &store.StockResult{MovementID: 11, ProductID: 2, StockQty: 30}}
	d := newTestDispatcher(t, s)

	productID := int64(2)
	result, err := d.Dispatch(context.Background(), models.OpAddStock, &models.ResolvedEntities{
		ProductID:   &productID,
		ProductSKU:  "BC-BRACELET-BLACK",
		ProductName: "Pulsera Negra",
		Quantity:    20,
	})

	require.NoError(t, err)
	require.Len(t, result.StockAfter, 1)
	assert.Equal(t, int64(30), result.StockAfter[0].StockQty)
}

func TestDispatchCancelSaleUsesLast(t *testing.T) {
	s := &spyStore{
		lastSale: &store.LastSale{ID: 7, SaleNumber: "S-ABC12345", TotalCents: 4500, Status: "PAID"},
		cancelSaleResult: &store.CancelSaleResult{
			SaleNumber:     "S-ABC12345",
			CancelledCents: 4500,
		},
	}
	d := newTestDispatcher(t, s)

	result, err := d.Dispatch(context.Background(), models.OpCancelSale, &models.ResolvedEntities{})

	require.NoError(t, err)
	assert.Equal(t, int64(7), s.cancelledSaleID)
	assert.Equal(t, "S-ABC12345", result.SaleNumber)
	assert.Equal(t, int64(4500), result.CancelledCents)
}

// An explicit target id skips the last-record lookup entirely.
func TestDispatchCancelSaleByExplicitID(t *testing.T) {
	s := &spyStore{
		cancelSaleResult: &store.CancelSaleResult{
			SaleNumber:     "S-000012",
			CancelledCents: 5100,
		},
	}
	d := newTestDispatcher(t, s)

	target := int64(12)
	result, err := d.Dispatch(context.Background(), models.OpCancelSale, &models.ResolvedEntities{TargetID: &target})

	require.NoError(t, err)
	assert.Equal(t, int64(12), s.cancelledSaleID)
	assert.Equal(t, "S-000012", result.SaleNumber)
}

func TestDispatchCancelSaleNothingToCancel(t *testing.T) {
	s := &spyStore{}
	d := newTestDispatcher(t, s)

	_, err := d.Dispatch(context.Background(), models.OpCancelSale, &models.ResolvedEntities{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBusinessRuleViolation, apperrors.CodeOf(err))
	assert.Equal(t, 0, s.mutationCalls)
}

func TestDispatchCancelLastOperation(t *testing.T) {
	s := &spyStore{
		lastOperation: &store.LastOperation{
			Type:    store.LastOpExpense,
			Expense: &store.LastExpense{ID: 3, Description: "Empaques", AmountCents: 3000},
		},
		cancelExpenseResult: &store.CancelExpenseResult{
			Description:    "Empaques",
			CancelledCents: 3000,
			ProfitCents:    500,
		},
	}
	d := newTestDispatcher(t, s)

	result, err := d.Dispatch(context.Background(), models.OpCancelLastOperation, &models.ResolvedEntities{})

	require.NoError(t, err)
	assert.Equal(t, models.OpCancelExpense, result.Operation)
	assert.Equal(t, int64(3000), result.CancelledCents)
}

func TestDispatchUnknownOperation(t *testing.T) {
	s := &spyStore{}
	d := newTestDispatcher(t, s)

	_, err := d.Dispatch(context.Background(), models.OpUnknown, &models.ResolvedEntities{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
	assert.Equal(t, 0, s.mutationCalls)
}
