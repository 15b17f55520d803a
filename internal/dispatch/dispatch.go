// internal/dispatch/dispatch.go
package dispatch

import (
	"context"

	"pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/common/metrics"
	"pos-assistant/internal/models"
	"pos-assistant/internal/normalize"
	"pos-assistant/internal/store"
)

// Dispatcher validates resolved entities against the operation's
// required-field set and invokes exactly one atomic business action.
// Validation happens before any mutation; a failed request commits
// nothing.
type Dispatcher struct {
	store store.Store
	log   logger.Logger
}

func NewDispatcher(s store.Store, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store: s,
		log:   log.With(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch runs the operation. Unresolved required fields come back as
// a VALIDATION_FAILED error listing them; business rules surface as
// BUSINESS_RULE_VIOLATION; storage faults propagate as DATA_ACCESS_ERROR.
func (d *Dispatcher) Dispatch(ctx context.Context, op models.Operation, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	if missing := requiredFieldsMissing(op, ents); len(missing) > 0 {
		return nil, errors.NewValidationFailedError(string(op), missing)
	}

	var result *models.MutationResult
	var err error

	switch op {
	case models.OpRegisterSale:
		result, err = d.registerSale(ctx, ents)
	case models.OpRegisterExpense:
		result, err = d.registerExpense(ctx, ents)
	case models.OpRegisterProduct:
		result, err = d.registerProduct(ctx, ents)
	case models.OpAddStock:
		result, err = d.addStock(ctx, ents)
	case models.OpDeactivateProduct:
		result, err = d.deactivateProduct(ctx, ents)
	case models.OpCancelSale:
		result, err = d.cancelSaleTarget(ctx, ents)
	case models.OpCancelExpense:
		result, err = d.cancelExpenseTarget(ctx, ents)
	case models.OpCancelStock:
		result, err = d.cancelStockTarget(ctx, ents)
	case models.OpCancelLastOperation:
		result, err = d.cancelLastOperation(ctx)
	default:
		return nil, errors.NewValidationFailedError(string(op), []string{"operation"})
	}

	if err != nil {
		return nil, err
	}

	metrics.MutationsCommitted.WithLabelValues(string(op)).Inc()
	return result, nil
}

// requiredFieldsMissing checks that every required field is resolved,
// not merely present as raw text, and that enumerated fields carry an
// allowed value.
func requiredFieldsMissing(op models.Operation, ents *models.ResolvedEntities) []string {
	var missing []string

	switch op {
	case models.OpRegisterSale:
		if len(ents.Items) == 0 {
			missing = append(missing, "items")
		}
		for _, item := range ents.Items {
			if item.ProductID == 0 {
				missing = append(missing, "items.product")
			}
			if item.Quantity <= 0 {
				missing = append(missing, "items.quantity")
			}
		}
		// New sales are PAID or PENDING; anything else would only
		// surface later as a constraint violation inside the store.
		if ents.Status != "" && ents.Status != "PAID" && ents.Status != "PENDING" {
			missing = append(missing, "status")
		}
	case models.OpRegisterExpense:
		if ents.AmountCents == nil || *ents.AmountCents <= 0 {
			missing = append(missing, "amount")
		}
		if ents.Description == "" {
			missing = append(missing, "description")
		}
	case models.OpRegisterProduct:
		if ents.Name == "" {
			missing = append(missing, "name")
		}
		if ents.UnitPriceCents == nil {
			missing = append(missing, "unit_price")
		}
	case models.OpAddStock:
		if ents.ProductID == nil {
			missing = append(missing, "product")
		}
		if ents.Quantity == 0 {
			missing = append(missing, "quantity")
		}
	case models.OpDeactivateProduct:
		if ents.ProductID == nil {
			missing = append(missing, "product")
		}
	}

	// Anything the resolver flagged also blocks dispatch.
	missing = append(missing, ents.UnresolvedFields()...)
	return missing
}

func (d *Dispatcher) registerSale(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	input := store.SaleInput{Status: ents.Status}
	for _, item := range ents.Items {
		input.Items = append(input.Items, store.SaleItemInput{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	result, err := d.store.RegisterSale(ctx, input)
	if err != nil {
		return nil, err
	}

	// Post-mutation stock per sold product for composition.
	var stockAfter []models.StockLevel
	for _, item := range result.Items {
		productID := item.ProductID
		levels, err := d.store.StockLevels(ctx, &productID)
		if err != nil {
			return nil, err
		}
		stockAfter = append(stockAfter, levels...)
	}

	return &models.MutationResult{
		Operation:         models.OpRegisterSale,
		SaleID:            result.SaleID,
		SaleNumber:        result.SaleNumber,
		TotalCents:        result.TotalCents,
		Items:             result.Items,
		StockAfter:        stockAfter,
		RevenueCentsAfter: result.RevenueCents,
		ProfitCentsAfter:  result.ProfitCents,
	}, nil
}

func (d *Dispatcher) registerExpense(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	result, err := d.store.RegisterExpense(ctx, store.ExpenseInput{
		Date:        ents.Date,
		Category:    ents.Category,
		Description: ents.Description,
		AmountCents: *ents.AmountCents,
	})
	if err != nil {
		return nil, err
	}

	return &models.MutationResult{
		Operation:        models.OpRegisterExpense,
		ExpenseID:        result.ExpenseID,
		TotalCents:       result.AmountCents,
		ProfitCentsAfter: result.ProfitCents,
	}, nil
}

func (d *Dispatcher) registerProduct(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	sku := ents.SKU
	if sku == "" {
		sku = normalize.SKUFromName(ents.Name)
	}

	var costCents int64
	if ents.UnitCostCents != nil {
		costCents = *ents.UnitCostCents
	}

	result, err := d.store.RegisterProduct(ctx, store.ProductInput{
		SKU:            sku,
		Name:           ents.Name,
		Description:    ents.Description,
		UnitPriceCents: *ents.UnitPriceCents,
		UnitCostCents:  costCents,
	})
	if err != nil {
		return nil, err
	}

	return &models.MutationResult{
		Operation: models.OpRegisterProduct,
		ProductID: result.ProductID,
		SKU:       result.SKU,
	}, nil
}

func (d *Dispatcher) addStock(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	result, err := d.store.AddStock(ctx, store.StockInput{
		ProductID: *ents.ProductID,
		Quantity:  ents.Quantity,
	})
	if err != nil {
		return nil, err
	}

	return &models.MutationResult{
		Operation:   models.OpAddStock,
		ProductID:   result.ProductID,
		MovementIDs: []int64{result.MovementID},
		StockAfter: []models.StockLevel{{
			ProductID: result.ProductID,
			SKU:       ents.ProductSKU,
			Name:      ents.ProductName,
			StockQty:  result.StockQty,
		}},
	}, nil
}

func (d *Dispatcher) deactivateProduct(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	result, err := d.store.DeactivateProduct(ctx, *ents.ProductID)
	if err != nil {
		return nil, err
	}

	return &models.MutationResult{
		Operation: models.OpDeactivateProduct,
		ProductID: result.ProductID,
		SKU:       result.SKU,
	}, nil
}

// ==========================
// CANCELLATIONS
// ==========================

// cancelSaleTarget cancels the sale the user named by id, or the most
// recent one when no explicit target was given.
func (d *Dispatcher) cancelSaleTarget(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	if ents.TargetID != nil {
		return d.cancelSale(ctx, *ents.TargetID)
	}
	last, err := d.store.GetLastSale(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.NewBusinessRuleError("no hay ventas para cancelar", "")
	}
	return d.cancelSale(ctx, last.ID)
}

func (d *Dispatcher) cancelSale(ctx context.Context, saleID int64) (*models.MutationResult, error) {
	result, err := d.store.CancelSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &models.MutationResult{
		Operation:         models.OpCancelSale,
		SaleNumber:        result.SaleNumber,
		CancelledCents:    result.CancelledCents,
		RevenueCentsAfter: result.RevenueCents,
		ProfitCentsAfter:  result.ProfitCents,
	}, nil
}

func (d *Dispatcher) cancelExpenseTarget(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	if ents.TargetID != nil {
		return d.cancelExpense(ctx, *ents.TargetID)
	}
	last, err := d.store.GetLastExpense(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.NewBusinessRuleError("no hay gastos para cancelar", "")
	}
	return d.cancelExpense(ctx, last.ID)
}

func (d *Dispatcher) cancelExpense(ctx context.Context, expenseID int64) (*models.MutationResult, error) {
	result, err := d.store.CancelExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return &models.MutationResult{
		Operation:        models.OpCancelExpense,
		CancelledCents:   result.CancelledCents,
		ProfitCentsAfter: result.ProfitCents,
	}, nil
}

func (d *Dispatcher) cancelStockTarget(ctx context.Context, ents *models.ResolvedEntities) (*models.MutationResult, error) {
	if ents.TargetID != nil {
		return d.cancelStockMovement(ctx, *ents.TargetID)
	}
	last, err := d.store.GetLastStockMovement(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.NewBusinessRuleError("no hay movimientos de stock para cancelar", "")
	}
	return d.cancelStockMovement(ctx, last.ID)
}

func (d *Dispatcher) cancelStockMovement(ctx context.Context, movementID int64) (*models.MutationResult, error) {
	result, err := d.store.CancelStockMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}
	return &models.MutationResult{
		Operation:    models.OpCancelStock,
		SKU:          result.SKU,
		CancelledQty: result.CancelledQty,
		StockAfter: []models.StockLevel{{
			SKU:      result.SKU,
			Name:     result.ProductName,
			StockQty: result.StockQty,
		}},
	}, nil
}

func (d *Dispatcher) cancelLastOperation(ctx context.Context) (*models.MutationResult, error) {
	last, err := d.store.GetLastOperation(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.NewBusinessRuleError("no hay operaciones recientes para cancelar", "")
	}

	switch last.Type {
	case store.LastOpSale:
		return d.cancelSale(ctx, last.Sale.ID)
	case store.LastOpExpense:
		return d.cancelExpense(ctx, last.Expense.ID)
	default:
		return d.cancelStockMovement(ctx, last.Movement.ID)
	}
}
