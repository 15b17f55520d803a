// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-assistant/internal/analytics"
	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/dispatch"
	"pos-assistant/internal/models"
	"pos-assistant/internal/oracle"
	"pos-assistant/internal/resolve"
	"pos-assistant/internal/store"
)

// ==========================
// FIXTURES
// ==========================

// stubOracle returns a canned classification so pipeline behavior is
// fully deterministic.
type stubOracle struct {
	classification  *models.Classification
	classifyErr     error
	classifyHistory []models.Turn

	disambiguation    *oracle.DisambiguationResult
	disambiguateErr   error
	disambiguateCalls int
}

func (s *stubOracle) Classify(ctx context.Context, utterance string, history []models.Turn) (*models.Classification, error) {
	s.classifyHistory = history
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	return s.classification, nil
}

func (s *stubOracle) Disambiguate(ctx context.Context, phrase string, candidates []models.Product) (*oracle.DisambiguationResult, error) {
	s.disambiguateCalls++
	if s.disambiguateErr != nil {
		return nil, s.disambiguateErr
	}
	return s.disambiguation, nil
}

// fakeStore is an in-memory catalog with real sale semantics: catalog
// pricing, stock decrement, insufficient-stock rejection. Mutations are
// counted so tests can assert the clarification path touches nothing.
type fakeStore struct {
	store.Store
	products      []models.Product
	stock         map[int64]int64
	mutationCalls int

	revenueCents       int64
	expensesCents      int64
	expensesUnfiltered int64
	profitCents        int64

	lastSaleInput   *store.SaleInput
	cancelledSaleID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: []models.Product{
			{ID: 4, SKU: "BC-KEYCHAIN", Name: "Llavero", UnitPriceCents: 800, UnitCostCents: 300, IsActive: true},
			{ID: 3, SKU: "BC-BRACELET-GOLD", Name: "Pulsera Dorada", UnitPriceCents: 3000, UnitCostCents: 1200, IsActive: true},
			{ID: 2, SKU: "BC-BRACELET-BLACK", Name: "Pulsera Negra", UnitPriceCents: 2550, UnitCostCents: 1000, IsActive: true},
			{ID: 1, SKU: "BC-BRACELET-CLASSIC", Name: "Pulsera Clásica", UnitPriceCents: 2000, UnitCostCents: 800, IsActive: true},
		},
		stock: map[int64]int64{1: 5, 2: 10, 3: 50, 4: 25},
	}
}

func (f *fakeStore) product(id int64) *models.Product {
	for _, p := range f.products {
		if p.ID == id {
			product := p
			return &product
		}
	}
	return nil
}

func (f *fakeStore) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	return f.products, nil
}

func (f *fakeStore) ProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	for _, p := range f.products {
		if p.SKU == sku {
			product := p
			return &product, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return f.product(id), nil
}

func (f *fakeStore) StockLevels(ctx context.Context, productID *int64) ([]models.StockLevel, error) {
	var levels []models.StockLevel
	for _, p := range f.products {
		if productID != nil && p.ID != *productID {
			continue
		}
		levels = append(levels, models.StockLevel{ProductID: p.ID, SKU: p.SKU, Name: p.Name, StockQty: f.stock[p.ID]})
	}
	return levels, nil
}

func (f *fakeStore) RevenueCents(ctx context.Context, filter store.AnalyticsFilter) (int64, error) {
	return f.revenueCents, nil
}

func (f *fakeStore) ExpensesCents(ctx context.Context, filter store.AnalyticsFilter) (int64, error) {
	if filter.ProductID != nil || filter.DateFrom != nil || filter.DateTo != nil || filter.Category != nil {
		return f.expensesCents, nil
	}
	return f.expensesUnfiltered, nil
}

func (f *fakeStore) ProfitCents(ctx context.Context) (int64, error) {
	return f.profitCents, nil
}

func (f *fakeStore) SalesSummary(ctx context.Context, filter store.AnalyticsFilter) ([]store.SalesSummaryRow, error) {
	return nil, nil
}

func (f *fakeStore) RegisterSale(ctx context.Context, in store.SaleInput) (*store.SaleResult, error) {
	f.mutationCalls++
	f.lastSaleInput = &in

	result := &store.SaleResult{SaleID: 1, SaleNumber: "S-TEST0001"}
	var profit int64
	for _, item := range in.Items {
		p := f.product(item.ProductID)
		if p == nil {
			return nil, apperrors.NewBusinessRuleError("producto no encontrado", "")
		}
		if f.stock[p.ID] < item.Quantity {
			return nil, apperrors.NewBusinessRuleError(
				fmt.Sprintf("no hay suficiente stock de %s", p.Name), "")
		}
		price := p.UnitPriceCents
		if item.UnitPriceCents != nil {
			price = *item.UnitPriceCents
		}
		line := price * item.Quantity
		f.stock[p.ID] -= item.Quantity
		result.TotalCents += line
		profit += line - p.UnitCostCents*item.Quantity
		result.Items = append(result.Items, models.SaleItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: price,
			LineTotalCents: line,
		})
	}
	f.revenueCents += result.TotalCents
	f.profitCents += profit
	result.RevenueCents = f.revenueCents
	result.ProfitCents = f.profitCents
	return result, nil
}

func (f *fakeStore) RegisterExpense(ctx context.Context, in store.ExpenseInput) (*store.ExpenseResult, error) {
	f.mutationCalls++
	f.expensesUnfiltered += in.AmountCents
	f.profitCents -= in.AmountCents
	return &store.ExpenseResult{ExpenseID: 9, AmountCents: in.AmountCents, ProfitCents: f.profitCents}, nil
}

func (f *fakeStore) RegisterProduct(ctx context.Context, in store.ProductInput) (*store.ProductResult, error) {
	f.mutationCalls++
	return &store.ProductResult{ProductID: 5, SKU: in.SKU}, nil
}

func (f *fakeStore) AddStock(ctx context.Context, in store.StockInput) (*store.StockResult, error) {
	f.mutationCalls++
	f.stock[in.ProductID] += in.Quantity
	return &store.StockResult{ProductID: in.ProductID, MovementID: 77, StockQty: f.stock[in.ProductID]}, nil
}

func (f *fakeStore) CancelSale(ctx context.Context, saleID int64) (*store.CancelSaleResult, error) {
	f.mutationCalls++
	f.cancelledSaleID = saleID
	return &store.CancelSaleResult{
		SaleNumber:     fmt.Sprintf("S-%06d", saleID),
		CancelledCents: 5100,
		RevenueCents:   f.revenueCents,
		ProfitCents:    f.profitCents,
	}, nil
}

func newTestOrchestrator(t *testing.T, fs *fakeStore, classifier oracle.Classifier) *Orchestrator {
	t.Helper()
	log := logger.NewTestLogger(t)
	return NewOrchestrator(
		classifier,
		resolve.NewResolver(fs, 4, log),
		dispatch.NewDispatcher(fs, log),
		analytics.NewExecutor(fs, 0, log),
		Options{ConfidenceThreshold: 0.6},
		log,
	)
}

func saleClassification(intent models.Intent, items ...models.ItemSpan) *models.Classification {
	return &models.Classification{
		Intent:     intent,
		Operation:  models.OpRegisterSale,
		Confidence: 0.95,
		Entities:   models.EntitySpans{Items: items},
	}
}

// ==========================
// MUTATION PATH
// ==========================

func TestHandleMessageRegisterSale(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: saleClassification(models.IntentMutation,
		models.ItemSpan{ProductRef: "pulseras negras", Quantity: 2})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí 2 pulseras negras", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, fs.mutationCalls)
	// Catalog price times quantity, and stock down by exactly the
	// quantity sold.
	assert.Contains(t, resp.Answer, "Venta registrada")
	assert.Contains(t, resp.Answer, "$51.00")
	assert.Equal(t, int64(8), fs.stock[2])
	assert.Equal(t, "REGISTER_SALE", resp.Metadata["operation"])
	assert.Equal(t, "S-TEST0001", resp.Metadata["sale_number"])
}

func TestHandleMessageUserQuotedPriceWins(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: saleClassification(models.IntentMutation,
		models.ItemSpan{ProductRef: "pulseras negras", Quantity: 2, UnitPrice: 20.00})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí 2 pulseras negras a $20", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "$40.00")
}

func TestHandleMessageMutationThenAnalytics(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: saleClassification(models.IntentMutationThenAnalytics,
		models.ItemSpan{ProductRef: "doradas", Quantity: 20})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "acabo de vender 20 doradas, cómo queda el stock", nil)

	require.NoError(t, err)
	require.NotNil(t, fs.lastSaleInput)
	assert.Equal(t, int64(3), fs.lastSaleInput.Items[0].ProductID)
	assert.Equal(t, int64(30), fs.stock[3])
	// Mutation summary plus the follow-up stock figures, scoped to the
	// sold product.
	assert.Contains(t, resp.Answer, "Venta registrada")
	assert.Contains(t, resp.Answer, "Stock actual")
	assert.Contains(t, resp.Answer, "Pulsera Dorada")
	assert.NotContains(t, resp.Answer, "Llavero")
}

func TestHandleMessageInsufficientStockSurfacesRule(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: saleClassification(models.IntentMutation,
		models.ItemSpan{ProductRef: "pulseras negras", Quantity: 100})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí 100 pulseras negras", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "no hay suficiente stock de Pulsera Negra")
	assert.Equal(t, string(apperrors.ErrCodeBusinessRuleViolation), resp.Metadata["error_code"])
	assert.Equal(t, int64(10), fs.stock[2])
}

func TestHandleMessageRegisterExpense(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: &models.Classification{
		Intent:     models.IntentMutation,
		Operation:  models.OpRegisterExpense,
		Confidence: 0.9,
		Entities:   models.EntitySpans{Amount: "$120.50", Description: "envío de paquetes", Date: "ayer"},
	}}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "ayer gasté $120.50 en envíos", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, fs.mutationCalls)
	assert.Contains(t, resp.Answer, "Gasto registrado: $120.50")
}

func TestHandleMessageNegativeStockAdjustment(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: &models.Classification{
		Intent:     models.IntentMutation,
		Operation:  models.OpAddStock,
		Confidence: 0.9,
		Entities:   models.EntitySpans{ProductRef: "llavero", Quantity: -5},
	}}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "saqué 5 llaveros del stock", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, fs.mutationCalls)
	assert.Equal(t, int64(20), fs.stock[4])
	assert.Contains(t, resp.Answer, "20 unidades")
}

func TestHandleMessageCancelSaleByExplicitID(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: &models.Classification{
		Intent:     models.IntentMutation,
		Operation:  models.OpCancelSale,
		Confidence: 0.9,
		Entities:   models.EntitySpans{Target: "7"},
	}}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "cancelá la venta 7", nil)

	require.NoError(t, err)
	assert.Equal(t, int64(7), fs.cancelledSaleID)
	assert.Contains(t, resp.Answer, "Venta S-000007 cancelada")
}

// ==========================
// CLARIFICATION PATHS
// ==========================

func TestHandleMessageUnresolvedProductBlocksMutation(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: saleClassification(models.IntentMutation,
		models.ItemSpan{ProductRef: "collar de perlas", Quantity: 1})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí un collar de perlas", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, fs.mutationCalls)
	assert.Contains(t, resp.Answer, "No pude identificar")
	assert.Equal(t, string(apperrors.ErrCodeResolutionUnresolved), resp.Metadata["error_code"])
}

func TestHandleMessageAmbiguousAsksUserWhenOracleCannotPick(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{
		classification: saleClassification(models.IntentMutation,
			models.ItemSpan{ProductRef: "pulseras", Quantity: 1}),
		disambiguateErr: oracle.ErrClassificationFailed,
	}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí una pulsera", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, stub.disambiguateCalls)
	assert.Equal(t, 0, fs.mutationCalls)
	assert.Contains(t, resp.Answer, "¿A cuál te referís?")
	assert.Contains(t, resp.Answer, "Pulsera Negra")
	assert.Contains(t, resp.Answer, "Pulsera Dorada")
}

func TestHandleMessageOracleDisambiguationResolves(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{
		classification: saleClassification(models.IntentMutation,
			models.ItemSpan{ProductRef: "pulseras", Quantity: 1}),
		disambiguation: &oracle.DisambiguationResult{ProductID: 3, Confidence: 0.9},
	}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí una pulsera, la dorada", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, stub.disambiguateCalls)
	require.NotNil(t, fs.lastSaleInput)
	assert.Equal(t, int64(3), fs.lastSaleInput.Items[0].ProductID)
	assert.Contains(t, resp.Answer, "Venta registrada")
}

func TestHandleMessageLowConfidenceClarifies(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: &models.Classification{
		Intent:     models.IntentMutation,
		Operation:  models.OpRegisterSale,
		Confidence: 0.3,
	}}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "eso que hablamos", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, fs.mutationCalls)
	assert.Contains(t, resp.Answer, "No estoy seguro")
	assert.Equal(t, string(apperrors.ErrCodeClassificationLowConfidence), resp.Metadata["error_code"])
}

func TestHandleMessageOracleTimeoutDegrades(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classifyErr: oracle.ErrOracleTimeout}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí 2 pulseras", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "No estoy seguro")
	assert.Equal(t, string(apperrors.ErrCodeClassificationTimeout), resp.Metadata["error_code"])
}

func TestHandleMessageGreeting(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: &models.Classification{
		Intent:     models.IntentGreeting,
		Confidence: 0.99,
	}}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "hola!", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "¡Hola!")
	assert.Equal(t, "GREETING", resp.Metadata["intent"])
}

func TestHandleMessageCapsHistoryForwardedToOracle(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: &models.Classification{
		Intent:     models.IntentGreeting,
		Confidence: 0.99,
	}}
	log := logger.NewTestLogger(t)
	o := NewOrchestrator(
		stub,
		resolve.NewResolver(fs, 4, log),
		dispatch.NewDispatcher(fs, log),
		analytics.NewExecutor(fs, 0, log),
		Options{ConfidenceThreshold: 0.6, MaxHistoryTurns: 2},
		log,
	)

	history := []models.Turn{
		{Role: models.RoleUser, Content: "vendí 2 pulseras"},
		{Role: models.RoleAssistant, Content: "¡Venta registrada!"},
		{Role: models.RoleUser, Content: "¿cuánto stock tengo?"},
		{Role: models.RoleAssistant, Content: "Stock actual: 8"},
	}
	_, err := o.HandleMessage(context.Background(), "tenant-a", "hola", history)

	require.NoError(t, err)
	require.Len(t, stub.classifyHistory, 2)
	assert.Equal(t, "¿cuánto stock tengo?", stub.classifyHistory[0].Content)
}

// ==========================
// ANALYTICS PATH
// ==========================

func analyticsClassification(spans models.EntitySpans) *models.Classification {
	return &models.Classification{
		Intent:     models.IntentAnalytics,
		Confidence: 0.9,
		Entities:   spans,
	}
}

func TestHandleMessageRevenueQuery(t *testing.T) {
	fs := newFakeStore()
	fs.revenueCents = 12500
	stub := &stubOracle{classification: analyticsClassification(models.EntitySpans{QueryKind: "REVENUE"})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "¿cuánto vendí en total?", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "Ingresos totales: $125.00")
}

func TestHandleMessageStockQueryFilteredByProduct(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: analyticsClassification(models.EntitySpans{
		QueryKind:  "STOCK",
		ProductRef: "llavero",
	})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "¿cuántos llaveros me quedan?", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "Llavero")
	assert.Contains(t, resp.Answer, "25 unidades")
	assert.NotContains(t, resp.Answer, "Pulsera")
}

func TestHandleMessageDegenerateExpenseFilterClarifies(t *testing.T) {
	fs := newFakeStore()
	fs.expensesCents = 0
	fs.expensesUnfiltered = 8000
	stub := &stubOracle{classification: analyticsClassification(models.EntitySpans{
		QueryKind:  "EXPENSES",
		TimePeriod: "ayer",
	})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "¿cuánto gasté ayer?", nil)

	require.NoError(t, err)
	// Expenses exist; the date filter excluded them all. The answer
	// must question the filter, never claim there are no expenses.
	assert.Contains(t, resp.Answer, "filtro")
	assert.NotContains(t, resp.Answer, "$0.00")
}

func TestHandleMessageInvalidQueryKind(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: analyticsClassification(models.EntitySpans{QueryKind: "DROP_TABLES"})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "mostrame drop tables", nil)

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "No reconozco esa consulta")
	assert.Equal(t, string(apperrors.ErrCodeInvalidQueryKind), resp.Metadata["error_code"])
}

// ==========================
// STATE TRACE
// ==========================

func TestHandleMessageTraceCoversStates(t *testing.T) {
	fs := newFakeStore()
	stub := &stubOracle{classification: saleClassification(models.IntentMutationThenAnalytics,
		models.ItemSpan{ProductRef: "BC-KEYCHAIN", Quantity: 1})}
	o := newTestOrchestrator(t, fs, stub)

	resp, err := o.HandleMessage(context.Background(), "tenant-a", "vendí un llavero, cómo va el stock", nil)

	require.NoError(t, err)
	trace, ok := resp.Metadata["state_trace"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"START", "CLASSIFY", "RESOLVE", "DISPATCH", "ANALYTICS", "COMPOSE", "END"}, trace)
}
