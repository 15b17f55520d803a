// internal/pipeline/compose.go
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"pos-assistant/internal/analytics"
	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/models"
)

// compose turns the accumulated context into the final answer and
// metadata. It is the only stage allowed to produce user-facing text;
// every earlier stage hands it structured data or a typed error.
func (o *Orchestrator) compose(pc *Context) State {
	pc.Metadata["intent"] = string(pc.Intent())
	if pc.Classification != nil {
		pc.Metadata["confidence"] = pc.Classification.Confidence
		if pc.Classification.Operation != "" {
			pc.Metadata["operation"] = string(pc.Classification.Operation)
		}
	}
	if pc.Err != nil {
		pc.Metadata["error_code"] = string(apperrors.CodeOf(pc.Err))
	}

	switch {
	case pc.Err != nil:
		pc.Answer = o.composeError(pc)
	case pc.Intent() == models.IntentGreeting:
		pc.Answer = "¡Hola! Soy tu asistente de negocio. Puedo registrar ventas, gastos y stock, o mostrarte tus números. ¿En qué te ayudo?"
	case pc.Intent() == models.IntentUnresolved:
		pc.Answer = clarificationAnswer
	case pc.Mutation != nil:
		pc.Answer = o.composeMutation(pc)
	case pc.Analytics != nil:
		pc.Answer = composeAnalytics(pc.Analytics)
	default:
		pc.Answer = clarificationAnswer
	}
	return StateEnd
}

const clarificationAnswer = "No estoy seguro de qué querés hacer. ¿Podés decirlo de otra forma? " +
	"Por ejemplo: \"vendí 2 pulseras negras\" o \"¿cuánto stock tengo?\""

// ==========================
// ERROR ANSWERS
// ==========================

func (o *Orchestrator) composeError(pc *Context) string {
	stdErr := apperrors.AsStandard(pc.Err)
	if stdErr == nil {
		return internalErrorAnswer
	}

	// A mutation that already committed is reported even when the
	// follow-up analytics read failed afterwards.
	if pc.Mutation != nil {
		summary := o.composeMutation(pc)
		return summary + "\n\nNo pude leer las cifras de seguimiento, pero la operación quedó registrada."
	}

	switch stdErr.Code {
	case apperrors.ErrCodeClassificationFailed,
		apperrors.ErrCodeClassificationTimeout,
		apperrors.ErrCodeClassificationLowConfidence:
		return clarificationAnswer

	case apperrors.ErrCodeResolutionAmbiguous:
		return composeAmbiguous(pc)

	case apperrors.ErrCodeResolutionUnresolved:
		return composeUnresolved(pc, stdErr)

	case apperrors.ErrCodeValidationFailed:
		if missing, ok := stdErr.Metadata["missing"].([]string); ok && len(missing) > 0 {
			return fmt.Sprintf("Me faltan datos para completar la operación: %s. ¿Podés dármelos?",
				strings.Join(missing, ", "))
		}
		return "Me faltan datos para completar la operación. ¿Podés dar más detalles?"

	case apperrors.ErrCodeBusinessRuleViolation:
		return fmt.Sprintf("No se pudo completar la operación: %s.", stdErr.Message)

	case apperrors.ErrCodeInvalidQueryKind, apperrors.ErrCodeViewNotAllowed:
		return "No reconozco esa consulta. Puedo mostrarte: stock, ingresos, gastos, ganancia, resumen de ventas o la lista de productos."

	default:
		return internalErrorAnswer
	}
}

const internalErrorAnswer = "Ocurrió un error procesando tu mensaje. Por favor intentá de nuevo en unos minutos."

func composeAmbiguous(pc *Context) string {
	if pc.Entities != nil && len(pc.Entities.AmbiguousCandidates) > 0 {
		fields := make([]string, 0, len(pc.Entities.AmbiguousCandidates))
		for field := range pc.Entities.AmbiguousCandidates {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		candidates := pc.Entities.AmbiguousCandidates[fields[0]]
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = fmt.Sprintf("%s (%s)", c.Name, c.SKU)
		}
		return fmt.Sprintf("Encontré varios productos que coinciden: %s. ¿A cuál te referís?",
			strings.Join(names, ", "))
	}

	stdErr := apperrors.AsStandard(pc.Err)
	if names, ok := stdErr.Metadata["candidates"].([]string); ok && len(names) > 0 {
		return fmt.Sprintf("Encontré varios productos que coinciden: %s. ¿A cuál te referís?",
			strings.Join(names, ", "))
	}
	return "Encontré varios productos que coinciden. ¿Podés ser más específico?"
}

func composeUnresolved(pc *Context, stdErr *apperrors.StandardError) string {
	var parts []string
	if pc.Entities != nil && len(pc.Entities.Unresolved) > 0 {
		fields := make([]string, 0, len(pc.Entities.Unresolved))
		for field := range pc.Entities.Unresolved {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts = fields
	} else if fields, ok := stdErr.Metadata["fields"].([]string); ok {
		parts = fields
	}
	if len(parts) == 0 {
		return "No pude identificar a qué te referís. ¿Podés dar más detalles?"
	}
	return fmt.Sprintf("No pude identificar: %s. ¿Podés dar más detalles?", strings.Join(parts, ", "))
}

// ==========================
// MUTATION ANSWERS
// ==========================

func (o *Orchestrator) composeMutation(pc *Context) string {
	m := pc.Mutation
	var b strings.Builder

	switch m.Operation {
	case models.OpRegisterSale:
		fmt.Fprintf(&b, "✅ ¡Venta registrada! (N° %s)\n", m.SaleNumber)
		for _, item := range m.Items {
			fmt.Fprintf(&b, "- %dx %s: %s\n", item.Quantity, item.ProductName, formatMoney(item.LineTotalCents))
		}
		fmt.Fprintf(&b, "Total: %s\n", formatMoney(m.TotalCents))
		fmt.Fprintf(&b, "Ingresos acumulados: %s | Ganancia: %s",
			formatMoney(m.RevenueCentsAfter), formatMoney(m.ProfitCentsAfter))
		if len(m.StockAfter) > 0 {
			b.WriteString("\nStock restante:")
			for _, s := range m.StockAfter {
				fmt.Fprintf(&b, " %s: %d", s.Name, s.StockQty)
			}
		}
		pc.Metadata["sale_id"] = m.SaleID
		pc.Metadata["sale_number"] = m.SaleNumber

	case models.OpRegisterExpense:
		fmt.Fprintf(&b, "✅ Gasto registrado: %s", formatMoney(m.TotalCents))
		fmt.Fprintf(&b, "\nGanancia actualizada: %s", formatMoney(m.ProfitCentsAfter))
		pc.Metadata["expense_id"] = m.ExpenseID

	case models.OpRegisterProduct:
		fmt.Fprintf(&b, "✅ Producto creado con SKU %s.", m.SKU)
		pc.Metadata["product_id"] = m.ProductID
		pc.Metadata["sku"] = m.SKU

	case models.OpAddStock:
		b.WriteString("✅ Stock agregado.")
		for _, s := range m.StockAfter {
			fmt.Fprintf(&b, " %s ahora tiene %d unidades.", s.Name, s.StockQty)
		}
		pc.Metadata["product_id"] = m.ProductID

	case models.OpDeactivateProduct:
		fmt.Fprintf(&b, "✅ Producto %s desactivado. Ya no aparece en el catálogo activo.", m.SKU)
		pc.Metadata["product_id"] = m.ProductID

	case models.OpCancelSale:
		fmt.Fprintf(&b, "✅ Venta %s cancelada por %s. El stock fue restaurado.", m.SaleNumber, formatMoney(m.CancelledCents))
		fmt.Fprintf(&b, "\nIngresos acumulados: %s | Ganancia: %s",
			formatMoney(m.RevenueCentsAfter), formatMoney(m.ProfitCentsAfter))

	case models.OpCancelExpense:
		fmt.Fprintf(&b, "✅ Gasto cancelado por %s.", formatMoney(m.CancelledCents))
		fmt.Fprintf(&b, "\nGanancia actualizada: %s", formatMoney(m.ProfitCentsAfter))

	case models.OpCancelStock:
		fmt.Fprintf(&b, "✅ Movimiento de stock cancelado (%d unidades de %s).", m.CancelledQty, m.SKU)
		for _, s := range m.StockAfter {
			fmt.Fprintf(&b, " Stock actual de %s: %d.", s.Name, s.StockQty)
		}

	default:
		b.WriteString("✅ Operación registrada.")
	}

	if pc.Analytics != nil {
		b.WriteString("\n\n")
		b.WriteString(composeAnalytics(pc.Analytics))
	}
	return b.String()
}

// ==========================
// ANALYTICS ANSWERS
// ==========================

func composeAnalytics(r *analytics.Result) string {
	// A filter that excluded everything gets a clarifying question, not
	// a false "no data" claim.
	if r.FilterExcludedAll {
		return "No encontré registros que coincidan con ese filtro, aunque sí hay datos registrados. ¿Querés revisar el producto o el período?"
	}

	switch r.Kind {
	case analytics.KindStock:
		if len(r.Stock) == 0 {
			return "No hay productos activos con stock registrado."
		}
		var b strings.Builder
		b.WriteString("📦 Stock actual:")
		for _, s := range r.Stock {
			fmt.Fprintf(&b, "\n- %s (%s): %d unidades", s.Name, s.SKU, s.StockQty)
		}
		return b.String()

	case analytics.KindRevenue:
		return fmt.Sprintf("💰 Ingresos totales: %s", formatMoney(r.RevenueCents))

	case analytics.KindExpenses:
		return fmt.Sprintf("Gastos totales: %s", formatMoney(r.ExpensesCents))

	case analytics.KindProfit:
		return fmt.Sprintf("Ganancia: %s", formatMoney(r.ProfitCents))

	case analytics.KindSalesSummary:
		if len(r.Sales) == 0 {
			return "Todavía no hay ventas registradas."
		}
		var b strings.Builder
		b.WriteString("Resumen de ventas:")
		for _, row := range r.Sales {
			fmt.Fprintf(&b, "\n- %s: %d ventas, %s", row.Date, row.SaleCount, formatMoney(row.TotalCents))
		}
		return b.String()

	case analytics.KindProducts:
		if len(r.Products) == 0 {
			return "No hay productos activos en el catálogo."
		}
		var b strings.Builder
		b.WriteString("Catálogo activo:")
		for _, p := range r.Products {
			fmt.Fprintf(&b, "\n- %s (%s): %s", p.Name, p.SKU, formatMoney(p.UnitPriceCents))
		}
		return b.String()
	}
	return internalErrorAnswer
}

// formatMoney renders integer cents as "$12.50"; negatives keep the
// sign in front of the symbol.
func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
