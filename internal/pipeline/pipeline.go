// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pos-assistant/internal/analytics"
	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/common/metrics"
	"pos-assistant/internal/dispatch"
	"pos-assistant/internal/models"
	"pos-assistant/internal/oracle"
	"pos-assistant/internal/resolve"
	"pos-assistant/internal/store"
)

// ==========================
// ORCHESTRATOR
// ==========================

// Options tunes one orchestrator instance.
type Options struct {
	ConfidenceThreshold float64
	RequestTimeout      time.Duration

	// MaxHistoryTurns caps the conversation turns forwarded to the
	// oracle; zero forwards everything the history store returned.
	MaxHistoryTurns int
}

// Orchestrator drives one utterance through the closed state machine:
// START, CLASSIFY, then ANALYTICS or RESOLVE, optionally DISPATCH and a
// post-mutation ANALYTICS, always ending in COMPOSE. Stages communicate
// only through the per-request Context; the orchestrator owns every
// transition and no stage decides control flow on its own.
type Orchestrator struct {
	classifier oracle.Classifier
	resolver   *resolve.Resolver
	dispatcher *dispatch.Dispatcher
	executor   *analytics.Executor
	opts       Options
	log        logger.Logger
	now        func() time.Time
}

func NewOrchestrator(
	classifier oracle.Classifier,
	resolver *resolve.Resolver,
	dispatcher *dispatch.Dispatcher,
	executor *analytics.Executor,
	opts Options,
	log logger.Logger,
) *Orchestrator {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.6
	}
	return &Orchestrator{
		classifier: classifier,
		resolver:   resolver,
		dispatcher: dispatcher,
		executor:   executor,
		opts:       opts,
		log:        log.With(map[string]interface{}{"component": "pipeline"}),
		now:        time.Now,
	}
}

// Response is the outward result of one pipeline pass: the user-facing
// answer text plus structured metadata for callers and tests.
type Response struct {
	Answer   string                 `json:"answer"`
	Metadata map[string]interface{} `json:"metadata"`
}

// HandleMessage is the single entry point. It always produces an answer;
// recoverable conditions become clarifications and only a data-access
// fault is also returned as an error, alongside the generic apology the
// caller can still send.
func (o *Orchestrator) HandleMessage(ctx context.Context, tenantID, utterance string, history []models.Turn) (*Response, error) {
	if o.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RequestTimeout)
		defer cancel()
	}
	if o.opts.MaxHistoryTurns > 0 && len(history) > o.opts.MaxHistoryTurns {
		history = history[len(history)-o.opts.MaxHistoryTurns:]
	}

	pc := newContext(tenantID, utterance, history)
	state := StateClassify
	for state != StateEnd {
		pc.visit(state)
		start := o.now()
		switch state {
		case StateClassify:
			state = o.classify(ctx, pc)
		case StateResolve:
			state = o.resolveEntities(ctx, pc)
		case StateDispatch:
			state = o.dispatchOperation(ctx, pc)
		case StateAnalytics:
			state = o.runAnalytics(ctx, pc)
		case StateCompose:
			state = o.compose(pc)
		default:
			o.log.Error("Unknown pipeline state", map[string]interface{}{"state": string(state)})
			state = StateCompose
		}
		metrics.StageDuration.WithLabelValues(string(pc.Trace[len(pc.Trace)-1])).Observe(time.Since(start).Seconds())
	}
	pc.visit(StateEnd)

	trace := make([]string, len(pc.Trace))
	for i, s := range pc.Trace {
		trace[i] = string(s)
	}
	pc.Metadata["state_trace"] = trace

	metrics.PipelineRequests.WithLabelValues(string(pc.Intent())).Inc()
	if pc.Err != nil {
		metrics.PipelineFailures.WithLabelValues(string(apperrors.CodeOf(pc.Err))).Inc()
	}

	resp := &Response{Answer: pc.Answer, Metadata: pc.Metadata}
	if apperrors.IsFatal(pc.Err) {
		o.log.Error("Pipeline request failed", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     pc.Err.Error(),
		})
		return resp, pc.Err
	}
	return resp, nil
}

// ==========================
// CLASSIFY
// ==========================

func (o *Orchestrator) classify(ctx context.Context, pc *Context) State {
	cls, err := o.classifier.Classify(ctx, pc.Utterance, pc.History)
	if err != nil {
		if errors.Is(err, oracle.ErrOracleTimeout) {
			metrics.OracleCalls.WithLabelValues("timeout").Inc()
			pc.Err = apperrors.NewClassificationTimeoutError()
		} else {
			metrics.OracleCalls.WithLabelValues("error").Inc()
			pc.Err = apperrors.NewClassificationFailedError(err)
		}
		o.log.Warn("Classification degraded to clarification", map[string]interface{}{
			"tenant_id": pc.TenantID,
			"error":     err.Error(),
		})
		return StateCompose
	}
	metrics.OracleCalls.WithLabelValues("success").Inc()
	pc.Classification = cls

	if cls.Confidence < o.opts.ConfidenceThreshold {
		pc.Err = apperrors.NewLowConfidenceError(cls.Confidence, o.opts.ConfidenceThreshold)
		return StateCompose
	}

	switch cls.Intent {
	case models.IntentGreeting, models.IntentUnresolved:
		return StateCompose
	case models.IntentAnalytics:
		return StateAnalytics
	case models.IntentMutation, models.IntentMutationThenAnalytics:
		return StateResolve
	default:
		pc.Err = apperrors.NewClassificationFailedError(fmt.Errorf("unknown intent %q", cls.Intent))
		return StateCompose
	}
}

// ==========================
// RESOLVE
// ==========================

// resolveEntities turns the oracle's raw spans into canonical entities.
// Every required field either resolves or gets marked with a reason;
// nothing is guessed. Any unresolved or ambiguous field short-circuits
// to COMPOSE so no mutation is attempted.
func (o *Orchestrator) resolveEntities(ctx context.Context, pc *Context) State {
	spans := pc.Classification.Entities
	op := pc.Classification.Operation
	ents := &models.ResolvedEntities{
		Status:      spans.Status,
		Description: spans.Description,
		Category:    spans.Category,
		Name:        spans.Name,
	}

	switch op {
	case models.OpRegisterSale:
		o.resolveSaleItems(ctx, pc, spans.Items, ents)

	case models.OpRegisterExpense:
		o.resolveExpense(pc, spans, ents)

	case models.OpRegisterProduct:
		if spans.Name == "" {
			ents.MarkUnresolved("name", "no product name given")
		}
		if spans.UnitPrice > 0 {
			ents.UnitPriceCents = centsPtr(spans.UnitPrice)
		} else {
			ents.MarkUnresolved("unit_price", "no unit price given")
		}
		if spans.UnitCost > 0 {
			ents.UnitCostCents = centsPtr(spans.UnitCost)
		}

	case models.OpAddStock:
		o.resolveProductField(ctx, pc, spans.ProductRef, ents)
		// Negative quantities are downward adjustments.
		if spans.Quantity != 0 {
			ents.Quantity = spans.Quantity
		} else {
			ents.MarkUnresolved("quantity", "no quantity given")
		}

	case models.OpDeactivateProduct:
		o.resolveProductField(ctx, pc, spans.ProductRef, ents)

	case models.OpCancelSale, models.OpCancelExpense, models.OpCancelStock, models.OpCancelLastOperation:
		// An explicit numeric target picks a record by id; anything
		// else ("last", "la última", blank) means the most recent one.
		if id, err := strconv.ParseInt(strings.TrimSpace(spans.Target), 10, 64); err == nil && id > 0 {
			ents.TargetID = &id
		}
	}
	if pc.Err != nil {
		return StateCompose
	}
	pc.Entities = ents

	if fields := ents.UnresolvedFields(); len(fields) > 0 {
		if len(ents.AmbiguousCandidates) > 0 {
			for field, candidates := range ents.AmbiguousCandidates {
				names := make([]string, len(candidates))
				for i, c := range candidates {
					names[i] = c.Name
				}
				pc.Err = apperrors.NewResolutionAmbiguousError(field, names)
				break
			}
		} else {
			pc.Err = apperrors.NewResolutionUnresolvedError(fields)
		}
		return StateCompose
	}
	return StateDispatch
}

func (o *Orchestrator) resolveSaleItems(ctx context.Context, pc *Context, items []models.ItemSpan, ents *models.ResolvedEntities) {
	if len(items) == 0 {
		ents.MarkUnresolved("items", "no sold items given")
		return
	}
	for i, span := range items {
		field := fmt.Sprintf("items[%d].product", i)
		res := o.resolveProductRef(ctx, pc, span.ProductRef)
		if pc.Err != nil {
			return
		}
		switch res.Status {
		case resolve.StatusResolved:
			item := models.ResolvedItem{
				ProductID: res.Product.ID,
				SKU:       res.Product.SKU,
				Name:      res.Product.Name,
				Quantity:  span.Quantity,
				Method:    string(res.Method),
			}
			// An unstated quantity means one unit.
			if item.Quantity <= 0 {
				item.Quantity = 1
			}
			if span.UnitPrice > 0 {
				item.UnitPriceCents = centsPtr(span.UnitPrice)
			}
			ents.Items = append(ents.Items, item)
		case resolve.StatusAmbiguous:
			ents.MarkAmbiguous(field, res.Candidates)
		default:
			ents.MarkUnresolved(field, res.Reason)
		}
	}
}

func (o *Orchestrator) resolveExpense(pc *Context, spans models.EntitySpans, ents *models.ResolvedEntities) {
	if spans.Amount == "" {
		ents.MarkUnresolved("amount", "no amount given")
	} else if money := resolve.ResolveMoney(spans.Amount); money.Status == resolve.StatusResolved {
		cents := money.Cents
		ents.AmountCents = &cents
	} else {
		ents.MarkUnresolved("amount", money.Reason)
	}

	// Date is optional; the store defaults a missing date to today. A
	// stated but unreadable date is asked about, never silently dropped.
	if spans.Date != "" {
		if date := resolve.ResolveDate(spans.Date, o.now()); date.Status == resolve.StatusResolved {
			ents.Date = date.ISO
		} else {
			ents.MarkUnresolved("date", date.Reason)
		}
	}
	if ents.Description == "" {
		ents.Description = spans.Name
	}
}

// resolveProductField resolves a single product reference into the
// singular product slot.
func (o *Orchestrator) resolveProductField(ctx context.Context, pc *Context, ref string, ents *models.ResolvedEntities) {
	res := o.resolveProductRef(ctx, pc, ref)
	if pc.Err != nil {
		return
	}
	switch res.Status {
	case resolve.StatusResolved:
		id := res.Product.ID
		ents.ProductID = &id
		ents.ProductSKU = res.Product.SKU
		ents.ProductName = res.Product.Name
		ents.ProductMethod = string(res.Method)
	case resolve.StatusAmbiguous:
		ents.MarkAmbiguous("product", res.Candidates)
	default:
		ents.MarkUnresolved("product", res.Reason)
	}
}

// resolveProductRef runs the catalog resolver and, on an ambiguous
// outcome, gives the oracle one chance to pick among the candidates.
// A low-confidence or failed pick keeps the ambiguity so the user gets
// asked instead of guessed at.
func (o *Orchestrator) resolveProductRef(ctx context.Context, pc *Context, ref string) *resolve.ProductResolution {
	res, err := o.resolver.ResolveProduct(ctx, ref)
	if err != nil {
		pc.Err = err
		return nil
	}
	if res.Status != resolve.StatusAmbiguous {
		return res
	}

	pick, err := o.classifier.Disambiguate(ctx, ref, res.Candidates)
	if err != nil || pick == nil {
		metrics.OracleCalls.WithLabelValues("disambiguation_failed").Inc()
		return res
	}
	metrics.OracleCalls.WithLabelValues("success").Inc()
	if pick.Confidence < o.opts.ConfidenceThreshold {
		return res
	}
	for _, c := range res.Candidates {
		if c.ID == pick.ProductID {
			product := c
			return &resolve.ProductResolution{
				Status:  resolve.StatusResolved,
				Method:  resolve.MethodOracle,
				Product: &product,
			}
		}
	}
	return res
}

// ==========================
// DISPATCH
// ==========================

func (o *Orchestrator) dispatchOperation(ctx context.Context, pc *Context) State {
	// Once dispatch begins the transaction runs to completion; caller
	// cancellation no longer propagates into a half-finished write.
	dctx := context.WithoutCancel(ctx)

	result, err := o.dispatcher.Dispatch(dctx, pc.Classification.Operation, pc.Entities)
	if err != nil {
		pc.Err = err
		return StateCompose
	}
	pc.Mutation = result

	if pc.Intent() == models.IntentMutationThenAnalytics {
		return StateAnalytics
	}
	return StateCompose
}

// ==========================
// ANALYTICS
// ==========================

func (o *Orchestrator) runAnalytics(ctx context.Context, pc *Context) State {
	kind, filter, next := o.analyticsRequest(ctx, pc)
	if next != "" {
		return next
	}

	result, err := o.executor.Query(ctx, kind, filter)
	if err != nil {
		// A committed mutation stays committed; composition reports it
		// and notes the missing follow-up figures.
		pc.Err = err
		return StateCompose
	}
	pc.Analytics = result
	return StateCompose
}

// analyticsRequest derives the query kind and filter. After a mutation
// the query is scoped to the entities just mutated and defaults to the
// stock view; a pure read takes the oracle's extracted kind, which must
// be on the menu.
func (o *Orchestrator) analyticsRequest(ctx context.Context, pc *Context) (analytics.QueryKind, store.AnalyticsFilter, State) {
	spans := pc.Classification.Entities
	var filter store.AnalyticsFilter

	if pc.Mutation != nil {
		kind := analytics.KindStock
		if k, ok := analytics.KindFromString(spans.QueryKind); ok {
			kind = k
		}
		if id := mutatedProductID(pc.Mutation); id != 0 {
			filter.ProductID = &id
		}
		return kind, filter, ""
	}

	kind, ok := analytics.KindFromString(spans.QueryKind)
	if !ok {
		pc.Err = apperrors.NewInvalidQueryKindError(spans.QueryKind)
		return "", filter, StateCompose
	}

	if spans.ProductRef != "" {
		res := o.resolveProductRef(ctx, pc, spans.ProductRef)
		if pc.Err != nil {
			return "", filter, StateCompose
		}
		switch res.Status {
		case resolve.StatusResolved:
			id := res.Product.ID
			filter.ProductID = &id
		case resolve.StatusAmbiguous:
			names := make([]string, len(res.Candidates))
			for i, c := range res.Candidates {
				names[i] = c.Name
			}
			pc.Err = apperrors.NewResolutionAmbiguousError("product", names)
			return "", filter, StateCompose
		default:
			pc.Err = apperrors.NewResolutionUnresolvedError([]string{"product"})
			return "", filter, StateCompose
		}
	}

	if period := firstNonEmpty(spans.TimePeriod, spans.Date); period != "" {
		if date := resolve.ResolveDate(period, o.now()); date.Status == resolve.StatusResolved {
			iso := date.ISO
			filter.DateFrom = &iso
			filter.DateTo = &iso
		} else {
			o.log.Debug("Ignoring unresolvable time period", map[string]interface{}{"period": period})
		}
	}
	if spans.Category != "" {
		category := spans.Category
		filter.Category = &category
	}
	return kind, filter, ""
}

// mutatedProductID picks the product the follow-up analytics is about.
func mutatedProductID(m *models.MutationResult) int64 {
	if len(m.Items) > 0 {
		return m.Items[0].ProductID
	}
	return m.ProductID
}

func centsPtr(amount float64) *int64 {
	cents := int64(math.Round(amount * 100))
	return &cents
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
