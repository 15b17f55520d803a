// internal/models/resolved.go
package models

// ResolvedItem is one sale line after product resolution.
type ResolvedItem struct {
	ProductID      int64  `json:"productId"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents *int64 `json:"unitPriceCents,omitempty"`
	Method         string `json:"method"`
}

// ResolvedEntities is the per-field resolution outcome built by the
// resolver and consumed read-only by dispatch and analytics. A field is
// either canonical (set here, with its method tag) or listed in
// Unresolved with a reason; it is never a silent guess.
type ResolvedEntities struct {
	Items          []ResolvedItem `json:"items,omitempty"`
	ProductID      *int64         `json:"productId,omitempty"`
	ProductSKU     string         `json:"productSku,omitempty"`
	ProductName    string         `json:"productName,omitempty"`
	ProductMethod  string         `json:"productMethod,omitempty"`
	Quantity       int64          `json:"quantity,omitempty"`
	AmountCents    *int64         `json:"amountCents,omitempty"`
	Date           string         `json:"date,omitempty"`
	Name           string         `json:"name,omitempty"`
	SKU            string         `json:"sku,omitempty"`
	Description    string         `json:"description,omitempty"`
	Category       string         `json:"category,omitempty"`
	Status         string         `json:"status,omitempty"`
	UnitPriceCents *int64         `json:"unitPriceCents,omitempty"`
	UnitCostCents  *int64         `json:"unitCostCents,omitempty"`

	// TargetID is the explicit record id a cancellation names; nil
	// means the most recent record.
	TargetID *int64 `json:"targetId,omitempty"`

	// Unresolved maps field name to the reason resolution failed.
	Unresolved map[string]string `json:"unresolved,omitempty"`
	// AmbiguousCandidates holds the candidate set for fields that
	// matched more than one product with equal evidence.
	AmbiguousCandidates map[string][]Product `json:"ambiguousCandidates,omitempty"`
}

// MarkUnresolved records a failed field with its reason.
func (r *ResolvedEntities) MarkUnresolved(field, reason string) {
	if r.Unresolved == nil {
		r.Unresolved = make(map[string]string)
	}
	r.Unresolved[field] = reason
}

// MarkAmbiguous records the candidate set for a field.
func (r *ResolvedEntities) MarkAmbiguous(field string, candidates []Product) {
	if r.AmbiguousCandidates == nil {
		r.AmbiguousCandidates = make(map[string][]Product)
	}
	r.AmbiguousCandidates[field] = candidates
}

// UnresolvedFields lists the failed field names, ambiguous included.
func (r *ResolvedEntities) UnresolvedFields() []string {
	fields := make([]string, 0, len(r.Unresolved)+len(r.AmbiguousCandidates))
	for f := range r.Unresolved {
		fields = append(fields, f)
	}
	for f := range r.AmbiguousCandidates {
		if _, dup := r.Unresolved[f]; !dup {
			fields = append(fields, f)
		}
	}
	return fields
}
