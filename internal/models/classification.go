// internal/models/classification.go
package models

// Intent is the classified purpose of an utterance.
type Intent string

const (
	IntentAnalytics             Intent = "ANALYTICS"
	IntentMutation              Intent = "MUTATION"
	IntentMutationThenAnalytics Intent = "MUTATION_THEN_ANALYTICS"
	IntentGreeting              Intent = "GREETING"
	IntentUnresolved            Intent = "UNRESOLVED"
)

// IncludesMutation reports whether the intent requires the write path.
func (i Intent) IncludesMutation() bool {
	return i == IntentMutation || i == IntentMutationThenAnalytics
}

// Operation is the specific business mutation requested.
type Operation string

const (
	OpRegisterSale        Operation = "REGISTER_SALE"
	OpRegisterExpense     Operation = "REGISTER_EXPENSE"
	OpRegisterProduct     Operation = "REGISTER_PRODUCT"
	OpAddStock            Operation = "ADD_STOCK"
	OpDeactivateProduct   Operation = "DEACTIVATE_PRODUCT"
	OpCancelSale          Operation = "CANCEL_SALE"
	OpCancelExpense       Operation = "CANCEL_EXPENSE"
	OpCancelStock         Operation = "CANCEL_STOCK"
	OpCancelLastOperation Operation = "CANCEL_LAST_OPERATION"
	OpUnknown             Operation = "UNKNOWN"
)

// ItemSpan is one raw {product, quantity} pair as extracted by the oracle,
// before any resolution has happened.
type ItemSpan struct {
	ProductRef string  `json:"productRef"`
	Quantity   int64   `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice,omitempty"` // user-quoted price in currency units, 0 when absent
}

// EntitySpans holds the raw, unresolved entity text the oracle extracted
// from the utterance. Every field is optional; resolution decides what is
// usable.
type EntitySpans struct {
	Items       []ItemSpan `json:"items,omitempty"`
	ProductRef  string     `json:"productRef,omitempty"`
	Quantity    int64      `json:"quantity,omitempty"`
	Amount      string     `json:"amount,omitempty"`
	Date        string     `json:"date,omitempty"`
	Name        string     `json:"name,omitempty"`
	UnitPrice   float64    `json:"unitPrice,omitempty"`
	UnitCost    float64    `json:"unitCost,omitempty"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Status      string     `json:"status,omitempty"`
	Target      string     `json:"target,omitempty"`
	QueryKind   string     `json:"queryKind,omitempty"`
	TimePeriod  string     `json:"timePeriod,omitempty"`
}

// Classification is the oracle's verdict for one utterance. It is created
// once and never mutated; a new classification supersedes it.
type Classification struct {
	Intent        Intent      `json:"intent"`
	Operation     Operation   `json:"operationType,omitempty"`
	Confidence    float64     `json:"confidence"`
	Entities      EntitySpans `json:"entities"`
	MissingFields []string    `json:"missingFields,omitempty"`
	Reasoning     string      `json:"reasoning,omitempty"`
}
