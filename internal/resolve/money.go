// internal/resolve/money.go
package resolve

import (
	"math"
	"strconv"
	"strings"
)

// MoneyResolution carries an integer minor-unit amount when resolved.
type MoneyResolution struct {
	Status Status
	Method Method
	Cents  int64
	Reason string
}

// ResolveMoney maps a decimal currency phrase ("$25.50", "25,50") to
// integer cents. Negative and non-numeric input comes back unresolved.
func ResolveMoney(phrase string) *MoneyResolution {
	raw := strings.TrimSpace(phrase)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.TrimSuffix(strings.ToLower(raw), "usd")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &MoneyResolution{Status: StatusUnresolved, Reason: "empty amount"}
	}

	// Comma as decimal separator is common in Spanish input.
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	} else {
		raw = strings.ReplaceAll(raw, ",", "")
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return &MoneyResolution{Status: StatusUnresolved, Reason: "not a numeric amount"}
	}
	if amount < 0 {
		return &MoneyResolution{Status: StatusUnresolved, Reason: "negative amount"}
	}

	return &MoneyResolution{
		Status: StatusResolved,
		Method: MethodNormalized,
		Cents:  int64(math.Round(amount * 100)),
	}
}
