// internal/oracle/schema.go
package oracle

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// The oracle's answers are untrusted input; both endpoints validate
// against a schema before anything is decoded.

const classificationSchema = `{
	"type": "object",
	"required": ["intent", "confidence"],
	"properties": {
		"intent": {
			"type": "string",
			"enum": ["ANALYTICS", "MUTATION", "MUTATION_THEN_ANALYTICS", "GREETING", "UNRESOLVED"]
		},
		"operationType": {
			"type": "string",
			"enum": ["REGISTER_SALE", "REGISTER_EXPENSE", "REGISTER_PRODUCT", "ADD_STOCK",
				"DEACTIVATE_PRODUCT", "CANCEL_SALE", "CANCEL_EXPENSE", "CANCEL_STOCK",
				"CANCEL_LAST_OPERATION", "UNKNOWN"]
		},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"entities": {"type": "object"},
		"missingFields": {"type": "array", "items": {"type": "string"}},
		"reasoning": {"type": "string"}
	}
}`

const disambiguationSchema = `{
	"type": "object",
	"required": ["productId"],
	"properties": {
		"productId": {"type": "integer"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

var (
	classificationLoader = gojsonschema.NewStringLoader(classificationSchema)
	disambiguationLoader = gojsonschema.NewStringLoader(disambiguationSchema)
)

func validateAgainst(schema gojsonschema.JSONLoader, raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err
	}
	if !result.Valid() {
		var issues []string
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return fmt.Errorf("schema validation: %s", strings.Join(issues, "; "))
	}
	return nil
}

func validateClassification(raw []byte) error {
	return validateAgainst(classificationLoader, raw)
}

func validateDisambiguation(raw []byte) error {
	return validateAgainst(disambiguationLoader, raw)
}
