// internal/oracle/oracle.go
package oracle

import (
	"context"
	"errors"

	"pos-assistant/internal/models"
)

var (
	ErrClassificationFailed = errors.New("CLASSIFICATION_FAILED")
	ErrOracleTimeout        = errors.New("ORACLE_TIMEOUT")
)

// DisambiguationResult is the oracle's pick from an ambiguous candidate
// set. ProductID is always one of the offered candidates.
type DisambiguationResult struct {
	ProductID  int64
	Confidence float64
}

// Classifier is the narrow contract the pipeline depends on. The
// orchestrator treats any error as a degraded classification and
// composes a clarification instead of failing the request.
type Classifier interface {
	Classify(ctx context.Context, utterance string, history []models.Turn) (*models.Classification, error)
	Disambiguate(ctx context.Context, phrase string, candidates []models.Product) (*DisambiguationResult, error)
}
