// internal/resolve/resolve.go
package resolve

import (
	"context"
	"sort"
	"strings"

	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/models"
	"pos-assistant/internal/normalize"
	"pos-assistant/internal/store"
)

// ==========================
// RESOLUTION OUTCOMES
// ==========================

type Status string

const (
	StatusResolved   Status = "RESOLVED"
	StatusAmbiguous  Status = "AMBIGUOUS"
	StatusUnresolved Status = "UNRESOLVED"
)

type Method string

const (
	MethodExact      Method = "exact-match"
	MethodNormalized Method = "normalized-match"
	MethodVariation  Method = "variation-match"
	MethodOracle     Method = "oracle-assisted"
)

// ProductResolution is the outcome of resolving a free-text product
// phrase. Product is set only when Status is RESOLVED; Candidates is
// set only when Status is AMBIGUOUS.
type ProductResolution struct {
	Status     Status
	Method     Method
	Product    *models.Product
	Candidates []models.Product
	Score      int
	Reason     string
}

// Resolver maps free-text references to canonical entities using the
// product catalog. Read-only; it never mutates state and never calls
// the classification oracle itself.
type Resolver struct {
	reader        store.Reader
	minMatchScore int
	log           logger.Logger
}

func NewResolver(reader store.Reader, minMatchScore int, log logger.Logger) *Resolver {
	return &Resolver{
		reader:        reader,
		minMatchScore: minMatchScore,
		log:           log.With(map[string]interface{}{"component": "resolver"}),
	}
}

// ResolveProduct resolves a phrase in three passes: exact SKU match,
// whole-phrase substring match against normalized names, then token
// scoring over the entire candidate set. Scoring considers every
// remaining token's variations against every active product, so an
// early token can never shadow a better match for a later one. Equal
// top scores come back AMBIGUOUS instead of picking a side.
func (r *Resolver) ResolveProduct(ctx context.Context, phrase string) (*ProductResolution, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return &ProductResolution{Status: StatusUnresolved, Reason: "empty product reference"}, nil
	}

	// Pass 1: exact SKU.
	if product, err := r.reader.ProductBySKU(ctx, strings.ToUpper(phrase)); err != nil {
		return nil, err
	} else if product != nil && product.IsActive {
		return &ProductResolution{Status: StatusResolved, Method: MethodExact, Product: product}, nil
	}

	products, err := r.reader.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &ProductResolution{Status: StatusUnresolved, Reason: "no active products"}, nil
	}

	// Pass 2: whole normalized phrase as substring of a product name.
	// Only a unique hit resolves here; several hits fall through to
	// scoring so the better match can surface.
	normPhrase := normalize.Normalize(phrase)
	var phraseMatches []models.Product
	for _, p := range products {
		if strings.Contains(normalize.Normalize(p.Name), normPhrase) {
			phraseMatches = append(phraseMatches, p)
		}
	}
	if len(phraseMatches) == 1 {
		match := phraseMatches[0]
		return &ProductResolution{Status: StatusResolved, Method: MethodNormalized, Product: &match}, nil
	}

	// Pass 3: score the whole candidate set.
	return r.scoreCandidates(phrase, products), nil
}

// candidateScore accumulates evidence for one product across all
// query tokens.
type candidateScore struct {
	product       models.Product
	score         int
	singularHits  int
	recencyIndex  int
	matchedTokens int
}

func (r *Resolver) scoreCandidates(phrase string, products []models.Product) *ProductResolution {
	tokens := normalize.ContentTokens(phrase)
	if len(tokens) == 0 {
		return &ProductResolution{Status: StatusUnresolved, Reason: "only stop words in reference"}
	}

	normNames := make([]string, len(products))
	for i, p := range products {
		normNames[i] = normalize.Normalize(p.Name) + " " + strings.ToLower(p.SKU)
	}

	scores := make([]candidateScore, 0, len(products))
	for i, p := range products {
		cs := candidateScore{product: p, recencyIndex: i}
		for _, token := range tokens {
			singular := normalize.Singular(token)
			best := 0
			bestIsSingular := false
			for _, variation := range normalize.Variations(token) {
				if !strings.Contains(normNames[i], variation) {
					continue
				}
				if len(variation) > best {
					best = len(variation)
					bestIsSingular = variation == singular
				}
			}
			if best > 0 {
				cs.score += best
				cs.matchedTokens++
				if bestIsSingular {
					cs.singularHits++
				}
			}
		}
		if cs.score > 0 {
			scores = append(scores, cs)
		}
	}

	if len(scores) == 0 {
		return &ProductResolution{Status: StatusUnresolved, Reason: "no product matched any variation"}
	}

	// Highest score first; singular-form matches break score ties;
	// recency keeps the ordering deterministic but never decides
	// between genuinely equal candidates.
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		if scores[a].singularHits != scores[b].singularHits {
			return scores[a].singularHits > scores[b].singularHits
		}
		return scores[a].recencyIndex < scores[b].recencyIndex
	})

	top := scores[0]
	if top.score < r.minMatchScore {
		return &ProductResolution{
			Status: StatusUnresolved,
			Score:  top.score,
			Reason: "best match below minimum score",
		}
	}

	if len(scores) > 1 && scores[1].score == top.score && scores[1].singularHits == top.singularHits {
		candidates := make([]models.Product, 0, len(scores))
		for _, cs := range scores {
			if cs.score == top.score {
				candidates = append(candidates, cs.product)
			}
		}
		r.log.Debug("Ambiguous product reference", map[string]interface{}{
			"phrase":     phrase,
			"candidates": len(candidates),
			"score":      top.score,
		})
		return &ProductResolution{
			Status:     StatusAmbiguous,
			Candidates: candidates,
			Score:      top.score,
			Reason:     "multiple products matched with equal score",
		}
	}

	product := top.product
	return &ProductResolution{
		Status:  StatusResolved,
		Method:  MethodVariation,
		Product: &product,
		Score:   top.score,
	}
}
