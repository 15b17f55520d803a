// internal/normalize/normalize.go
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ==========================
// TEXT NORMALIZATION
// ==========================

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases, strips accents and strips punctuation. Pure and
// total over printable text.
func Normalize(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize splits a normalized phrase into words.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// ==========================
// STOP WORDS
// ==========================

var stopWords = map[string]struct{}{
	"de": {}, "granos": {}, "cafe": {}, "con": {},
	"la": {}, "el": {}, "las": {}, "los": {},
	"un": {}, "una": {},
	"coffee": {}, "bean": {}, "beans": {},
}

// IsStopWord reports whether a normalized token carries no product signal.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// ContentTokens tokenizes a phrase and drops stop words.
func ContentTokens(text string) []string {
	tokens := Tokenize(text)
	out := tokens[:0]
	for _, t := range tokens {
		if !IsStopWord(t) {
			out = append(out, t)
		}
	}
	return out
}

// ==========================
// MORPHOLOGICAL VARIATIONS
// ==========================

// Cross-language synonym table, both directions.
var synonyms = map[string]string{
	"negra": "black", "black": "negra",
	"dorada": "gold", "gold": "dorada",
	"clasica": "classic", "classic": "clasica",
	"pulsera": "bracelet", "bracelet": "pulsera",
	"llavero": "keychain", "keychain": "llavero",
	"azul": "blue", "blue": "azul",
	"roja": "red", "red": "roja",
	"verde": "green", "green": "verde",
	"blanca": "white", "white": "blanca",
}

func pluralForms(word string) []string {
	if strings.HasSuffix(word, "s") && len(word) > 2 {
		return []string{word, strings.TrimSuffix(word, "s")}
	}
	return []string{word, word + "s"}
}

// Variations returns the normalized word plus its morphological
// alternates: singular/plural forms and cross-language synonyms (with
// their own singular/plural forms). The word itself is always first.
func Variations(word string) []string {
	word = Normalize(word)
	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	for _, form := range pluralForms(word) {
		add(form)
	}
	for _, form := range pluralForms(word) {
		if syn, ok := synonyms[form]; ok {
			for _, sf := range pluralForms(syn) {
				add(sf)
			}
		}
	}
	return out
}

// Singular returns the canonical singular form of a normalized word.
func Singular(word string) string {
	word = Normalize(word)
	if strings.HasSuffix(word, "s") && len(word) > 2 {
		return strings.TrimSuffix(word, "s")
	}
	return word
}
