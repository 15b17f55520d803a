// internal/normalize/normalize_test.go
package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases",
			input:    "Pulsera Negra",
			expected: "pulsera negra",
		},
		{
			name:     "strips accents",
			input:    "pulsera clásica",
			expected: "pulsera clasica",
		},
		{
			name:     "strips punctuation",
			input:    "café, ¿con leche?",
			expected: "cafe con leche",
		},
		{
			name:     "collapses whitespace",
			input:    "  dos   pulseras  ",
			expected: "dos pulseras",
		},
		{
			name:     "keeps sku hyphens and digits",
			input:    "BC-PULS-AZUL 2",
			expected: "bc-puls-azul 2",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"Pulsera Clásica", "llaveros rojos!!", "BC-KEYCHAIN"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestContentTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "drops spanish stop words",
			input:    "la pulsera de granos",
			expected: []string{"pulsera"},
		},
		{
			name:     "drops english stop words",
			input:    "coffee beans gold",
			expected: []string{"gold"},
		},
		{
			name:     "keeps content words",
			input:    "pulseras negras",
			expected: []string{"pulseras", "negras"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContentTokens(tt.input))
		})
	}
}

func TestVariations(t *testing.T) {
	tests := []struct {
		name     string
		word     string
		contains []string
	}{
		{
			name:     "plural generates singular",
			word:     "pulseras",
			contains: []string{"pulseras", "pulsera", "bracelet", "bracelets"},
		},
		{
			name:     "singular generates plural",
			word:     "dorada",
			contains: []string{"dorada", "doradas", "gold", "golds"},
		},
		{
			name:     "synonym both directions",
			word:     "gold",
			contains: []string{"gold", "dorada"},
		},
		{
			name:     "accented input folds first",
			word:     "clásica",
			contains: []string{"clasica", "clasicas", "classic"},
		},
		{
			name:     "unknown word keeps plural pair only",
			word:     "martillo",
			contains: []string{"martillo", "martillos"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Variations(tt.word)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestVariationsWordIsFirst(t *testing.T) {
	got := Variations("negras")
	assert.Equal(t, "negras", got[0])
}

func TestSingular(t *testing.T) {
	assert.Equal(t, "pulsera", Singular("pulseras"))
	assert.Equal(t, "pulsera", Singular("Pulsera"))
	// Two-letter words are left alone.
	assert.Equal(t, "es", Singular("es"))
}

func TestSKUFromName(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		expected string
	}{
		{
			name:     "bracelet with color",
			product:  "Pulseras Azules",
			expected: "BC-PULS-AZUL",
		},
		{
			name:     "keychain red",
			product:  "Llavero Rojo",
			expected: "BC-LLAV-ROJA",
		},
		{
			name:     "english name",
			product:  "Gold Bracelet",
			expected: "BC-PULS-DORADA",
		},
		{
			name:     "unknown type and variant",
			product:  "Taza Grande",
			expected: "BC-PROD-STD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SKUFromName(tt.product))
		})
	}
}
