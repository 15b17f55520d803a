// internal/normalize/sku.go
package normalize

import "strings"

var skuTypeCodes = map[string]string{
	"pulsera": "PULS", "pulseras": "PULS", "bracelet": "PULS",
	"llavero": "LLAV", "llaveros": "LLAV", "keychain": "LLAV",
}

var skuVariantCodes = map[string]string{
	"negra": "NEGRA", "negras": "NEGRA", "negro": "NEGRA", "negros": "NEGRA", "black": "NEGRA",
	"clasica": "CLASICA", "clasicas": "CLASICA", "clasico": "CLASICA", "clasicos": "CLASICA", "classic": "CLASICA",
	"dorada": "DORADA", "doradas": "DORADA", "dorado": "DORADA", "dorados": "DORADA", "gold": "DORADA",
	"azul": "AZUL", "azules": "AZUL", "blue": "AZUL",
	"roja": "ROJA", "rojas": "ROJA", "rojo": "ROJA", "rojos": "ROJA", "red": "ROJA",
	"verde": "VERDE", "verdes": "VERDE", "green": "VERDE",
	"blanca": "BLANCA", "blancas": "BLANCA", "blanco": "BLANCA", "blancos": "BLANCA", "white": "BLANCA",
}

// SKUFromName derives a deterministic SKU from a product name, e.g.
// "Pulseras Azules" yields "BC-PULS-AZUL". Unknown types fall back to
// PROD and unknown variants to STD.
func SKUFromName(name string) string {
	typeCode := ""
	variantCode := ""
	for _, word := range Tokenize(name) {
		if code, ok := skuTypeCodes[word]; ok && typeCode == "" {
			typeCode = code
		}
		if code, ok := skuVariantCodes[word]; ok && variantCode == "" {
			variantCode = code
		}
	}
	if typeCode == "" {
		typeCode = "PROD"
	}
	if variantCode == "" {
		variantCode = "STD"
	}
	return strings.Join([]string{"BC", typeCode, variantCode}, "-")
}
