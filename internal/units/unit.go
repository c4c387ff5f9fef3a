// Package units maps free-text measurement tokens onto a small canonical vocabulary and
// derives comparable prices from (price, quantity, unit) triples.
package units

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical units. The values are the display strings used throughout the app.
const (
	Gram       = "g"
	Kilogram   = "kg"
	Milliliter = "ml"
	Liter      = "l"
	Piece      = "Stück"
	Tablespoon = "EL"
	Teaspoon   = "TL"
	Pinch      = "Prise"
	Can        = "Dose"
	Bunch      = "Bund"
	Clove      = "Zehe"

	// ToTaste marks recipe ingredients without a measurable amount.
	ToTaste = "nach Geschmack"
)

// synonyms is keyed by lower-cased, NFC-normalized tokens.
var synonyms = map[string]string{
	"g":     Gram,
	"gr":    Gram,
	"gramm": Gram,
	"gram":  Gram,
	"grams": Gram,

	"kg":        Kilogram,
	"kilo":      Kilogram,
	"kilogramm": Kilogram,
	"kilogram":  Kilogram,

	"ml":         Milliliter,
	"milliliter": Milliliter,
	"millilitre": Milliliter,

	"l":     Liter,
	"ltr":   Liter,
	"liter": Liter,
	"litre": Liter,

	"stück":  Piece,
	"stueck": Piece,
	"stuck":  Piece,
	"stk":    Piece,
	"stck":   Piece,
	"st":     Piece,
	"piece":  Piece,
	"pieces": Piece,
	"pcs":    Piece,
	"pc":     Piece,

	"el":          Tablespoon,
	"essl":        Tablespoon,
	"esslöffel":   Tablespoon,
	"essloeffel":  Tablespoon,
	"tbsp":        Tablespoon,
	"tablespoon":  Tablespoon,
	"tablespoons": Tablespoon,

	"tl":         Teaspoon,
	"teel":       Teaspoon,
	"teelöffel":  Teaspoon,
	"teeloeffel": Teaspoon,
	"tsp":        Teaspoon,
	"teaspoon":   Teaspoon,
	"teaspoons":  Teaspoon,

	"prise":  Pinch,
	"prisen": Pinch,
	"pinch":  Pinch,

	"dose":  Can,
	"dosen": Can,
	"can":   Can,
	"cans":  Can,

	"bund":  Bunch,
	"bunch": Bunch,

	"zehe":   Clove,
	"zehen":  Clove,
	"clove":  Clove,
	"cloves": Clove,
}

// NormalizeUnit returns the canonical unit for token, or token unchanged when it is not a
// known unit spelling. Normalizing a canonical unit returns it as is.
func NormalizeUnit(token string) string {
	key := strings.ToLower(norm.NFC.String(strings.TrimSpace(token)))
	key = strings.TrimRight(key, ".,:;")
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}
	return token
}

// IsCanonical reports whether unit is one of the canonical units.
func IsCanonical(unit string) bool {
	switch unit {
	case Gram, Kilogram, Milliliter, Liter, Piece, Tablespoon, Teaspoon, Pinch, Can, Bunch, Clove:
		return true
	}
	return false
}

// IsKnown reports whether token normalizes to a canonical unit.
func IsKnown(token string) bool {
	return IsCanonical(NormalizeUnit(token))
}
