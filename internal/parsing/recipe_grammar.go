package parsing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zombor/pantry-scan/internal/units"
)

// ingredientGrammar recognizes one ingredient line layout.
type ingredientGrammar func(text string) (RecipeIngredient, bool)

var (
	bulletPattern = regexp.MustCompile(`^[-–•*·]\s*`)
	// "500 g Mehl", "500g Mehl", "2 EL Olivenöl"
	amountUnitPattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*([a-zA-ZäöüÄÖÜß]+\.?)\s+(.+)$`)
	// "1/2 Zwiebel", "1/2 TL Salz"
	fractionPattern = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)\s+(.+)$`)
	// "1½ Tassen"
	vulgarFractionPattern = regexp.MustCompile(`^(\d+)?\s*([½¼¾⅓⅔])\s*(.+)$`)
	// "2 Eier"
	countPattern = regexp.MustCompile(`^(\d+)\s+(.+)$`)

	numberedStepPattern = regexp.MustCompile(`^(\d+)\s*[.)]\s*(.+)$`)
	namedStepPattern    = regexp.MustCompile(`(?i)^(?:schritt|step)\s*\d+\s*[:.)]?\s*(.+)$`)
)

var vulgarFractions = map[string]float64{
	"½": 0.5,
	"¼": 0.25,
	"¾": 0.75,
	"⅓": 1.0 / 3,
	"⅔": 2.0 / 3,
}

func (p *RecipeParser) parseIngredient(line string) (RecipeIngredient, bool) {
	if runeLen(line) < p.cfg.MinIngredientLength {
		return RecipeIngredient{}, false
	}
	text := strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
	for _, grammar := range p.ingredientGrammars {
		if ing, ok := grammar(text); ok {
			return ing, true
		}
	}
	return RecipeIngredient{}, false
}

// matchAmountUnit only accepts a recognized unit; "2 große Eier" falls through to matchCount.
func matchAmountUnit(text string) (RecipeIngredient, bool) {
	m := amountUnitPattern.FindStringSubmatch(text)
	if m == nil || !units.IsKnown(m[2]) {
		return RecipeIngredient{}, false
	}
	amount, ok := parseDecimal(m[1])
	if !ok {
		return RecipeIngredient{}, false
	}
	return RecipeIngredient{Amount: amount, Unit: units.NormalizeUnit(m[2]), Name: strings.TrimSpace(m[3])}, true
}

func matchFraction(text string) (RecipeIngredient, bool) {
	if m := fractionPattern.FindStringSubmatch(text); m != nil {
		num, errN := strconv.Atoi(m[1])
		den, errD := strconv.Atoi(m[2])
		if errN != nil || errD != nil || den == 0 {
			return RecipeIngredient{}, false
		}
		return withOptionalUnit(float64(num)/float64(den), m[3])
	}

	if m := vulgarFractionPattern.FindStringSubmatch(text); m != nil {
		amount := vulgarFractions[m[2]]
		if m[1] != "" {
			whole, err := strconv.Atoi(m[1])
			if err != nil {
				return RecipeIngredient{}, false
			}
			amount += float64(whole)
		}
		return withOptionalUnit(amount, m[3])
	}

	return RecipeIngredient{}, false
}

// withOptionalUnit splits a leading unit off rest, defaulting to pieces.
func withOptionalUnit(amount float64, rest string) (RecipeIngredient, bool) {
	rest = strings.TrimSpace(rest)
	if first, name, found := strings.Cut(rest, " "); found && units.IsKnown(first) && strings.TrimSpace(name) != "" {
		return RecipeIngredient{Amount: amount, Unit: units.NormalizeUnit(first), Name: strings.TrimSpace(name)}, true
	}
	if rest == "" {
		return RecipeIngredient{}, false
	}
	return RecipeIngredient{Amount: amount, Unit: units.Piece, Name: rest}, true
}

func matchCount(text string) (RecipeIngredient, bool) {
	m := countPattern.FindStringSubmatch(text)
	if m == nil {
		return RecipeIngredient{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return RecipeIngredient{}, false
	}
	return RecipeIngredient{Amount: float64(n), Unit: units.Piece, Name: strings.TrimSpace(m[2])}, true
}

// matchNameOnly covers "Salz und Pfeffer".
func matchNameOnly(text string) (RecipeIngredient, bool) {
	if runeLen(text) <= 2 {
		return RecipeIngredient{}, false
	}
	return RecipeIngredient{Amount: 1, Unit: units.ToTaste, Name: text}, true
}

// parseStep strips "1.", "1)", "Schritt 1:" and "Step 1:" markers. Unnumbered lines are
// kept when long enough to be a continuation.
func (p *RecipeParser) parseStep(line string) (string, bool) {
	if runeLen(line) < p.cfg.StepMinLength {
		return "", false
	}

	text := ""
	switch {
	case namedStepPattern.MatchString(line):
		text = namedStepPattern.FindStringSubmatch(line)[1]
	case numberedStepPattern.MatchString(line):
		text = numberedStepPattern.FindStringSubmatch(line)[2]
	case runeLen(line) > p.cfg.UnnumberedStepMinLength:
		text = line
	default:
		return "", false
	}

	text = strings.TrimSpace(text)
	if runeLen(text) <= 3 {
		return "", false
	}
	return text, true
}
