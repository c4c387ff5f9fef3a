package pantry

import (
	"github.com/zombor/pantry-scan/internal/parsing"
	"github.com/zombor/pantry-scan/internal/units"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CostLine is one recipe ingredient together with the prices of the pantry item it uses.
type CostLine struct {
	Amount float64
	Unit   string
	Prices units.PriceConversionSet
}

// RecipeCosting is the price estimate for a recipe.
type RecipeCosting struct {
	Total           float64 `json:"total"`
	PerPortion      float64 `json:"perPortion"`
	SuggestedMargin float64 `json:"suggestedMargin"`
	SellingPrice    float64 `json:"sellingPrice"`
	// Priced counts the recipe ingredients a pantry price was found for.
	Priced    int    `json:"priced"`
	TotalText string `json:"totalText"`
}

// RecipeCost sums the cost of every line. Lines whose unit has no matching price cost
// nothing.
func RecipeCost(lines []CostLine) float64 {
	var total float64
	for _, l := range lines {
		total += lineCost(l)
	}
	return total
}

func lineCost(l CostLine) float64 {
	p := l.Prices
	switch units.NormalizeUnit(l.Unit) {
	case units.Gram:
		if p.PricePerKg != nil {
			return l.Amount / 1000 * *p.PricePerKg
		}
		if p.PricePerHundredGram != nil {
			return l.Amount / 100 * *p.PricePerHundredGram
		}
	case units.Kilogram:
		if p.PricePerKg != nil {
			return l.Amount * *p.PricePerKg
		}
	case units.Milliliter:
		if p.PricePerLiter != nil {
			return l.Amount / 1000 * *p.PricePerLiter
		}
	case units.Liter:
		if p.PricePerLiter != nil {
			return l.Amount * *p.PricePerLiter
		}
	case units.Piece:
		if p.PricePerPiece != nil {
			return l.Amount * *p.PricePerPiece
		}
	}
	return 0
}

// SellingPrice adds marginPercent on top of the cost.
func SellingPrice(costPerPortion, marginPercent float64) float64 {
	return costPerPortion * (1 + marginPercent/100)
}

// SuggestedMargin returns the markup in percent for a portion cost; cheap dishes carry a
// higher markup.
func SuggestedMargin(costPerPortion float64) float64 {
	switch {
	case costPerPortion < 2:
		return 300
	case costPerPortion < 5:
		return 250
	case costPerPortion < 10:
		return 200
	default:
		return 150
	}
}

var germanPrinter = message.NewPrinter(language.German)

// FormatPrice renders v as German euro text, e.g. "1.234,50 €".
func FormatPrice(v float64) string {
	return germanPrinter.Sprintf("%.2f €", v)
}

// CostRecipe prices recipe against the pantry. Each recipe ingredient uses the most recently
// bought pantry item of the same name.
func CostRecipe(recipe parsing.RecipeParseResult, pantry []Ingredient) RecipeCosting {
	latest := latestByName(pantry)

	var c RecipeCosting
	lines := make([]CostLine, 0, len(recipe.Ingredients))
	for _, ri := range recipe.Ingredients {
		ing, ok := latest[key(ri.Name)]
		if !ok {
			continue
		}
		line := CostLine{Amount: ri.Amount, Unit: ri.Unit, Prices: ing.PriceConversionSet}
		if lineCost(line) > 0 {
			c.Priced++
		}
		lines = append(lines, line)
	}

	c.Total = RecipeCost(lines)
	portions := recipe.Portions
	if portions < 1 {
		portions = 1
	}
	c.PerPortion = c.Total / float64(portions)
	c.SuggestedMargin = SuggestedMargin(c.PerPortion)
	c.SellingPrice = SellingPrice(c.PerPortion, c.SuggestedMargin)
	c.TotalText = FormatPrice(c.Total)
	return c
}

// latestByName indexes the pantry by grouping name, keeping the most recent purchase.
func latestByName(pantry []Ingredient) map[string]Ingredient {
	latest := make(map[string]Ingredient)
	for _, ing := range pantry {
		k := key(ing.Name)
		prev, ok := latest[k]
		if !ok || newer(ing, prev) {
			latest[k] = ing
		}
	}
	return latest
}

func newer(a, b Ingredient) bool {
	switch {
	case a.LastPurchaseDate == nil:
		return false
	case b.LastPurchaseDate == nil:
		return true
	default:
		return a.LastPurchaseDate.After(*b.LastPurchaseDate)
	}
}
