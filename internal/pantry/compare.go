package pantry

import (
	"math"
	"sort"
	"strings"

	"github.com/zombor/pantry-scan/internal/units"
)

// PriceGroup compares the same product bought in different shops.
type PriceGroup struct {
	Name string `json:"name"`
	// Basis is the unit the prices are normalized to: kg, l or Stück.
	Basis          string       `json:"basis"`
	Items          []Ingredient `json:"items"`
	Cheapest       Ingredient   `json:"cheapest"`
	MostExpensive  Ingredient   `json:"mostExpensive"`
	Savings        float64      `json:"savings"`
	SavingsPercent int          `json:"savingsPercent"`
}

type basis struct {
	unit  string
	price func(Ingredient) *float64
}

var bases = []basis{
	{unit: units.Kilogram, price: func(i Ingredient) *float64 { return i.PricePerKg }},
	{unit: units.Liter, price: func(i Ingredient) *float64 { return i.PricePerLiter }},
	{unit: units.Piece, price: func(i Ingredient) *float64 { return i.PricePerPiece }},
}

// ComparePrices groups ingredients by name and reports the price spread of every group
// with at least two comparable entries, largest savings first. search filters group names
// by substring, case-insensitively.
func ComparePrices(ingredients []Ingredient, search string) []PriceGroup {
	search = key(search)

	var order []string
	groups := make(map[string][]Ingredient)
	for _, ing := range ingredients {
		k := key(ing.Name)
		if k == "" || !strings.Contains(k, search) {
			continue
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ing)
	}

	result := make([]PriceGroup, 0)
	for _, k := range order {
		if g, ok := compareGroup(groups[k]); ok {
			result = append(result, g)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Savings > result[j].Savings
	})
	return result
}

func compareGroup(items []Ingredient) (PriceGroup, bool) {
	if len(items) < 2 {
		return PriceGroup{}, false
	}

	for _, b := range bases {
		priced := make([]Ingredient, 0, len(items))
		for _, ing := range items {
			if p := b.price(ing); p != nil && *p > 0 {
				priced = append(priced, ing)
			}
		}
		if len(priced) < 2 {
			continue
		}

		sort.SliceStable(priced, func(i, j int) bool {
			return *b.price(priced[i]) < *b.price(priced[j])
		})
		cheapest, expensive := priced[0], priced[len(priced)-1]
		low, high := *b.price(cheapest), *b.price(expensive)

		g := PriceGroup{
			Name:          items[0].Name,
			Basis:         b.unit,
			Items:         priced,
			Cheapest:      cheapest,
			MostExpensive: expensive,
			Savings:       high - low,
		}
		if high > 0 {
			g.SavingsPercent = int(math.Round(g.Savings / high * 100))
		}
		return g, true
	}

	return PriceGroup{}, false
}
