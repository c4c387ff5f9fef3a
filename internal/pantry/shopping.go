package pantry

import (
	"sort"
	"strings"
	"time"

	"github.com/zombor/pantry-scan/internal/parsing"
)

// Priority orders shopping list entries.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// ShoppingLine is one recipe ingredient scaled to the wanted number of portions.
type ShoppingLine struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	// Shop and IngredientID point at the pantry item the price estimate is based on.
	Shop           string  `json:"shop,omitempty"`
	IngredientID   string  `json:"ingredientId,omitempty"`
	EstimatedPrice float64 `json:"estimatedPrice"`
}

// ScaledRecipe is a recipe's ingredient list for a given number of portions.
type ScaledRecipe struct {
	Name           string         `json:"name"`
	Portions       int            `json:"portions"`
	ScaleFactor    float64        `json:"scaleFactor"`
	Lines          []ShoppingLine `json:"lines"`
	EstimatedTotal float64        `json:"estimatedTotal"`
	EstimatedText  string         `json:"estimatedText"`
}

// ScaleRecipe scales every ingredient by portions / recipe portions and estimates its price
// from the most recently bought pantry item of the same name. portions < 1 keeps the recipe's
// own portion count.
func ScaleRecipe(recipe parsing.RecipeParseResult, portions int, pantry []Ingredient) ScaledRecipe {
	base := recipe.Portions
	if base < 1 {
		base = 1
	}
	if portions < 1 {
		portions = base
	}

	s := ScaledRecipe{
		Name:        recipe.Name,
		Portions:    portions,
		ScaleFactor: float64(portions) / float64(base),
		Lines:       make([]ShoppingLine, 0, len(recipe.Ingredients)),
	}

	latest := latestByName(pantry)
	for _, ri := range recipe.Ingredients {
		line := ShoppingLine{Name: ri.Name, Amount: ri.Amount * s.ScaleFactor, Unit: ri.Unit}
		if ing, ok := latest[key(ri.Name)]; ok {
			line.Shop = ing.Shop
			line.IngredientID = ing.ID
			line.EstimatedPrice = estimate(line.Amount, line.Unit, ing)
		}
		s.EstimatedTotal += line.EstimatedPrice
		s.Lines = append(s.Lines, line)
	}
	s.EstimatedText = FormatPrice(s.EstimatedTotal)
	return s
}

// estimate prices amount via the normalized prices, falling back to the purchase price per
// unit when the recipe uses the unit the product was bought in (EL, Dose, ...).
func estimate(amount float64, unit string, ing Ingredient) float64 {
	if v := lineCost(CostLine{Amount: amount, Unit: unit, Prices: ing.PriceConversionSet}); v > 0 {
		return v
	}
	if ing.UnitSize > 0 && ing.UnitType == unit {
		return amount * ing.PricePerUnit / ing.UnitSize
	}
	return 0
}

// ShoppingItem is one entry of the shopping list.
type ShoppingItem struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Amount         float64   `json:"amount"`
	Unit           string    `json:"unit"`
	Shop           string    `json:"shop"`
	IngredientID   string    `json:"ingredientId,omitempty"`
	RecipeScanID   string    `json:"recipeScanId,omitempty"`
	EstimatedPrice float64   `json:"estimatedPrice"`
	Checked        bool      `json:"checked"`
	Priority       Priority  `json:"priority"`
	AddedAt        time.Time `json:"addedAt"`
}

// ShoppingItems turns scaled recipe lines into unchecked list entries of normal priority.
func ShoppingItems(s ScaledRecipe, newID func() string, now time.Time) []ShoppingItem {
	items := make([]ShoppingItem, 0, len(s.Lines))
	for _, l := range s.Lines {
		shop := l.Shop
		if shop == "" {
			shop = parsing.UnknownStore
		}
		items = append(items, ShoppingItem{
			ID:             newID(),
			Name:           l.Name,
			Amount:         l.Amount,
			Unit:           l.Unit,
			Shop:           shop,
			IngredientID:   l.IngredientID,
			EstimatedPrice: l.EstimatedPrice,
			Priority:       PriorityNormal,
			AddedAt:        now,
		})
	}
	return items
}

// ShopGroup is the part of the shopping list bought in one shop.
type ShopGroup struct {
	Shop           string         `json:"shop"`
	Items          []ShoppingItem `json:"items"`
	Checked        int            `json:"checked"`
	EstimatedTotal float64        `json:"estimatedTotal"`
}

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// GroupByShop groups the list by shop name. Within a shop, unchecked entries come first,
// then by priority and the time they were added.
func GroupByShop(items []ShoppingItem) []ShopGroup {
	byShop := make(map[string]*ShopGroup)
	for _, it := range items {
		shop := strings.TrimSpace(it.Shop)
		if shop == "" {
			shop = parsing.UnknownStore
		}
		g, ok := byShop[shop]
		if !ok {
			g = &ShopGroup{Shop: shop}
			byShop[shop] = g
		}
		g.Items = append(g.Items, it)
		g.EstimatedTotal += it.EstimatedPrice
		if it.Checked {
			g.Checked++
		}
	}

	groups := make([]ShopGroup, 0, len(byShop))
	for _, g := range byShop {
		sort.SliceStable(g.Items, func(i, j int) bool {
			a, b := g.Items[i], g.Items[j]
			if a.Checked != b.Checked {
				return !a.Checked
			}
			if a.Priority.rank() != b.Priority.rank() {
				return a.Priority.rank() < b.Priority.rank()
			}
			return a.AddedAt.Before(b.AddedAt)
		})
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Shop < groups[j].Shop
	})
	return groups
}
