// Package pantry turns parsed receipts into priced pantry ingredients and answers price
// questions about them: cross-shop comparison, recipe cost and best-before warnings.
package pantry

import (
	"strings"
	"time"

	"github.com/zombor/pantry-scan/internal/parsing"
	"github.com/zombor/pantry-scan/internal/units"
)

// Ingredient is one purchased product with its normalized prices.
type Ingredient struct {
	ID               string     `json:"id"`
	ScanID           string     `json:"scanId,omitempty"`
	Name             string     `json:"name"`
	Shop             string     `json:"shop"`
	PricePerUnit     float64    `json:"pricePerUnit"`
	UnitSize         float64    `json:"unitSize"`
	UnitType         string     `json:"unitType"`
	LastPurchaseDate *time.Time `json:"lastPurchaseDate,omitempty"`
	ExpiryDate       *time.Time `json:"expiryDate,omitempty"`

	// Stock levels are only tracked once set; nil means unknown.
	CurrentStock *float64 `json:"currentStock,omitempty"`
	MinStock     *float64 `json:"minStock,omitempty"`

	units.PriceConversionSet
}

// FromReceipt creates one ingredient per receipt item. newID is called once per item.
func FromReceipt(result parsing.ReceiptParseResult, newID func() string) []Ingredient {
	shop := strings.TrimSpace(result.StoreName)
	if shop == "" {
		shop = parsing.UnknownStore
	}

	ingredients := make([]Ingredient, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Quantity <= 0 {
			continue
		}
		ingredients = append(ingredients, Ingredient{
			ID:                 newID(),
			Name:               item.Name,
			Shop:               shop,
			PricePerUnit:       item.TotalPrice,
			UnitSize:           item.Quantity,
			UnitType:           units.NormalizeUnit(item.Unit),
			LastPurchaseDate:   result.PurchaseDate,
			PriceConversionSet: units.Convert(item.TotalPrice, item.Quantity, item.Unit),
		})
	}
	return ingredients
}

// Stocked reports whether the ingredient is part of the tracked inventory.
func (i Ingredient) Stocked() bool {
	return i.CurrentStock != nil
}

// LowStock reports whether the current stock has reached the minimum.
func (i Ingredient) LowStock() bool {
	return i.CurrentStock != nil && i.MinStock != nil && *i.CurrentStock <= *i.MinStock
}

// key is the grouping name used for comparisons and recipe lookups.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
