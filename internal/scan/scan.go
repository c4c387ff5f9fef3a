package scan

import (
	"time"

	"github.com/zombor/pantry-scan/internal/pantry"
	"github.com/zombor/pantry-scan/internal/parsing"
)

// Kind tells what a scanned document contains.
type Kind string

const (
	KindReceipt Kind = "receipt"
	KindRecipe  Kind = "recipe"
)

// File is one uploaded page or photo of a scan
type File struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// Scan is a recognized and parsed receipt or recipe
type Scan struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Files   []File `json:"files"`
	RawText string `json:"rawText"`

	Receipt *parsing.ReceiptParseResult `json:"receipt,omitempty"`
	Recipe  *parsing.RecipeParseResult  `json:"recipe,omitempty"`

	// IngredientIDs lists the pantry ingredients created from a receipt
	IngredientIDs []string `json:"ingredientIds,omitempty"`
	// Costing is computed against the current pantry whenever a recipe is read
	Costing *pantry.RecipeCosting `json:"costing,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IngredientStatus is a pantry ingredient with its best-before and stock state
type IngredientStatus struct {
	pantry.Ingredient
	Expiry   *pantry.ExpiryWarning `json:"expiry,omitempty"`
	LowStock bool                  `json:"lowStock"`
}

// Warning reports whether the ingredient expires within a week or has already expired
func (s IngredientStatus) Warning() bool {
	return s.Expiry != nil && (s.Expiry.Expired || s.Expiry.ExpiringSoon)
}

// InventorySummary counts the tracked inventory and its warnings
type InventorySummary struct {
	Ingredients int `json:"ingredients"`
	Stocked     int `json:"stocked"`
	LowStock    int `json:"lowStock"`
	Expiring    int `json:"expiring"`
}
