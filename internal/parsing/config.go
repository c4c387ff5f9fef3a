package parsing

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config bundles the keyword tables of both parsers. The zero value is not useful; start
// from DefaultConfig.
type Config struct {
	Receipt ReceiptConfig `yaml:"receipt"`
	Recipe  RecipeConfig  `yaml:"recipe"`
}

// ReceiptConfig holds the tables and switches of the receipt parser.
type ReceiptConfig struct {
	// StoreNames are matched as substrings against the first StoreScanLines lines. Lines
	// naming a store without carrying a price are skipped as header lines.
	StoreNames     []string `yaml:"store_names"`
	StoreScanLines int      `yaml:"store_scan_lines"`

	// TotalKeywords mark lines carrying the receipt total.
	TotalKeywords []string `yaml:"total_keywords"`

	// SkipKeywords mark metadata lines (payment, tax, card, timestamps). They match whole
	// words only, so "UST" does not hit "Krustenbrot".
	SkipKeywords []string `yaml:"skip_keywords"`

	// PaymentWords mark tender lines ("BAR 20,00", "EC EUR 6,84") when they are the only
	// words in front of the amount. "Schoko Bar 1,29" stays an item.
	PaymentWords []string `yaml:"payment_words"`

	// IgnoreWords drop items whose cleaned name contains one of them (deposit, bags,
	// discounts).
	IgnoreWords []string `yaml:"ignore_words"`

	MinLineLength        int `yaml:"min_line_length"`
	MinPendingNameLength int `yaml:"min_pending_name_length"`

	DetectDate     bool `yaml:"detect_date"`
	MultiLineItems bool `yaml:"multi_line_items"`

	// TimeZone names the location purchase dates are interpreted in. Empty means local.
	TimeZone string         `yaml:"time_zone"`
	Location *time.Location `yaml:"-"`
}

// CategoryRule maps keywords found on a category line to a recipe category.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// RecipeConfig holds the tables and thresholds of the recipe parser.
type RecipeConfig struct {
	IngredientKeywords []string `yaml:"ingredient_keywords"`
	StepKeywords       []string `yaml:"step_keywords"`

	PortionKeywords  []string       `yaml:"portion_keywords"`
	TimeKeywords     []string       `yaml:"time_keywords"`
	CategoryKeywords []string       `yaml:"category_keywords"`
	Categories       []CategoryRule `yaml:"categories"`

	DefaultPortions int    `yaml:"default_portions"`
	DefaultPrepTime int    `yaml:"default_prep_time"`
	DefaultCategory string `yaml:"default_category"`

	DescriptionMinLength    int `yaml:"description_min_length"`
	MinIngredientLength     int `yaml:"min_ingredient_length"`
	StepMinLength           int `yaml:"step_min_length"`
	UnnumberedStepMinLength int `yaml:"unnumbered_step_min_length"`
	FallbackStepMinLength   int `yaml:"fallback_step_min_length"`
}

// Recipe categories.
const (
	CategoryStarter   = "Vorspeise"
	CategoryMain      = "Hauptgericht"
	CategorySide      = "Beilage"
	CategoryDessert   = "Dessert"
	CategorySnack     = "Snack"
	CategoryBeverage  = "Getränk"
	CategoryOther     = "Sonstiges"
	UnknownStore      = "Unbekannt"
	defaultStoreLines = 10
)

// DefaultConfig returns the German receipt and recipe tables.
func DefaultConfig() Config {
	return Config{
		Receipt: DefaultReceiptConfig(),
		Recipe:  DefaultRecipeConfig(),
	}
}

// DefaultReceiptConfig returns the tables for German supermarket receipts.
func DefaultReceiptConfig() ReceiptConfig {
	return ReceiptConfig{
		StoreNames:     []string{"REWE", "EDEKA", "ALDI", "LIDL", "KAUFLAND", "PENNY", "NETTO", "DM", "ROSSMANN", "MÜLLER"},
		StoreScanLines: defaultStoreLines,
		TotalKeywords:  []string{"SUMME", "GESAMT", "TOTAL", "BETRAG", "ZAHLUNG", "ZU ZAHLEN"},
		SkipKeywords: []string{
			"RÜCKGELD", "GEGEBEN", "BAR EUR", "BARZAHLUNG", "KARTE", "KARTENZAHLUNG", "GIROCARD", "VISA", "MASTERCARD",
			"UST", "MWST", "STEUER", "DATUM", "UHRZEIT", "RABATT", "PREISVORTEIL",
		},
		PaymentWords:         []string{"BAR", "EC", "EUR", "€"},
		IgnoreWords:          []string{"PFAND", "LEERGUT", "TÜTE", "TASCHE", "RABATT", "PREISVORTEIL", "COUPON", "PLUS"},
		MinLineLength:        3,
		MinPendingNameLength: 4,
		DetectDate:           true,
		MultiLineItems:       true,
	}
}

// DefaultRecipeConfig returns the tables for German (and some English) recipe cards.
func DefaultRecipeConfig() RecipeConfig {
	return RecipeConfig{
		IngredientKeywords: []string{"zutaten", "zutatenliste", "ingredients", "ingredient"},
		StepKeywords:       []string{"zubereitung", "anleitung", "arbeitsschritte", "schritt", "schritte", "steps", "directions", "instructions"},
		PortionKeywords:    []string{"portion", "pers", "serv"},
		TimeKeywords:       []string{"zeit", "dauer"},
		CategoryKeywords:   []string{"kategorie", "art", "gang"},
		Categories: []CategoryRule{
			{Category: CategoryStarter, Keywords: []string{"vorspeis"}},
			{Category: CategoryMain, Keywords: []string{"haupt"}},
			{Category: CategorySide, Keywords: []string{"beilage"}},
			{Category: CategoryDessert, Keywords: []string{"dessert", "nachspeis", "nachtisch"}},
			{Category: CategorySnack, Keywords: []string{"snack"}},
			{Category: CategoryBeverage, Keywords: []string{"getränk", "drink"}},
		},
		DefaultPortions:         4,
		DefaultPrepTime:         30,
		DefaultCategory:         CategoryOther,
		DescriptionMinLength:    30,
		MinIngredientLength:     3,
		StepMinLength:           5,
		UnnumberedStepMinLength: 15,
		FallbackStepMinLength:   30,
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the file keep their
// default; lists present in the file replace the default list.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading parser config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding parser config: %w", err)
	}

	if tz := strings.TrimSpace(cfg.Receipt.TimeZone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("loading time zone %q: %w", tz, err)
		}
		cfg.Receipt.Location = loc
	}

	return cfg, nil
}

func upperAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
