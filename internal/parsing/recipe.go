package parsing

import (
	"regexp"
	"strings"
	"unicode"
)

// RecipeParseResult is the structure extracted from one recipe card.
type RecipeParseResult struct {
	Name        string             `json:"name"`
	Portions    int                `json:"portions"`
	PrepTime    int                `json:"prepTime"`
	Category    string             `json:"category"`
	Description string             `json:"description"`
	Ingredients []RecipeIngredient `json:"ingredients"`
	Steps       []string           `json:"steps"`
}

// RecipeIngredient is one ingredient line. Unit is a canonical unit or units.ToTaste.
type RecipeIngredient struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Name   string  `json:"name"`
}

type section int

const (
	sectionNone section = iota
	sectionIngredients
	sectionSteps
)

// RecipeParser segments recipe lines into header, ingredients and steps. It holds no
// mutable state and may be shared between goroutines.
type RecipeParser struct {
	cfg                RecipeConfig
	ingredientKeywords []string
	stepKeywords       []string
	portionKeywords    []string
	timeKeywords       []string
	categoryKeywords   []string
	categories         []CategoryRule
	ingredientGrammars []ingredientGrammar
}

// NewRecipeParser builds a parser for cfg. Missing thresholds fall back to the defaults.
func NewRecipeParser(cfg RecipeConfig) *RecipeParser {
	defaults := DefaultRecipeConfig()
	if cfg.DefaultPortions < 1 {
		cfg.DefaultPortions = defaults.DefaultPortions
	}
	if cfg.DefaultPrepTime < 1 {
		cfg.DefaultPrepTime = defaults.DefaultPrepTime
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = defaults.DefaultCategory
	}
	if cfg.DescriptionMinLength <= 0 {
		cfg.DescriptionMinLength = defaults.DescriptionMinLength
	}
	if cfg.MinIngredientLength <= 0 {
		cfg.MinIngredientLength = defaults.MinIngredientLength
	}
	if cfg.StepMinLength <= 0 {
		cfg.StepMinLength = defaults.StepMinLength
	}
	if cfg.UnnumberedStepMinLength <= 0 {
		cfg.UnnumberedStepMinLength = defaults.UnnumberedStepMinLength
	}
	if cfg.FallbackStepMinLength <= 0 {
		cfg.FallbackStepMinLength = defaults.FallbackStepMinLength
	}

	categories := make([]CategoryRule, 0, len(cfg.Categories))
	for _, rule := range cfg.Categories {
		categories = append(categories, CategoryRule{Category: rule.Category, Keywords: lowerAll(rule.Keywords)})
	}

	return &RecipeParser{
		cfg:                cfg,
		ingredientKeywords: lowerAll(cfg.IngredientKeywords),
		stepKeywords:       lowerAll(cfg.StepKeywords),
		portionKeywords:    lowerAll(cfg.PortionKeywords),
		timeKeywords:       lowerAll(cfg.TimeKeywords),
		categoryKeywords:   lowerAll(cfg.CategoryKeywords),
		categories:         categories,
		ingredientGrammars: []ingredientGrammar{matchAmountUnit, matchFraction, matchCount, matchNameOnly},
	}
}

var defaultRecipeParser = NewRecipeParser(DefaultRecipeConfig())

// ParseRecipe parses lines with the default tables.
func ParseRecipe(lines []string) RecipeParseResult {
	return defaultRecipeParser.Parse(lines)
}

// Parse builds a recipe from lines. The first line is the name; the rest is read with a
// section state machine.
func (p *RecipeParser) Parse(lines []string) RecipeParseResult {
	r := RecipeParseResult{
		Portions:    p.cfg.DefaultPortions,
		PrepTime:    p.cfg.DefaultPrepTime,
		Category:    p.cfg.DefaultCategory,
		Ingredients: make([]RecipeIngredient, 0),
		Steps:       make([]string, 0),
	}
	if len(lines) == 0 {
		return r
	}
	r.Name = strings.TrimRight(strings.TrimSpace(lines[0]), ":.")

	current := sectionNone
	for _, line := range lines[1:] {
		lower := strings.ToLower(line)

		if next, ok := p.sectionHeader(lower); ok {
			current = next
			// "Zutaten für 6 Personen"
			if next == sectionIngredients && containsAny(lower, p.portionKeywords) {
				if n, ok := firstInteger(lower); ok && n >= 1 {
					r.Portions = n
				}
			}
			continue
		}

		// "Schritt 1: ..." starts the steps even without a section heading
		if current != sectionSteps && namedStepPattern.MatchString(line) {
			current = sectionSteps
		}

		switch current {
		case sectionNone:
			p.readHeaderLine(&r, line, lower)
		case sectionIngredients:
			if ing, ok := p.parseIngredient(line); ok {
				r.Ingredients = append(r.Ingredients, ing)
			}
		case sectionSteps:
			if step, ok := p.parseStep(line); ok {
				r.Steps = append(r.Steps, step)
			}
		}
	}

	if len(r.Steps) == 0 && len(r.Ingredients) > 0 {
		r.Steps = p.fallbackSteps(lines[1:])
	}

	return r
}

var minutesPattern = regexp.MustCompile(`\d+\s*min`)

// readHeaderLine handles a line seen before any section started.
func (p *RecipeParser) readHeaderLine(r *RecipeParseResult, line, lower string) {
	switch {
	case containsAny(lower, p.portionKeywords):
		if n, ok := firstInteger(lower); ok && n >= 1 {
			r.Portions = n
		}
	case containsAny(lower, p.timeKeywords) || minutesPattern.MatchString(lower):
		if n, ok := firstInteger(lower); ok && n >= 1 {
			r.PrepTime = n
		}
	case p.isCategoryLine(lower):
		for _, rule := range p.categories {
			if containsAny(lower, rule.Keywords) {
				r.Category = rule.Category
				break
			}
		}
	case runeLen(line) > p.cfg.DescriptionMinLength:
		if r.Description != "" {
			r.Description += " "
		}
		r.Description += line
	}
}

func (p *RecipeParser) isCategoryLine(lower string) bool {
	for _, word := range words(lower) {
		for _, kw := range p.categoryKeywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}

// sectionHeader reports whether lower opens a section. The first word must be a section
// keyword and must not be followed by a number, so "Schritt 2: ..." stays a step and
// "Zubereitung: 20 min" stays a time line. Any further text must read like a heading.
func (p *RecipeParser) sectionHeader(lower string) (section, bool) {
	trimmed := strings.TrimLeftFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(trimmed)
	}
	first, rest := trimmed[:end], strings.TrimLeft(trimmed[end:], " \t:.-")
	if first == "" {
		return sectionNone, false
	}
	if rest != "" && unicode.IsDigit([]rune(rest)[0]) {
		return sectionNone, false
	}
	// "Zutaten vermengen und ..." is a step, "Zutaten für 4 Personen" a heading
	if rest != "" && !strings.HasSuffix(strings.TrimSpace(lower), ":") &&
		!strings.HasPrefix(rest, "für") && !strings.HasPrefix(rest, "for") && !strings.HasPrefix(rest, "(") {
		return sectionNone, false
	}

	for _, kw := range p.ingredientKeywords {
		if first == kw {
			return sectionIngredients, true
		}
	}
	for _, kw := range p.stepKeywords {
		if first == kw {
			return sectionSteps, true
		}
	}
	return sectionNone, false
}

// fallbackSteps reads every long line after the ingredients heading as a step; used when
// no step section was recognized.
func (p *RecipeParser) fallbackSteps(lines []string) []string {
	steps := make([]string, 0)
	seenIngredients := false
	for _, line := range lines {
		if s, ok := p.sectionHeader(strings.ToLower(line)); ok {
			if s == sectionIngredients {
				seenIngredients = true
			}
			continue
		}
		if seenIngredients && runeLen(line) > p.cfg.FallbackStepMinLength {
			steps = append(steps, line)
		}
	}
	return steps
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}
