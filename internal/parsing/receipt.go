package parsing

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ReceiptParseResult is the structure extracted from one receipt.
type ReceiptParseResult struct {
	StoreName    string            `json:"storeName"`
	TotalAmount  float64           `json:"totalAmount"`
	PurchaseDate *time.Time        `json:"purchaseDate,omitempty"`
	Items        []ReceiptLineItem `json:"items"`
}

// ReceiptLineItem is one purchased product.
type ReceiptLineItem struct {
	Name       string  `json:"name"`
	TotalPrice float64 `json:"totalPrice"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
}

// ReceiptParser extracts store, date, total and line items from receipt lines. It holds no
// mutable state and may be shared between goroutines.
type ReceiptParser struct {
	cfg           ReceiptConfig
	storeNames    []string
	totalKeywords []string
	skipKeywords  []string
	paymentWords  []string
	ignoreWords   []string
	grammars      []itemGrammar
}

// NewReceiptParser builds a parser for cfg. Missing thresholds fall back to the defaults.
func NewReceiptParser(cfg ReceiptConfig) *ReceiptParser {
	defaults := DefaultReceiptConfig()
	if cfg.StoreScanLines <= 0 {
		cfg.StoreScanLines = defaults.StoreScanLines
	}
	if cfg.MinLineLength <= 0 {
		cfg.MinLineLength = defaults.MinLineLength
	}
	if cfg.MinPendingNameLength <= 0 {
		cfg.MinPendingNameLength = defaults.MinPendingNameLength
	}

	p := &ReceiptParser{
		cfg:           cfg,
		storeNames:    upperAll(cfg.StoreNames),
		totalKeywords: upperAll(cfg.TotalKeywords),
		skipKeywords:  upperAll(cfg.SkipKeywords),
		paymentWords:  upperAll(cfg.PaymentWords),
		ignoreWords:   upperAll(cfg.IgnoreWords),
	}

	p.grammars = []itemGrammar{matchMultiplied, matchSingle}
	if cfg.MultiLineItems {
		p.grammars = append(p.grammars, p.matchBuffered)
	}
	p.grammars = append(p.grammars, matchFallback)

	return p
}

var defaultReceiptParser = NewReceiptParser(DefaultReceiptConfig())

// ParseReceipt parses lines with the default German tables.
func ParseReceipt(lines []string) ReceiptParseResult {
	return defaultReceiptParser.Parse(lines)
}

// Parse runs store, date and total detection followed by line-item extraction.
func (p *ReceiptParser) Parse(lines []string) ReceiptParseResult {
	result := ReceiptParseResult{
		StoreName: p.detectStore(lines),
		Items:     make([]ReceiptLineItem, 0),
	}
	if p.cfg.DetectDate {
		result.PurchaseDate = p.detectDate(lines)
	}
	result.TotalAmount = p.detectTotal(lines)
	result.Items = p.extractItems(lines)
	return result
}

func (p *ReceiptParser) detectStore(lines []string) string {
	limit := min(len(lines), p.cfg.StoreScanLines)
	for _, line := range lines[:limit] {
		upper := strings.ToUpper(line)
		for _, store := range p.storeNames {
			if strings.Contains(upper, store) {
				return store
			}
		}
	}
	return UnknownStore
}

type dateGrammar struct {
	pattern *regexp.Regexp
	// order of the captured groups
	yearFirst bool
}

var dateGrammars = []dateGrammar{
	{pattern: regexp.MustCompile(`(?:^|\D)(\d{2})\.(\d{2})\.(\d{4})(?:\D|$)`)},
	{pattern: regexp.MustCompile(`(?:^|\D)(\d{2})\.(\d{2})\.(\d{2})(?:\D|$)`)},
	{pattern: regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})(?:\D|$)`), yearFirst: true},
}

func (p *ReceiptParser) detectDate(lines []string) *time.Time {
	loc := p.cfg.Location
	if loc == nil {
		loc = time.Local
	}
	for _, line := range lines {
		for _, g := range dateGrammars {
			m := g.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if d, ok := buildDate(m[1:], g.yearFirst, loc); ok {
				return &d
			}
		}
	}
	return nil
}

// buildDate returns local midnight of the captured date. Two-digit years are 20xx; only
// years strictly between 2000 and 2100 and real calendar days are accepted.
func buildDate(groups []string, yearFirst bool, loc *time.Location) (time.Time, bool) {
	nums := make([]int, 3)
	for i, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if yearFirst {
		year, month, day = nums[0], nums[1], nums[2]
	}
	if year < 100 {
		year += 2000
	}
	if year <= 2000 || year >= 2100 {
		return time.Time{}, false
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// "1.234,56" before the plain "12,99" form, so thousands separators are not cut off
var totalAmountPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})+,\d{2}|\d+[,.]\d{2})`)

// detectTotal keeps the amount of the last keyword line; receipts repeat subtotal and total
// and the final one is authoritative.
func (p *ReceiptParser) detectTotal(lines []string) float64 {
	var total float64
	for _, line := range lines {
		if !containsAny(strings.ToUpper(line), p.totalKeywords) {
			continue
		}
		m := totalAmountPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if v, ok := parseDecimal(m[1]); ok && v >= 0 {
			total = v
		}
	}
	return total
}

func (p *ReceiptParser) extractItems(lines []string) []ReceiptLineItem {
	items := make([]ReceiptLineItem, 0)
	buf := itemBuffer{}

	for _, line := range lines {
		if p.isMetadata(line) {
			continue
		}

		for _, grammar := range p.grammars {
			next, cand, ok := grammar(line, buf)
			if !ok {
				continue
			}
			buf = next
			if cand != nil {
				if item, keep := p.cleanup(*cand); keep {
					items = append(items, item)
				}
			}
			break
		}
	}

	return items
}

func (p *ReceiptParser) isMetadata(line string) bool {
	if runeLen(line) < p.cfg.MinLineLength {
		return true
	}
	upper := strings.ToUpper(line)
	if containsAny(upper, p.totalKeywords) {
		return true
	}
	priced := lineAmountPattern.MatchString(line)
	if !priced {
		for _, kw := range p.storeNames {
			if containsWord(upper, kw) {
				return true
			}
		}
	}
	if priced && p.isPaymentLine(upper) {
		return true
	}
	for _, kw := range p.skipKeywords {
		if containsWord(upper, kw) {
			return true
		}
	}
	return false
}

// lineAmountPattern finds a price at the end of a line, optionally followed by a currency
// and a tax class letter.
var lineAmountPattern = regexp.MustCompile(`(?i)-?\d+[,.]\d{1,2}\s*(?:€|eur)?\s*[a-z]?$`)

// isPaymentLine reports whether everything before the amount is a payment word.
func (p *ReceiptParser) isPaymentLine(upper string) bool {
	loc := lineAmountPattern.FindStringIndex(upper)
	if loc == nil {
		return false
	}
	words := strings.Fields(upper[:loc[0]])
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !slices.Contains(p.paymentWords, strings.Trim(w, ":")) {
			return false
		}
	}
	return true
}
