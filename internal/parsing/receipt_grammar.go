package parsing

import (
	"regexp"
	"strings"

	"github.com/zombor/pantry-scan/internal/units"
)

// itemCandidate is a raw grammar match before cleanup.
type itemCandidate struct {
	name     string
	price    float64
	quantity float64
	unit     string
}

// itemGrammar tries one receipt layout on line. ok reports whether the grammar took the
// line; a taken line may still produce no candidate (a buffered product name).
type itemGrammar func(line string, buf itemBuffer) (next itemBuffer, cand *itemCandidate, ok bool)

type bufferState int

const (
	bufferIdle bufferState = iota
	bufferAwaitingPrice
)

// itemBuffer is the single-slot state for products whose price is printed on a later line.
type itemBuffer struct {
	state bufferState
	name  string
}

func awaitPrice(name string) itemBuffer {
	return itemBuffer{state: bufferAwaitingPrice, name: name}
}

var (
	// "K.champignons 1,99 x 2 3,98 A"
	multipliedPattern = regexp.MustCompile(`^(.+?)\s+(\d+[,.]\d{2})\s*[xX×*]\s*(\d+(?:[,.]\d+)?)\s+(\d+[,.]\d{2})\s*([A-Z])?$`)
	// "Passionsfrucht 2,49 A"
	singlePattern = regexp.MustCompile(`^(.+?)\s+(\d+[,.]\d{2})\s*([A-Z])?$`)
	// "4001234 1,19 A" or "0,62 A" following a product name line
	trailingPricePattern = regexp.MustCompile(`(?i)^(?:\d+\s+)?(\d+[,.]\d{2})\s*(?:€|EUR)?\s*([A-Z])?$`)
	// "Brot 2,5 €"
	fallbackPattern = regexp.MustCompile(`(?i)^(.+?)\s+(\d+[,.]\d{1,2})\s*(?:€|EUR)?$`)

	pricePattern   = regexp.MustCompile(`(?i)\d+[,.]\d{2}|\d+[,.]\d\s*(?:€|eur)?$`)
	numericPattern = regexp.MustCompile(`^\d+$`)

	// "0,048 kg", "500g", "1,5 l"
	weightPattern = regexp.MustCompile(`(?i)(\d+(?:[,.]\d+)?)\s*(kg|g|ml|l)\b`)
	// "x 12,99 EUR/kg"
	basePricePattern = regexp.MustCompile(`(?i)(?:[x×*]\s*)?\d+[,.]\d{2}\s*(?:eur|€)?\s*/\s*(?:kg|g|l|ml|stk|stück)`)
)

func matchMultiplied(line string, buf itemBuffer) (itemBuffer, *itemCandidate, bool) {
	m := multipliedPattern.FindStringSubmatch(line)
	if m == nil {
		return buf, nil, false
	}
	quantity, ok := parseDecimal(m[3])
	if !ok || quantity <= 0 {
		return buf, nil, false
	}
	total, ok := parseDecimal(m[4])
	if !ok {
		return buf, nil, false
	}
	return itemBuffer{}, &itemCandidate{name: m[1], price: total, quantity: quantity, unit: units.Piece}, true
}

func matchSingle(line string, buf itemBuffer) (itemBuffer, *itemCandidate, bool) {
	m := singlePattern.FindStringSubmatch(line)
	if m == nil {
		return buf, nil, false
	}
	// a bare number in front of the price is a lookup code, not a product
	if numericPattern.MatchString(strings.TrimSpace(m[1])) {
		return buf, nil, false
	}
	price, ok := parseDecimal(m[2])
	if !ok {
		return buf, nil, false
	}
	return itemBuffer{}, &itemCandidate{name: m[1], price: price, quantity: 1, unit: units.Piece}, true
}

// matchBuffered handles names printed on their own line with the price further down. The
// quantity of such items is always 1: an intermediate weight line cannot be tied to the
// name reliably.
func (p *ReceiptParser) matchBuffered(line string, buf itemBuffer) (itemBuffer, *itemCandidate, bool) {
	if !pricePattern.MatchString(line) {
		if runeLen(line) >= p.cfg.MinPendingNameLength && hasLetter(weightPattern.ReplaceAllString(line, "")) {
			return awaitPrice(line), nil, true
		}
		return buf, nil, false
	}

	if buf.state != bufferAwaitingPrice {
		return buf, nil, false
	}
	m := trailingPricePattern.FindStringSubmatch(line)
	if m == nil {
		return buf, nil, false
	}
	price, ok := parseDecimal(m[1])
	if !ok {
		return buf, nil, false
	}
	return itemBuffer{}, &itemCandidate{name: buf.name, price: price, quantity: 1, unit: units.Piece}, true
}

func matchFallback(line string, buf itemBuffer) (itemBuffer, *itemCandidate, bool) {
	m := fallbackPattern.FindStringSubmatch(line)
	if m == nil {
		return buf, nil, false
	}
	price, ok := parseDecimal(m[2])
	if !ok {
		return buf, nil, false
	}
	return itemBuffer{}, &itemCandidate{name: m[1], price: price, quantity: 1, unit: units.Piece}, true
}

// cleanup pulls an embedded weight or volume out of the name, then drops ignored, too short
// and non-positive candidates.
func (p *ReceiptParser) cleanup(c itemCandidate) (ReceiptLineItem, bool) {
	name := basePricePattern.ReplaceAllString(c.name, " ")
	quantity, unit := c.quantity, c.unit

	if loc := weightPattern.FindStringSubmatchIndex(name); loc != nil {
		if q, ok := parseDecimal(name[loc[2]:loc[3]]); ok && q > 0 {
			quantity = q
			unit = units.NormalizeUnit(name[loc[4]:loc[5]])
			name = name[:loc[0]] + " " + name[loc[1]:]
		}
	}
	name = collapseSpaces(name)

	if containsAny(strings.ToUpper(name), p.ignoreWords) {
		return ReceiptLineItem{}, false
	}
	if runeLen(name) <= 2 || !hasLetter(name) || c.price <= 0 || quantity <= 0 {
		return ReceiptLineItem{}, false
	}

	return ReceiptLineItem{
		Name:       name,
		TotalPrice: c.price,
		Quantity:   quantity,
		Unit:       unit,
	}, true
}
