package units

// PriceConversionSet holds the normalized prices that apply to a unit. Fields that do not
// apply to the source unit stay nil.
type PriceConversionSet struct {
	PricePerKg          *float64 `json:"pricePerKg,omitempty"`
	PricePerHundredGram *float64 `json:"pricePerHundredGram,omitempty"`
	PricePerLiter       *float64 `json:"pricePerLiter,omitempty"`
	PricePerPiece       *float64 `json:"pricePerPiece,omitempty"`
}

// IsEmpty reports whether no conversion applied.
func (s PriceConversionSet) IsEmpty() bool {
	return s.PricePerKg == nil && s.PricePerHundredGram == nil && s.PricePerLiter == nil && s.PricePerPiece == nil
}

// Convert derives the price set for price paid for quantity of unit. The caller guarantees
// quantity > 0. No rounding is applied.
func Convert(price, quantity float64, unit string) PriceConversionSet {
	var set PriceConversionSet
	perUnit := price / quantity

	switch NormalizeUnit(unit) {
	case Gram:
		set.PricePerKg = ptr(perUnit * 1000)
		set.PricePerHundredGram = ptr(*set.PricePerKg / 10)
	case Kilogram:
		set.PricePerKg = ptr(perUnit)
		set.PricePerHundredGram = ptr(perUnit / 10)
	case Milliliter:
		set.PricePerLiter = ptr(perUnit * 1000)
	case Liter:
		set.PricePerLiter = ptr(perUnit)
	case Piece:
		set.PricePerPiece = ptr(perUnit)
	}

	return set
}

func ptr(v float64) *float64 {
	return &v
}
