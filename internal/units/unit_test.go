package units

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeUnit", func() {
	DescribeTable("maps known spellings to the canonical unit",
		func(token, expected string) {
			Expect(NormalizeUnit(token)).To(Equal(expected))
		},
		Entry("kg", "kg", Kilogram),
		Entry("Kilo", "Kilo", Kilogram),
		Entry("Kilogramm", "Kilogramm", Kilogram),
		Entry("gramm", "gramm", Gram),
		Entry("Gr.", "Gr.", Gram),
		Entry("ML", "ML", Milliliter),
		Entry("Liter", "Liter", Liter),
		Entry("Stk.", "Stk.", Piece),
		Entry("stück", "stück", Piece),
		Entry("decomposed umlaut", "stu\u0308ck", Piece),
		Entry("EL", "EL", Tablespoon),
		Entry("Esslöffel", "Esslöffel", Tablespoon),
		Entry("tbsp", "tbsp", Tablespoon),
		Entry("TL", "tl", Teaspoon),
		Entry("Teelöffel", "Teelöffel", Teaspoon),
		Entry("Prisen", "Prisen", Pinch),
		Entry("Dose", "dose", Can),
		Entry("Bund", "Bund", Bunch),
		Entry("Zehen", "Zehen", Clove),
		Entry("trailing colon", "kg:", Kilogram),
	)

	When("the token is not a unit", func() {
		It("returns it unchanged", func() {
			Expect(NormalizeUnit("Packung")).To(Equal("Packung"))
			Expect(NormalizeUnit("große")).To(Equal("große"))
		})

		It("is not reported as known", func() {
			Expect(IsKnown("Packung")).To(BeFalse())
		})
	})

	It("is idempotent for every synonym", func() {
		for token := range synonyms {
			once := NormalizeUnit(token)
			Expect(NormalizeUnit(once)).To(Equal(once), "token %q", token)
			Expect(IsCanonical(once)).To(BeTrue(), "token %q", token)
		}
	})

	It("leaves canonical units unchanged", func() {
		for _, unit := range []string{Gram, Kilogram, Milliliter, Liter, Piece, Tablespoon, Teaspoon, Pinch, Can, Bunch, Clove} {
			Expect(NormalizeUnit(unit)).To(Equal(unit))
		}
	})
})
