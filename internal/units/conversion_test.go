package units

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Convert", func() {
	var (
		price    float64
		quantity float64
		unit     string
		set      PriceConversionSet
	)

	JustBeforeEach(func() {
		set = Convert(price, quantity, unit)
	})

	When("the unit is kilogram", func() {
		BeforeEach(func() {
			price, quantity, unit = 3.98, 2, "kg"
		})

		It("sets the price per kilogram", func() {
			Expect(set.PricePerKg).NotTo(BeNil())
			Expect(*set.PricePerKg).To(Equal(price / quantity))
		})

		It("sets the price per hundred gram", func() {
			Expect(*set.PricePerHundredGram).To(BeNumerically("~", 0.199, 1e-12))
		})

		It("does not set volume or piece prices", func() {
			Expect(set.PricePerLiter).To(BeNil())
			Expect(set.PricePerPiece).To(BeNil())
		})
	})

	When("the unit is gram", func() {
		BeforeEach(func() {
			price, quantity, unit = 1.49, 250, "Gramm"
		})

		It("scales to a kilogram basis", func() {
			Expect(*set.PricePerKg).To(BeNumerically("~", 5.96, 1e-9))
			Expect(*set.PricePerHundredGram).To(BeNumerically("~", 0.596, 1e-9))
		})

		It("matches the kilogram price for the same amount", func() {
			kg := Convert(price, quantity/1000, Kilogram)
			Expect(*set.PricePerKg).To(BeNumerically("~", *kg.PricePerKg, 1e-9))
		})
	})

	When("the unit is milliliter", func() {
		BeforeEach(func() {
			price, quantity, unit = 0.99, 500, "ml"
		})

		It("sets the price per liter only", func() {
			Expect(*set.PricePerLiter).To(BeNumerically("~", 1.98, 1e-9))
			Expect(set.PricePerKg).To(BeNil())
		})
	})

	When("the unit is liter", func() {
		BeforeEach(func() {
			price, quantity, unit = 1.19, 1.5, "L"
		})

		It("sets the price per liter", func() {
			Expect(*set.PricePerLiter).To(Equal(1.19 / 1.5))
		})
	})

	When("the unit is piece", func() {
		BeforeEach(func() {
			price, quantity, unit = 3.98, 2, "Stück"
		})

		It("sets the price per piece", func() {
			Expect(*set.PricePerPiece).To(Equal(1.99))
		})
	})

	When("the unit has no conversion", func() {
		BeforeEach(func() {
			price, quantity, unit = 2.00, 1, "EL"
		})

		It("returns an empty set", func() {
			Expect(set.IsEmpty()).To(BeTrue())
		})
	})

	It("is scale invariant between kilogram and gram", func() {
		for _, pq := range [][2]float64{{2.49, 1}, {7.5, 0.75}, {12.99, 3}} {
			kg := Convert(pq[0], pq[1], Kilogram)
			g := Convert(pq[0], pq[1]*1000, Gram)
			Expect(*kg.PricePerKg).To(Equal(pq[0] / pq[1]))
			Expect(*g.PricePerKg).To(BeNumerically("~", *kg.PricePerKg, 1e-9))
		}
	})
})
