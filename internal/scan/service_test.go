package scan

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/pantry-scan/internal/pantry"
	"github.com/zombor/pantry-scan/internal/parsing"
	"github.com/zombor/pantry-scan/internal/units"
)

var _ = Describe("Service", func() {
	var (
		db         *mockDB
		storage    *mockStorage
		recognizer *mockRecognizer
		now        time.Time
		service    *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		recognizer = newMockRecognizer(lidlReceipt)
		now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, recognizer, storage, parsing.DefaultConfig(), &sequenceIDGenerator{}, &fixedTimeSource{t: now})
	})

	Describe("ScanReceipt", func() {
		var (
			uploads []Upload
			scan    *Scan
			err     error
		)

		BeforeEach(func() {
			uploads = []Upload{{Filename: "IMG_2024 (1).jpg", ContentType: "image/jpeg", Data: []byte("jpeg")}}
		})

		JustBeforeEach(func() {
			scan, err = service.ScanReceipt(context.Background(), uploads...)
		})

		When("recognition succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should parse the receipt", func() {
				Expect(scan.ID).To(Equal("id-1"))
				Expect(scan.Kind).To(Equal(KindReceipt))
				Expect(scan.Title).To(Equal("LIDL 14.03.2024"))
				Expect(scan.RawText).To(Equal(lidlReceipt))
				Expect(scan.Receipt.StoreName).To(Equal("LIDL"))
				Expect(scan.Receipt.TotalAmount).To(Equal(6.72))
				Expect(scan.Receipt.Items).To(HaveLen(2))
				Expect(scan.CreatedAt).To(Equal(now))
			})

			It("should store the file", func() {
				Expect(scan.Files).To(Equal([]File{{Filename: "id-1_0_IMG_2024 1.jpg", ContentType: "image/jpeg", Size: 4}}))
				Expect(storage.files).To(HaveKey("id-1_0_IMG_2024 1.jpg"))
			})

			It("should add the items to the pantry", func() {
				Expect(scan.IngredientIDs).To(Equal([]string{"id-2", "id-3"}))
				Expect(db.ingredients).To(HaveLen(2))
				ing := db.ingredients["id-3"]
				Expect(ing.Name).To(Equal("Passionsfrucht"))
				Expect(ing.Shop).To(Equal("LIDL"))
				Expect(ing.ScanID).To(Equal("id-1"))
				Expect(*ing.PricePerPiece).To(Equal(2.49))
			})

			It("should save the scan", func() {
				Expect(db.scans).To(HaveKey("id-1"))
			})
		})

		When("several files are uploaded", func() {
			BeforeEach(func() {
				recognizer = newMockRecognizer("REWE\nMilch 1,19 A", "Butter 2,29 A\nSUMME 3,48")
				uploads = []Upload{
					{Filename: "page1.png", ContentType: "image/png", Data: []byte("1")},
					{Filename: "page2.png", ContentType: "image/png", Data: []byte("2")},
				}
			})

			It("should read them as one receipt", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(recognizer.calls).To(Equal(2))
				Expect(scan.Files).To(HaveLen(2))
				Expect(scan.Files[1].Filename).To(Equal("id-1_1_page2.png"))
				Expect(scan.Receipt.StoreName).To(Equal("REWE"))
				Expect(scan.Receipt.TotalAmount).To(Equal(3.48))
				Expect(scan.Receipt.Items).To(HaveLen(2))
			})

			It("should use the store as title when there is no date", func() {
				Expect(scan.Title).To(Equal("REWE"))
			})
		})

		When("no file is given", func() {
			BeforeEach(func() {
				uploads = nil
			})

			It("should return ErrNoFiles", func() {
				Expect(err).To(MatchError(ErrNoFiles))
			})
		})

		When("storing the file fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("disk full")
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ContainSubstring("saving file: disk full")))
				Expect(recognizer.calls).To(BeZero())
			})
		})

		When("recognition fails", func() {
			BeforeEach(func() {
				recognizer.err = errors.New("model unavailable")
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ContainSubstring("recognizing IMG_2024 (1).jpg: model unavailable")))
				Expect(errors.Is(err, ErrRecognition)).To(BeTrue())
				Expect(scan).To(BeNil())
			})

			It("should delete the stored file", func() {
				Expect(storage.files).To(BeEmpty())
				Expect(storage.deleted).To(ConsistOf("id-1_0_IMG_2024 1.jpg"))
			})

			It("should not save anything", func() {
				Expect(db.scans).To(BeEmpty())
				Expect(db.ingredients).To(BeEmpty())
			})
		})

		When("no text is recognized", func() {
			BeforeEach(func() {
				recognizer = newMockRecognizer(" \n\n ")
			})

			It("should return ErrEmptyText", func() {
				Expect(errors.Is(err, ErrEmptyText)).To(BeTrue())
				Expect(storage.files).To(BeEmpty())
			})
		})

		When("saving to the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("database locked")
			})

			It("should return an error and delete the file", func() {
				Expect(err).To(MatchError(ContainSubstring("saving scan to database")))
				Expect(storage.files).To(BeEmpty())
			})
		})
	})

	Describe("ScanRecipe", func() {
		var (
			scan *Scan
			err  error
		)

		BeforeEach(func() {
			recognizer = newMockRecognizer(carbonaraRecipe)
		})

		JustBeforeEach(func() {
			scan, err = service.ScanRecipe(context.Background(), Upload{Filename: "rezept.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")})
		})

		It("should parse the recipe", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(scan.Kind).To(Equal(KindRecipe))
			Expect(scan.Title).To(Equal("Spaghetti Carbonara"))
			Expect(scan.Recipe.Portions).To(Equal(4))
			Expect(scan.Recipe.Ingredients).To(HaveLen(2))
			Expect(scan.Recipe.Steps).To(Equal([]string{"Wasser kochen"}))
		})

		It("should not add pantry ingredients", func() {
			Expect(scan.IngredientIDs).To(BeEmpty())
			Expect(db.ingredients).To(BeEmpty())
		})

		When("the pantry knows an ingredient", func() {
			BeforeEach(func() {
				db.ingredients["egg"] = pantry.Ingredient{
					ID:                 "egg",
					Name:               "Eier",
					Shop:               "LIDL",
					PricePerUnit:       2.40,
					UnitSize:           10,
					UnitType:           units.Piece,
					PriceConversionSet: units.Convert(2.40, 10, units.Piece),
				}
			})

			It("should price the recipe", func() {
				Expect(scan.Costing).NotTo(BeNil())
				Expect(scan.Costing.Priced).To(Equal(1))
				Expect(scan.Costing.Total).To(BeNumerically("~", 0.96, 1e-9))
				Expect(scan.Costing.PerPortion).To(BeNumerically("~", 0.24, 1e-9))
			})
		})
	})

	Describe("ParseReceiptText", func() {
		It("should parse the text", func() {
			result, err := service.ParseReceiptText(lidlReceipt)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StoreName).To(Equal("LIDL"))
			Expect(db.scans).To(BeEmpty())
		})

		It("should reject blank text", func() {
			_, err := service.ParseReceiptText("  \n ")
			Expect(err).To(MatchError(ErrEmptyText))
		})
	})

	Describe("ParseRecipeText", func() {
		It("should parse the text", func() {
			result, err := service.ParseRecipeText(carbonaraRecipe)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Name).To(Equal("Spaghetti Carbonara"))
		})

		It("should reject blank text", func() {
			_, err := service.ParseRecipeText("")
			Expect(err).To(MatchError(ErrEmptyText))
		})
	})

	Describe("GetScan", func() {
		It("should return ErrNotFound for unknown IDs", func() {
			_, err := service.GetScan("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListScans", func() {
		BeforeEach(func() {
			db.scans["old"] = &Scan{ID: "old", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			db.scans["new"] = &Scan{ID: "new", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
			db.scans["mid"] = &Scan{ID: "mid", CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
		})

		It("should return the newest scan first", func() {
			scans, err := service.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(3))
			Expect(scans[0].ID).To(Equal("new"))
			Expect(scans[1].ID).To(Equal("mid"))
			Expect(scans[2].ID).To(Equal("old"))
		})

		It("should wrap database errors", func() {
			db.listErr = errors.New("boom")
			_, err := service.ListScans()
			Expect(err).To(MatchError(ContainSubstring("listing scans: boom")))
		})

		It("should price recipe scans against the pantry", func() {
			recipe := parsing.ParseRecipe(parsing.Preprocess(carbonaraRecipe))
			db.scans["recipe"] = &Scan{ID: "recipe", Kind: KindRecipe, Recipe: &recipe, CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
			db.ingredients["eier"] = pantry.Ingredient{ID: "eier", Name: "Eier", PriceConversionSet: units.Convert(2.40, 10, units.Piece)}

			scans, err := service.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans[0].ID).To(Equal("recipe"))
			Expect(scans[0].Costing).NotTo(BeNil())
			Expect(scans[0].Costing.Total).To(BeNumerically("~", 0.96, 0.001))
			Expect(scans[1].Costing).To(BeNil())
		})
	})

	Describe("DeleteScan", func() {
		JustBeforeEach(func() {
			_, err := service.ScanReceipt(context.Background(), Upload{Filename: "bon.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should remove the scan, its files and its ingredients", func() {
			Expect(service.DeleteScan("id-1")).To(Succeed())
			Expect(db.scans).To(BeEmpty())
			Expect(db.ingredients).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("should still delete the record when a file is gone", func() {
			storage.deleteErr = errors.New("no such file")
			Expect(service.DeleteScan("id-1")).To(Succeed())
			Expect(db.scans).To(BeEmpty())
		})

		It("should return ErrNotFound for unknown IDs", func() {
			err := service.DeleteScan("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("GetScanFile", func() {
		JustBeforeEach(func() {
			_, err := service.ScanReceipt(context.Background(), Upload{Filename: "bon.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the data and content type", func() {
			data, contentType, err := service.GetScanFile("id-1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpeg")))
			Expect(contentType).To(Equal("image/jpeg"))
		})

		It("should return ErrNotFound for a missing index", func() {
			_, _, err := service.GetScanFile("id-1", 1)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ComparePrices", func() {
		BeforeEach(func() {
			db.ingredients["a"] = pantry.Ingredient{ID: "a", Name: "Mehl", Shop: "ALDI", PriceConversionSet: units.Convert(0.79, 1, units.Kilogram)}
			db.ingredients["b"] = pantry.Ingredient{ID: "b", Name: "Mehl", Shop: "REWE", PriceConversionSet: units.Convert(1.49, 1, units.Kilogram)}
		})

		It("should compare the pantry", func() {
			groups, err := service.ComparePrices("mehl")
			Expect(err).NotTo(HaveOccurred())
			Expect(groups).To(HaveLen(1))
			Expect(groups[0].Cheapest.Shop).To(Equal("ALDI"))
		})
	})

	Describe("ingredients", func() {
		BeforeEach(func() {
			db.ingredients["b"] = pantry.Ingredient{ID: "b", Name: "Milch"}
			db.ingredients["a"] = pantry.Ingredient{ID: "a", Name: "butter"}
		})

		It("should list them by name", func() {
			list, err := service.ListIngredients(IngredientFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Name).To(Equal("butter"))
			Expect(list[0].Expiry).To(BeNil())
		})

		It("should record a best-before date", func() {
			status, err := service.SetExpiry("b", now.Add(3*24*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Expiry).To(Equal(&pantry.ExpiryWarning{DaysUntilExpiry: 3, ExpiringSoon: true}))
			Expect(db.ingredients["b"].ExpiryDate).NotTo(BeNil())
		})

		It("should return ErrNotFound for unknown ingredients", func() {
			_, err := service.SetExpiry("missing", now)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		Context("with stock levels", func() {
			BeforeEach(func() {
				current, minimum := 1.0, 2.0
				milch := db.ingredients["b"]
				milch.CurrentStock, milch.MinStock = &current, &minimum
				expiry := now.Add(24 * time.Hour)
				milch.ExpiryDate = &expiry
				db.ingredients["b"] = milch
			})

			It("should flag low stock", func() {
				list, err := service.ListIngredients(IngredientFilter{})
				Expect(err).NotTo(HaveOccurred())
				Expect(list[0].LowStock).To(BeFalse())
				Expect(list[1].LowStock).To(BeTrue())
			})

			It("should filter by low stock, expiry and name", func() {
				list, err := service.ListIngredients(IngredientFilter{LowStock: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(1))
				Expect(list[0].Name).To(Equal("Milch"))

				list, err = service.ListIngredients(IngredientFilter{Expiring: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(1))

				list, err = service.ListIngredients(IngredientFilter{Search: " BUTT "})
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(1))
				Expect(list[0].Name).To(Equal("butter"))
			})

			It("should update only the given stock values", func() {
				current := 5.0
				status, err := service.SetStock("b", &current, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(status.LowStock).To(BeFalse())
				Expect(*db.ingredients["b"].CurrentStock).To(Equal(5.0))
				Expect(*db.ingredients["b"].MinStock).To(Equal(2.0))
			})

			It("should reject negative stock", func() {
				negative := -1.0
				_, err := service.SetStock("b", nil, &negative)
				Expect(errors.Is(err, ErrInvalidInput)).To(BeTrue())
				Expect(*db.ingredients["b"].MinStock).To(Equal(2.0))
			})

			It("should return ErrNotFound when setting stock of unknown ingredients", func() {
				current := 1.0
				_, err := service.SetStock("missing", &current, nil)
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})

			It("should summarize the stock-tracked inventory", func() {
				summary, err := service.Inventory()
				Expect(err).NotTo(HaveOccurred())
				Expect(*summary).To(Equal(InventorySummary{Ingredients: 2, Stocked: 1, LowStock: 1, Expiring: 1}))
			})
		})
	})

	Describe("shopping list", func() {
		BeforeEach(func() {
			recipe := parsing.ParseRecipe(parsing.Preprocess(carbonaraRecipe))
			db.scans["recipe"] = &Scan{ID: "recipe", Kind: KindRecipe, Recipe: &recipe}
			db.scans["receipt"] = &Scan{ID: "receipt", Kind: KindReceipt}
			db.ingredients["eier"] = pantry.Ingredient{ID: "eier", Name: "Eier", Shop: "REWE", PriceConversionSet: units.Convert(2.40, 10, units.Piece)}
		})

		It("should scale a recipe to the requested portions", func() {
			scaled, err := service.ScaleRecipe("recipe", 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(scaled.ScaleFactor).To(Equal(2.0))
			Expect(scaled.Lines).To(HaveLen(2))
			Expect(scaled.Lines[1].Amount).To(Equal(8.0))
			Expect(scaled.EstimatedTotal).To(BeNumerically("~", 1.92, 0.001))
		})

		It("should refuse to scale receipts", func() {
			_, err := service.ScaleRecipe("receipt", 2)
			Expect(errors.Is(err, ErrNotRecipe)).To(BeTrue())
		})

		It("should return ErrNotFound for unknown scans", func() {
			_, err := service.AddRecipeToShoppingList("missing", 2)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should put a scaled recipe on the list", func() {
			items, err := service.AddRecipeToShoppingList("recipe", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(db.shopping).To(HaveLen(2))
			for _, item := range items {
				Expect(item.RecipeScanID).To(Equal("recipe"))
				Expect(item.AddedAt).To(Equal(now))
			}

			groups, err := service.ShoppingList()
			Expect(err).NotTo(HaveOccurred())
			Expect(groups).To(HaveLen(2))
			Expect(groups[0].Shop).To(Equal("REWE"))
			Expect(groups[0].Items[0].Amount).To(Equal(2.0))
			Expect(groups[1].Shop).To(Equal(parsing.UnknownStore))
		})

		It("should price manual entries from the pantry", func() {
			item, err := service.AddShoppingItem(pantry.ShoppingItem{Name: " Eier ", Amount: 6, Unit: "Stk"})
			Expect(err).NotTo(HaveOccurred())
			Expect(item.ID).To(Equal("id-1"))
			Expect(item.Name).To(Equal("Eier"))
			Expect(item.Unit).To(Equal(units.Piece))
			Expect(item.Shop).To(Equal("REWE"))
			Expect(item.IngredientID).To(Equal("eier"))
			Expect(item.Priority).To(Equal(pantry.PriorityNormal))
			Expect(item.EstimatedPrice).To(BeNumerically("~", 1.44, 0.001))
		})

		It("should keep the shop given for a manual entry", func() {
			item, err := service.AddShoppingItem(pantry.ShoppingItem{Name: "Salz", Shop: "ALDI", Priority: pantry.PriorityLow})
			Expect(err).NotTo(HaveOccurred())
			Expect(item.Shop).To(Equal("ALDI"))
			Expect(item.Amount).To(Equal(1.0))
			Expect(item.EstimatedPrice).To(BeZero())
		})

		DescribeTable("should reject invalid manual entries",
			func(item pantry.ShoppingItem) {
				_, err := service.AddShoppingItem(item)
				Expect(errors.Is(err, ErrInvalidInput)).To(BeTrue())
				Expect(db.shopping).To(BeEmpty())
			},
			Entry("no name", pantry.ShoppingItem{Name: "  "}),
			Entry("negative amount", pantry.ShoppingItem{Name: "Salz", Amount: -1}),
			Entry("unknown priority", pantry.ShoppingItem{Name: "Salz", Priority: "urgent"}),
		)

		Context("with entries", func() {
			BeforeEach(func() {
				db.shopping["a"] = pantry.ShoppingItem{ID: "a", Name: "Eier", Amount: 4, EstimatedPrice: 0.96, Priority: pantry.PriorityNormal, Checked: true}
				db.shopping["b"] = pantry.ShoppingItem{ID: "b", Name: "Salz", Amount: 1, Priority: pantry.PriorityNormal}
			})

			It("should tick off, re-prioritize and rescale an entry", func() {
				checked, high, amount := false, pantry.PriorityHigh, 8.0
				item, err := service.UpdateShoppingItem("a", ShoppingUpdate{Checked: &checked, Priority: &high, Amount: &amount})
				Expect(err).NotTo(HaveOccurred())
				Expect(item.Checked).To(BeFalse())
				Expect(item.Priority).To(Equal(pantry.PriorityHigh))
				Expect(item.EstimatedPrice).To(BeNumerically("~", 1.92, 0.001))
				Expect(db.shopping["a"].Amount).To(Equal(8.0))
			})

			It("should reject an unknown priority", func() {
				urgent := pantry.Priority("urgent")
				_, err := service.UpdateShoppingItem("a", ShoppingUpdate{Priority: &urgent})
				Expect(errors.Is(err, ErrInvalidInput)).To(BeTrue())
			})

			It("should return ErrNotFound for unknown entries", func() {
				checked := true
				_, err := service.UpdateShoppingItem("missing", ShoppingUpdate{Checked: &checked})
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
				Expect(errors.Is(service.DeleteShoppingItem("missing"), ErrNotFound)).To(BeTrue())
			})

			It("should delete an entry", func() {
				Expect(service.DeleteShoppingItem("b")).To(Succeed())
				Expect(db.shopping).To(HaveKey("a"))
				Expect(db.shopping).NotTo(HaveKey("b"))
			})

			It("should clear checked entries", func() {
				removed, err := service.ClearCheckedShoppingItems()
				Expect(err).NotTo(HaveOccurred())
				Expect(removed).To(Equal(1))
				Expect(db.shopping).To(HaveLen(1))
				Expect(db.shopping).To(HaveKey("b"))
			})
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleans phone file names",
		func(input, expected string) {
			Expect(sanitizeFilename(input)).To(Equal(expected))
		},
		Entry("plain", "bon.jpg", "bon.jpg"),
		Entry("special characters", "IMG_2024 (1).JPG", "IMG_2024 1.jpg"),
		Entry("umlauts", "Kassenbon Bäckerei.pdf", "Kassenbon Bäckerei.pdf"),
		Entry("path", "../../etc/passwd", "passwd"),
		Entry("empty base", "(((.png", "scan.png"),
	)
})
