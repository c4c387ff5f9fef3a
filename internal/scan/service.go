package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/pantry-scan/internal/pantry"
	"github.com/zombor/pantry-scan/internal/parsing"
	"github.com/zombor/pantry-scan/internal/scanning"
	"github.com/zombor/pantry-scan/internal/units"
)

var (
	// ErrEmptyText is returned when recognition or the caller produced no usable text
	ErrEmptyText = errors.New("no text recognized")
	// ErrNotFound is returned for unknown scans, ingredients and file indexes
	ErrNotFound = errors.New("not found")
	// ErrNoFiles is returned when a scan is requested without uploads
	ErrNoFiles = errors.New("at least one file is required")
	// ErrRecognition wraps failures of the recognizer, usually an unreadable upload
	ErrRecognition = errors.New("recognition failed")
	// ErrNotRecipe is returned when a recipe operation targets a receipt scan
	ErrNotRecipe = errors.New("scan is not a recipe")
	// ErrInvalidInput is returned for values a caller must correct
	ErrInvalidInput = errors.New("invalid input")
)

// IDGenerator generates unique IDs for scans and ingredients
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Upload is one file of a scan request
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service handles scan operations
type Service struct {
	db          DB
	recognizer  scanning.Recognizer
	storage     Storage
	receipts    *parsing.ReceiptParser
	recipes     *parsing.RecipeParser
	idGenerator IDGenerator
	timeSource  TimeSource
	metrics     *Metrics
}

// NewService creates a new Service with UUID IDs and the wall clock
func NewService(db DB, recognizer scanning.Recognizer, storage Storage, cfg parsing.Config) *Service {
	return NewServiceWithDeps(db, recognizer, storage, cfg, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, cfg parsing.Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		receipts:    parsing.NewReceiptParser(cfg.Receipt),
		recipes:     parsing.NewRecipeParser(cfg.Recipe),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WithMetrics makes the service record scan metrics
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// phone cameras produce very long names
	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "scan"
	}

	return base + ext
}

// ScanReceipt stores the uploads, reads them as one receipt and adds its items to the pantry
func (s *Service) ScanReceipt(ctx context.Context, uploads ...Upload) (*Scan, error) {
	return s.process(ctx, KindReceipt, uploads, func(scan *Scan, lines []string) []pantry.Ingredient {
		result := s.receipts.Parse(lines)
		scan.Receipt = &result
		scan.Title = receiptTitle(result)

		ingredients := pantry.FromReceipt(result, s.idGenerator.Generate)
		for i := range ingredients {
			ingredients[i].ScanID = scan.ID
			scan.IngredientIDs = append(scan.IngredientIDs, ingredients[i].ID)
		}
		return ingredients
	})
}

// ScanRecipe stores the uploads and reads them as one recipe
func (s *Service) ScanRecipe(ctx context.Context, uploads ...Upload) (*Scan, error) {
	scan, err := s.process(ctx, KindRecipe, uploads, func(scan *Scan, lines []string) []pantry.Ingredient {
		result := s.recipes.Parse(lines)
		scan.Recipe = &result
		scan.Title = result.Name
		if scan.Title == "" {
			scan.Title = "Rezept"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.attachCosting(scan)
	return scan, nil
}

func receiptTitle(r parsing.ReceiptParseResult) string {
	if r.PurchaseDate == nil {
		return r.StoreName
	}
	return fmt.Sprintf("%s %s", r.StoreName, r.PurchaseDate.Format("02.01.2006"))
}

// process runs the shared upload pipeline: store, recognize, merge, parse, persist.
// Stored files are removed again if a later step fails.
func (s *Service) process(ctx context.Context, kind Kind, uploads []Upload, parse func(*Scan, []string) []pantry.Ingredient) (*Scan, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	start := time.Now()
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	files := make([]File, 0, len(uploads))
	cleanup := func() {
		for _, f := range files {
			if err := s.storage.Delete(f.Filename); err != nil {
				slog.Warn("Failed to delete file", "filename", f.Filename, "error", err)
			}
		}
	}
	fail := func(err error) (*Scan, error) {
		cleanup()
		s.metrics.observeScan(kind, "error", 0, time.Since(start))
		return nil, err
	}

	for i, u := range uploads {
		saved, err := s.storage.Save(fmt.Sprintf("%s_%d_%s", id, i, sanitizeFilename(u.Filename)), u.Data)
		if err != nil {
			return fail(fmt.Errorf("saving file: %w", err))
		}
		files = append(files, File{Filename: saved, ContentType: u.ContentType, Size: len(u.Data)})
	}

	texts := make([]string, 0, len(uploads))
	for _, u := range uploads {
		text, err := s.recognizer.Recognize(ctx, u.Data, u.ContentType)
		if err != nil {
			slog.Error("Failed to recognize upload",
				"kind", kind,
				"filename", u.Filename,
				"content_type", u.ContentType,
				"file_size", len(u.Data),
				"error", err,
			)
			return fail(fmt.Errorf("%w: recognizing %s: %w", ErrRecognition, u.Filename, err))
		}
		texts = append(texts, text)
	}

	raw := strings.Join(texts, "\n")
	lines := parsing.Preprocess(raw)
	if len(lines) == 0 {
		return fail(ErrEmptyText)
	}

	scan := &Scan{
		ID:        id,
		Kind:      kind,
		Files:     files,
		RawText:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ingredients := parse(scan, lines)

	if err := s.db.SaveScan(scan, ingredients); err != nil {
		return fail(fmt.Errorf("saving scan to database: %w", err))
	}

	entries := len(ingredients)
	if scan.Recipe != nil {
		entries = len(scan.Recipe.Ingredients)
	}
	s.metrics.observeScan(kind, "ok", entries, time.Since(start))
	slog.Info("Scan processed", "id", id, "kind", kind, "files", len(files), "lines", len(lines), "entries", entries)

	return scan, nil
}

// ParseReceiptText parses OCR text supplied by the caller without storing anything
func (s *Service) ParseReceiptText(text string) (*parsing.ReceiptParseResult, error) {
	lines := parsing.Preprocess(text)
	if len(lines) == 0 {
		return nil, ErrEmptyText
	}
	result := s.receipts.Parse(lines)
	return &result, nil
}

// ParseRecipeText parses recipe text supplied by the caller without storing anything
func (s *Service) ParseRecipeText(text string) (*parsing.RecipeParseResult, error) {
	lines := parsing.Preprocess(text)
	if len(lines) == 0 {
		return nil, ErrEmptyText
	}
	result := s.recipes.Parse(lines)
	return &result, nil
}

// GetScan retrieves a scan by ID. Recipes are priced against the current pantry.
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	s.attachCosting(scan)
	return scan, nil
}

// attachCosting prices every recipe scan against the pantry, loading it once.
func (s *Service) attachCosting(scans ...*Scan) {
	var recipes []*Scan
	for _, scan := range scans {
		if scan.Recipe != nil {
			recipes = append(recipes, scan)
		}
	}
	if len(recipes) == 0 {
		return
	}

	ingredients, err := s.db.ListIngredients()
	if err != nil {
		slog.Warn("Failed to load pantry for recipe costing", "recipes", len(recipes), "error", err)
		return
	}
	for _, scan := range recipes {
		costing := pantry.CostRecipe(*scan.Recipe, ingredients)
		scan.Costing = &costing
	}
}

// ListScans returns all scans, newest first, recipes priced against the current pantry
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	s.attachCosting(scans...)
	return scans, nil
}

// DeleteScan removes a scan, its files and its pantry ingredients
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	for _, f := range scan.Files {
		if err := s.storage.Delete(f.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", f.Filename, "error", err)
		}
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}

// GetScanFile retrieves the data of the index-th upload of a scan
func (s *Service) GetScanFile(id string, index int) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}
	if index < 0 || index >= len(scan.Files) {
		return nil, "", fmt.Errorf("file %d of scan %s: %w", index, id, ErrNotFound)
	}

	f := scan.Files[index]
	data, err := s.storage.Get(f.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}
	return data, f.ContentType, nil
}

// ComparePrices compares pantry prices across shops
func (s *Service) ComparePrices(search string) ([]pantry.PriceGroup, error) {
	ingredients, err := s.db.ListIngredients()
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}
	return pantry.ComparePrices(ingredients, search), nil
}

// IngredientFilter narrows ListIngredients. Zero values match everything.
type IngredientFilter struct {
	Search   string
	LowStock bool
	Expiring bool
}

func (f IngredientFilter) match(st IngredientStatus) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(st.Name), strings.ToLower(strings.TrimSpace(f.Search))) {
		return false
	}
	if f.LowStock && !st.LowStock {
		return false
	}
	if f.Expiring && !st.Warning() {
		return false
	}
	return true
}

// ListIngredients returns the pantry sorted by name, with best-before and stock warnings
func (s *Service) ListIngredients(filter IngredientFilter) ([]IngredientStatus, error) {
	ingredients, err := s.db.ListIngredients()
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}

	now := s.timeSource.Now()
	statuses := make([]IngredientStatus, 0, len(ingredients))
	for _, ing := range ingredients {
		if st := s.status(ing, now); filter.match(st) {
			statuses = append(statuses, st)
		}
	}
	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := strings.ToLower(statuses[i].Name), strings.ToLower(statuses[j].Name)
		if a != b {
			return a < b
		}
		return statuses[i].PricePerUnit < statuses[j].PricePerUnit
	})
	return statuses, nil
}

// Inventory counts the pantry and the warnings of the stock-tracked part of it
func (s *Service) Inventory() (*InventorySummary, error) {
	ingredients, err := s.db.ListIngredients()
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}

	now := s.timeSource.Now()
	summary := &InventorySummary{Ingredients: len(ingredients)}
	for _, ing := range ingredients {
		if !ing.Stocked() {
			continue
		}
		summary.Stocked++
		st := s.status(ing, now)
		if st.LowStock {
			summary.LowStock++
		}
		if st.Warning() {
			summary.Expiring++
		}
	}
	return summary, nil
}

// SetStock updates the current and minimum stock of an ingredient. A nil value keeps the
// stored one.
func (s *Service) SetStock(id string, current, minimum *float64) (*IngredientStatus, error) {
	for _, v := range []*float64{current, minimum} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("stock must not be negative: %w", ErrInvalidInput)
		}
	}

	ing, err := s.db.GetIngredient(id)
	if err != nil {
		return nil, fmt.Errorf("getting ingredient: %w", err)
	}
	if current != nil {
		ing.CurrentStock = current
	}
	if minimum != nil {
		ing.MinStock = minimum
	}
	if err := s.db.SaveIngredient(ing); err != nil {
		return nil, fmt.Errorf("saving ingredient: %w", err)
	}
	status := s.status(*ing, s.timeSource.Now())
	return &status, nil
}

// SetExpiry records the best-before date of an ingredient
func (s *Service) SetExpiry(id string, expiry time.Time) (*IngredientStatus, error) {
	ing, err := s.db.GetIngredient(id)
	if err != nil {
		return nil, fmt.Errorf("getting ingredient: %w", err)
	}
	ing.ExpiryDate = &expiry
	if err := s.db.SaveIngredient(ing); err != nil {
		return nil, fmt.Errorf("saving ingredient: %w", err)
	}
	status := s.status(*ing, s.timeSource.Now())
	return &status, nil
}

func (s *Service) status(ing pantry.Ingredient, now time.Time) IngredientStatus {
	st := IngredientStatus{Ingredient: ing, LowStock: ing.LowStock()}
	if ing.ExpiryDate != nil {
		w := pantry.CheckExpiry(*ing.ExpiryDate, now)
		st.Expiry = &w
	}
	return st
}

// ScaleRecipe scales a recipe scan to portions and estimates its shopping cost
func (s *Service) ScaleRecipe(id string, portions int) (*pantry.ScaledRecipe, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	if scan.Recipe == nil {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotRecipe)
	}
	ingredients, err := s.db.ListIngredients()
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}
	scaled := pantry.ScaleRecipe(*scan.Recipe, portions, ingredients)
	return &scaled, nil
}

// AddRecipeToShoppingList puts the scaled ingredients of a recipe scan on the shopping list
func (s *Service) AddRecipeToShoppingList(id string, portions int) ([]pantry.ShoppingItem, error) {
	scaled, err := s.ScaleRecipe(id, portions)
	if err != nil {
		return nil, err
	}

	items := pantry.ShoppingItems(*scaled, s.idGenerator.Generate, s.timeSource.Now())
	for i := range items {
		items[i].RecipeScanID = id
	}
	if err := s.db.SaveShoppingItems(items); err != nil {
		return nil, fmt.Errorf("saving shopping items: %w", err)
	}
	slog.Info("Recipe added to shopping list", "scan", id, "portions", scaled.Portions, "items", len(items))
	return items, nil
}

// AddShoppingItem puts a single product on the shopping list. Shop and price are taken
// from the pantry when the caller leaves them out.
func (s *Service) AddShoppingItem(item pantry.ShoppingItem) (*pantry.ShoppingItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if item.Amount < 0 {
		return nil, fmt.Errorf("amount must not be negative: %w", ErrInvalidInput)
	}
	if item.Amount == 0 {
		item.Amount = 1
	}
	item.Unit = units.NormalizeUnit(item.Unit)
	if item.Unit == "" {
		item.Unit = units.Piece
	}
	if item.Priority == "" {
		item.Priority = pantry.PriorityNormal
	}
	if !item.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q: %w", item.Priority, ErrInvalidInput)
	}

	ingredients, err := s.db.ListIngredients()
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}
	line := pantry.ScaleRecipe(parsing.RecipeParseResult{
		Portions:    1,
		Ingredients: []parsing.RecipeIngredient{{Amount: item.Amount, Unit: item.Unit, Name: item.Name}},
	}, 1, ingredients).Lines[0]
	if item.Shop == "" {
		item.Shop = line.Shop
	}
	if item.Shop == "" {
		item.Shop = parsing.UnknownStore
	}
	item.IngredientID = line.IngredientID
	item.EstimatedPrice = line.EstimatedPrice

	item.ID = s.idGenerator.Generate()
	item.Checked = false
	item.AddedAt = s.timeSource.Now()
	if err := s.db.SaveShoppingItems([]pantry.ShoppingItem{item}); err != nil {
		return nil, fmt.Errorf("saving shopping item: %w", err)
	}
	return &item, nil
}

// ShoppingList returns the shopping list grouped by shop
func (s *Service) ShoppingList() ([]pantry.ShopGroup, error) {
	items, err := s.db.ListShoppingItems()
	if err != nil {
		return nil, fmt.Errorf("listing shopping items: %w", err)
	}
	return pantry.GroupByShop(items), nil
}

// ShoppingUpdate changes a shopping list entry. Nil fields keep their value.
type ShoppingUpdate struct {
	Checked  *bool            `json:"checked"`
	Priority *pantry.Priority `json:"priority"`
	Amount   *float64         `json:"amount"`
}

// UpdateShoppingItem ticks off or re-prioritizes a shopping list entry
func (s *Service) UpdateShoppingItem(id string, update ShoppingUpdate) (*pantry.ShoppingItem, error) {
	if update.Priority != nil && !update.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q: %w", *update.Priority, ErrInvalidInput)
	}
	if update.Amount != nil && *update.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidInput)
	}

	item, err := s.db.GetShoppingItem(id)
	if err != nil {
		return nil, fmt.Errorf("getting shopping item: %w", err)
	}
	if update.Checked != nil {
		item.Checked = *update.Checked
	}
	if update.Priority != nil {
		item.Priority = *update.Priority
	}
	if update.Amount != nil {
		if item.Amount > 0 {
			item.EstimatedPrice = item.EstimatedPrice * *update.Amount / item.Amount
		}
		item.Amount = *update.Amount
	}
	if err := s.db.SaveShoppingItems([]pantry.ShoppingItem{*item}); err != nil {
		return nil, fmt.Errorf("saving shopping item: %w", err)
	}
	return item, nil
}

// DeleteShoppingItem removes one entry from the shopping list
func (s *Service) DeleteShoppingItem(id string) error {
	if _, err := s.db.GetShoppingItem(id); err != nil {
		return fmt.Errorf("getting shopping item: %w", err)
	}
	if err := s.db.DeleteShoppingItems(id); err != nil {
		return fmt.Errorf("deleting shopping item: %w", err)
	}
	return nil
}

// ClearCheckedShoppingItems removes every ticked-off entry and returns how many were removed
func (s *Service) ClearCheckedShoppingItems() (int, error) {
	items, err := s.db.ListShoppingItems()
	if err != nil {
		return 0, fmt.Errorf("listing shopping items: %w", err)
	}
	var ids []string
	for _, item := range items {
		if item.Checked {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.db.DeleteShoppingItems(ids...); err != nil {
		return 0, fmt.Errorf("deleting shopping items: %w", err)
	}
	return len(ids), nil
}
