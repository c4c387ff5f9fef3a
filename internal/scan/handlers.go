package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/pantry-scan/internal/pantry"
)

// maxFormSize bounds a multipart scan request (high-resolution phone photos, several pages)
const maxFormSize = int64(50 << 20)

// maxTextSize bounds a JSON parse request
const maxTextSize = int64(1 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// detectContentType falls back to the file extension when the part has no type
func detectContentType(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".gif":
			contentType = "image/gif"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	// Preserve HEIC/HEIF MIME types so conversion logic can detect them
	return strings.ToLower(strings.TrimSpace(contentType))
}

// readUploads reads every "file" part of a multipart request
func readUploads(w http.ResponseWriter, r *http.Request) ([]Upload, string, int) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if strings.Contains(err.Error(), "request body too large") {
			msg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		return nil, msg, http.StatusBadRequest
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return nil, "No file was selected. Please choose a file to upload.", http.StatusBadRequest
	}

	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		if header.Size > maxFormSize {
			return nil, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest
		}
		data, err := readPart(header)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			return nil, "Error reading file. Please try again.", http.StatusInternalServerError
		}
		uploads = append(uploads, Upload{
			Filename:    header.Filename,
			ContentType: detectContentType(header),
			Data:        data,
		})
	}
	return uploads, "", 0
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type scanFunc func(ctx context.Context, uploads ...Upload) (*Scan, error)

// handleScanReceipt handles receipt uploads
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	s.handleScan(w, r, s.service.ScanReceipt)
}

// handleScanRecipe handles recipe uploads
func (s *Server) handleScanRecipe(w http.ResponseWriter, r *http.Request) {
	s.handleScan(w, r, s.service.ScanRecipe)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request, scan scanFunc) {
	uploads, msg, code := readUploads(w, r)
	if code != 0 {
		jsonError(w, msg, code)
		return
	}

	result, err := scan(r.Context(), uploads...)
	if err != nil {
		slog.Error("Error processing scan", "path", r.URL.Path, "files", len(uploads), "error", err)
		switch {
		case errors.Is(err, ErrEmptyText):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, ErrRecognition), errors.Is(err, ErrNoFiles):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			jsonError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type parseRequest struct {
	Text string `json:"text"`
}

func decodeParseRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req parseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	return req.Text, true
}

// handleParseReceipt parses receipt text sent by the client
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeParseRequest(w, r)
	if !ok {
		return
	}
	result, err := s.service.ParseReceiptText(text)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleParseRecipe parses recipe text sent by the client
func (s *Server) handleParseRecipe(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeParseRequest(w, r)
	if !ok {
		return
	}
	result, err := s.service.ParseRecipeText(text)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListScans returns all scans, newest first
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan returns a single scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.service.GetScan(r.PathValue("id"))
	if err != nil {
		s.lookupError(w, "Scan not found", err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanFile returns one uploaded file of a scan
func (s *Server) handleGetScanFile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		corsError(w, "File index must be a number", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetScanFile(r.PathValue("id"), index)
	if err != nil {
		s.lookupError(w, "File not found", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a scan with its files and ingredients
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteScan(r.PathValue("id")); err != nil {
		s.lookupError(w, "Scan not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleComparePrices returns the price groups matching ?search=
func (s *Server) handleComparePrices(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.ComparePrices(r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("Error comparing prices", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleListIngredients returns the pantry, narrowed by ?search= and ?filter=low|expiring
func (s *Server) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := IngredientFilter{Search: query.Get("search")}
	switch query.Get("filter") {
	case "":
	case "low":
		filter.LowStock = true
	case "expiring":
		filter.Expiring = true
	default:
		jsonError(w, fmt.Sprintf("unknown filter %q", query.Get("filter")), http.StatusBadRequest)
		return
	}

	ingredients, err := s.service.ListIngredients(filter)
	if err != nil {
		slog.Error("Error listing ingredients", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// handleSetExpiry sets the best-before date of an ingredient
func (s *Server) handleSetExpiry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpiryDate string `json:"expiryDate"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	expiry, err := parseExpiryDate(req.ExpiryDate)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	status, err := s.service.SetExpiry(r.PathValue("id"), expiry)
	if err != nil {
		s.lookupError(w, "Ingredient not found", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// parseExpiryDate accepts YYYY-MM-DD (local midnight) and RFC 3339 timestamps
func parseExpiryDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseInLocation(time.DateOnly, value, time.Local); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid expiry date %q, expected YYYY-MM-DD", value)
}

// handleSetStock sets the current and minimum stock of an ingredient
func (s *Server) handleSetStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentStock *float64 `json:"currentStock"`
		MinStock     *float64 `json:"minStock"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status, err := s.service.SetStock(r.PathValue("id"), req.CurrentStock, req.MinStock)
	if err != nil {
		s.lookupError(w, "Ingredient not found", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleInventory returns the stock summary
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Inventory()
	if err != nil {
		s.lookupError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// portions reads a positive portion count. Zero means the recipe's own portions.
func portions(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid portions %q", value)
	}
	return n, nil
}

// handleScaleRecipe scales a recipe scan to ?portions=
func (s *Server) handleScaleRecipe(w http.ResponseWriter, r *http.Request) {
	n, err := portions(r.URL.Query().Get("portions"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	scaled, err := s.service.ScaleRecipe(r.PathValue("id"), n)
	if err != nil {
		s.lookupError(w, "Scan not found", err)
		return
	}
	writeJSON(w, http.StatusOK, scaled)
}

// handleAddRecipeToShoppingList puts a scaled recipe on the shopping list
func (s *Server) handleAddRecipeToShoppingList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Portions int `json:"portions"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&req); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Portions < 0 {
		jsonError(w, fmt.Sprintf("invalid portions %d", req.Portions), http.StatusBadRequest)
		return
	}

	items, err := s.service.AddRecipeToShoppingList(r.PathValue("id"), req.Portions)
	if err != nil {
		s.lookupError(w, "Scan not found", err)
		return
	}
	writeJSON(w, http.StatusCreated, items)
}

// handleShoppingList returns the shopping list grouped by shop
func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.ShoppingList()
	if err != nil {
		s.lookupError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleAddShoppingItem adds a manual entry to the shopping list
func (s *Server) handleAddShoppingItem(w http.ResponseWriter, r *http.Request) {
	var item pantry.ShoppingItem
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&item); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	added, err := s.service.AddShoppingItem(item)
	if err != nil {
		s.lookupError(w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// handleUpdateShoppingItem ticks off or re-prioritizes a shopping list entry
func (s *Server) handleUpdateShoppingItem(w http.ResponseWriter, r *http.Request) {
	var update ShoppingUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&update); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	item, err := s.service.UpdateShoppingItem(r.PathValue("id"), update)
	if err != nil {
		s.lookupError(w, "Shopping item not found", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteShoppingItem removes a shopping list entry
func (s *Server) handleDeleteShoppingItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteShoppingItem(r.PathValue("id")); err != nil {
		s.lookupError(w, "Shopping item not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearChecked removes all ticked-off shopping list entries
func (s *Server) handleClearChecked(w http.ResponseWriter, r *http.Request) {
	removed, err := s.service.ClearCheckedShoppingItems()
	if err != nil {
		s.lookupError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookupError maps ErrNotFound to 404, caller mistakes to 400 and everything else to 500
func (s *Server) lookupError(w http.ResponseWriter, notFound string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		corsError(w, notFound, http.StatusNotFound)
		return
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotRecipe):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Error("Request failed", "error", err)
	corsError(w, "Internal server error", http.StatusInternalServerError)
}
