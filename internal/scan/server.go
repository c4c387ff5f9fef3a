package scan

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles HTTP requests for scans and the pantry
type Server struct {
	service   *Service
	basicAuth BasicAuth
	metrics   *Metrics
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth, metrics *Metrics) *Server {
	return NewServerWithMux(service, basicAuth, metrics, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, metrics *Metrics, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		metrics:   metrics,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Pantry Scan"`)
			corsError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route pattern
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		s.metrics.observeRequest(r.Pattern, rec.code)
	}
}

// handle registers an authenticated, instrumented API route
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.instrument(s.requireAuth(h)))
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.handle("POST /api/receipts/scan", s.handleScanReceipt)
	s.handle("POST /api/receipts/parse", s.handleParseReceipt)
	s.handle("POST /api/recipes/scan", s.handleScanRecipe)
	s.handle("POST /api/recipes/parse", s.handleParseRecipe)

	s.handle("GET /api/scans/{id}/files/{index}", s.handleGetScanFile)
	s.handle("GET /api/scans/{id}", s.handleGetScan)
	s.handle("DELETE /api/scans/{id}", s.handleDeleteScan)
	s.handle("GET /api/scans", s.handleListScans)
	s.handle("GET /api/scans/{id}/scale", s.handleScaleRecipe)
	s.handle("POST /api/scans/{id}/shopping", s.handleAddRecipeToShoppingList)

	s.handle("GET /api/shopping", s.handleShoppingList)
	s.handle("POST /api/shopping", s.handleAddShoppingItem)
	s.handle("PATCH /api/shopping/{id}", s.handleUpdateShoppingItem)
	s.handle("DELETE /api/shopping/checked", s.handleClearChecked)
	s.handle("DELETE /api/shopping/{id}", s.handleDeleteShoppingItem)

	s.handle("PUT /api/ingredients/{id}/expiry", s.handleSetExpiry)
	s.handle("PUT /api/ingredients/{id}/stock", s.handleSetStock)
	s.handle("GET /api/ingredients", s.handleListIngredients)
	s.handle("GET /api/inventory", s.handleInventory)
	s.handle("GET /api/prices", s.handleComparePrices)

	// Health checks and scraping stay open
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
