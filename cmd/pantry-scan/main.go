package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/pantry-scan/internal/parsing"
	"github.com/zombor/pantry-scan/internal/scan"
	"github.com/zombor/pantry-scan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("pantry-scan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "pantry-scan.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./scans", "Storage directory path")
		recognizerType = fs.StringLong("recognizer", "gemini", "Text recognizer: 'gemini', 'ollama' or 'tesseract'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		tesseractLang  = fs.StringLong("tesseract-lang", "deu+eng", "Tesseract languages, joined with '+'")
		parserConfig   = fs.StringLong("parser-config", "", "YAML file overriding parser keywords and defaults (optional)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		noMetrics      = fs.BoolLong("no-metrics", "Disable the /metrics endpoint")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PANTRY_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := parsing.DefaultConfig()
	if *parserConfig != "" {
		var err error
		cfg, err = parsing.LoadConfig(*parserConfig)
		if err != nil {
			slog.Error("Failed to load parser config", "path", *parserConfig, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded parser config", "path", *parserConfig)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := scan.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	recognizer, err := newRecognizer(*recognizerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel, *tesseractLang)
	if err != nil {
		slog.Error("Failed to initialize recognizer", "type", *recognizerType, "error", err)
		os.Exit(1)
	}
	defer recognizer.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := scan.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var metrics *scan.Metrics
	if !*noMetrics {
		metrics = scan.NewMetrics()
	}

	scanService := scan.NewService(db, recognizer, store, cfg).WithMetrics(metrics)

	basicAuth := scan.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := scan.NewServer(scanService, basicAuth, metrics)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

func newRecognizer(kind, geminiKey, geminiModel, ollamaURL, ollamaModel, tesseractLang string) (scanning.Recognizer, error) {
	switch kind {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini recognizer...", "model", geminiModel)
		return scanning.NewGemini(apiKey, geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", ollamaURL, "model", ollamaModel)
		return scanning.NewOllama(ollamaURL, ollamaModel)
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "languages", tesseractLang)
		return scanning.NewTesseract(strings.Split(tesseractLang, "+")...)
	default:
		return nil, fmt.Errorf("invalid recognizer type %q, expected gemini, ollama or tesseract", kind)
	}
}
