package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ledgr/ledgr/internal/budget"
	"github.com/ledgr/ledgr/internal/expense"
	"github.com/ledgr/ledgr/internal/extraction"
	"github.com/ledgr/ledgr/internal/mail"
	"github.com/ledgr/ledgr/internal/server"
	"github.com/ledgr/ledgr/internal/store"
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

	fs := ff.NewFlagSet("ledgr-server")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "ledgr.db", "Database file path")
		extractorType   = fs.StringLong("extractor", "gemini", "Extractor type: 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-1.5-flash", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llama3", "Ollama model name")
		extractTimeout  = fs.DurationLong("extract-timeout", 30*time.Second, "Timeout for one extraction call")
		postmarkToken   = fs.StringLong("postmark-token", "", "Postmark server token (required)")
		postmarkURL     = fs.StringLong("postmark-url", "", "Postmark API base URL override")
		fromEmail       = fs.StringLong("from-email", "", "Verified sender address for alert emails (required)")
		sendTimeout     = fs.DurationLong("send-timeout", 10*time.Second, "Timeout for one email delivery call")
		suppressRepeats = fs.BoolLong("suppress-repeat-alerts", "Send at most one alert email per alert per period window")
		seedCategories  = fs.BoolLong("seed-categories", "Insert the default category set on startup")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username for the API routes (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password for the API routes (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LEDGR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := store.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *seedCategories {
		if err := db.SeedCategories(expense.Categories); err != nil {
			slog.Error("Failed to seed categories", "error", err)
			os.Exit(1)
		}
	}

	// Initialize extractor based on type
	var extractor extraction.Extractor
	switch *extractorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(apiKey, *geminiModel, *extractTimeout)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = extraction.NewOllama(*ollamaURL, *ollamaModel, *extractTimeout)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer extractor.Close()

	// Missing email credentials are a startup failure, not a per-request one
	if *postmarkToken == "" {
		slog.Error("Postmark server token is required. Set --postmark-token flag or LEDGR_POSTMARK_TOKEN environment variable")
		os.Exit(1)
	}
	if *fromEmail == "" {
		slog.Error("Sender address is required. Set --from-email flag or LEDGR_FROM_EMAIL environment variable")
		os.Exit(1)
	}
	if err := mail.ValidateAddress(*fromEmail); err != nil {
		slog.Error("Sender address is not a valid email address", "from", *fromEmail)
		os.Exit(1)
	}

	mailer, err := mail.NewPostmark(*postmarkToken, *postmarkURL, *sendTimeout)
	if err != nil {
		slog.Error("Failed to initialize Postmark", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline services
	ingestService := expense.NewService(db, extractor)
	engine := budget.NewEngine(db, mailer, *fromEmail, *suppressRepeats)

	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	srv := server.NewServer(ingestService, engine, mailer, *fromEmail, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled for API routes", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
