package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgr/ledgr/internal/budget"
	"github.com/ledgr/ledgr/internal/expense"
	"github.com/ledgr/ledgr/internal/mail"
)

// Server handles HTTP requests for the receipt webhook and budget alert API
type Server struct {
	ingest    *expense.Service
	engine    *budget.Engine
	mailer    mail.Mailer
	fromEmail string
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials for the API routes. The
// inbound webhook route stays open; the mail provider calls it
// server-to-server.
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(ingest *expense.Service, engine *budget.Engine, mailer mail.Mailer, fromEmail string, basicAuth BasicAuth) *Server {
	return NewServerWithMux(ingest, engine, mailer, fromEmail, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(ingest *expense.Service, engine *budget.Engine, mailer mail.Mailer, fromEmail string, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		ingest:    ingest,
		engine:    engine,
		mailer:    mailer,
		fromEmail: fromEmail,
		basicAuth: basicAuth,
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

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="LEDGR"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all routes on the server's mux. Method patterns
// make the mux answer 405 for anything but POST on these paths.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /webhooks/receipts", s.handleInboundEmail)
	s.mux.HandleFunc("POST /api/budget-alerts/check", s.requireAuth(s.handleCheckAlerts))
	s.mux.HandleFunc("POST /api/budget-alerts/send", s.requireAuth(s.handleSendAlert))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
