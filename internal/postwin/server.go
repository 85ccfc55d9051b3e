// Package postwin is an in-process twin of the POS backend: the same routes,
// cookie authentication and tenant scoping, backed by SQLite. The harness's
// own tests run against it and cmd/posmock serves it standalone.
package postwin

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the twin's runtime settings.
type Config struct {
	JWTSecret  string
	CookieName string
	TokenTTL   time.Duration
	BcryptCost int
	Verbose    bool
}

func (c *Config) defaults() {
	if c.JWTSecret == "" {
		c.JWTSecret = "your-secret-key-change-in-production"
	}
	if c.CookieName == "" {
		c.CookieName = "auth_token"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
}

type Server struct {
	cfg    Config
	store  *Store
	router *chi.Mux
	log    *slog.Logger
}

// New wires the routes over store. A nil logger discards output.
func New(store *Store, cfg Config, logger *slog.Logger) *Server {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{cfg: cfg, store: store, log: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors)
	r.Use(s.requestLog)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/me", s.handleMe)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/products", s.handleListProducts)
			r.Post("/products", s.handleCreateProduct)
			r.Put("/products/{id}", s.handleUpdateProduct)
			r.Delete("/products/{id}", s.handleDeleteProduct)

			r.Get("/sales", s.handleListSales)
			r.Post("/sales", s.handleCreateSale)

			r.Post("/cash-register/open", s.handleOpenRegister)
			r.Get("/cash-register/current", s.handleCurrentRegister)
			r.Post("/cash-register/expense", s.handleMovement("expense"))
			r.Post("/cash-register/withdrawal", s.handleMovement("withdrawal"))
			r.Post("/cash-register/close", s.handleCloseRegister)
			r.Get("/cash-register/history", s.handleRegisterHistory)

			r.Get("/dashboard/stats", s.handleStats)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path))
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ---- Middleware ----

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if s.cfg.Verbose || rec.statusCode >= 500 {
			level = slog.LevelInfo
		}
		s.log.Log(r.Context(), level, "request",
			"id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration", time.Since(start),
		)
	})
}

// ---- Response helpers ----

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes the backend's error shape: {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
