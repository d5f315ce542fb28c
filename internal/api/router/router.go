package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/booking-widget/internal/http/middleware"
	"github.com/wolfman30/booking-widget/internal/widget"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Widget             *widget.Handler
	InvoiceLinks       http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Optional per-IP limiter for websocket session opens. The invoice link
	// endpoint limits per Telegram user itself.
	SessionRateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Widget session (websocket upgrade)
	if cfg.Widget != nil {
		r.Group(func(ws chi.Router) {
			if cfg.SessionRateLimiter != nil {
				ws.Use(httpmiddleware.RateLimit(cfg.SessionRateLimiter))
			}
			ws.Get("/ws", cfg.Widget.HandleWebSocket)
		})
	}

	if cfg.InvoiceLinks != nil {
		r.Method(http.MethodGet, "/bot/create_invoice_link", cfg.InvoiceLinks)
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
