// Package invoicelink serves the endpoint that turns a booking widget's
// invoice request into a Telegram invoice link.
package invoicelink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/telegram"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// LinkCreator creates Telegram invoice links.
type LinkCreator interface {
	CreateInvoiceLink(ctx context.Context, params telegram.InvoiceLinkParams) (string, error)
}

// RateLimiter bounds link creation per caller.
type RateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// Observer records endpoint outcomes.
type Observer interface {
	ObserveLinkEndpoint(status string, cached bool, seconds float64)
}

// InvoiceSettings are the fixed createInvoiceLink arguments.
type InvoiceSettings struct {
	Title           string
	Currency        string
	ProviderToken   string
	PhotoURL        string
	NeedName        bool
	NeedPhoneNumber bool
}

// Handler serves GET /bot/create_invoice_link.
type Handler struct {
	botToken string
	creator  LinkCreator
	settings InvoiceSettings
	cache    LinkCache
	cacheTTL time.Duration
	limiter  RateLimiter
	observer Observer
	logger   *logging.Logger
}

// NewHandler creates the invoice link handler. botToken verifies init data.
func NewHandler(botToken string, creator LinkCreator, settings InvoiceSettings, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if settings.Title == "" {
		settings.Title = "Appointment"
	}
	if settings.Currency == "" {
		settings.Currency = "USD"
	}
	return &Handler{
		botToken: botToken,
		creator:  creator,
		settings: settings,
		logger:   logger,
	}
}

// WithCache enables link reuse for identical requests within ttl.
func (h *Handler) WithCache(cache LinkCache, ttl time.Duration) *Handler {
	h.cache = cache
	h.cacheTTL = ttl
	return h
}

// WithRateLimiter limits requests per verified Telegram user. Every widget
// session reaches this endpoint from the same server address, so the remote IP
// cannot tell users apart.
func (h *Handler) WithRateLimiter(limiter RateLimiter) *Handler {
	h.limiter = limiter
	return h
}

func (h *Handler) WithObserver(observer Observer) *Handler {
	h.observer = observer
	return h
}

type linkResponse struct {
	OK          bool   `json:"ok"`
	Result      string `json:"result,omitempty"`
	Description string `json:"description,omitempty"`
}

// ServeHTTP verifies the caller's init data, validates the request and
// answers {"ok": true, "result": "<link>"}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status, cached := "error", false
	defer func() {
		if h.observer != nil {
			h.observer.ObserveLinkEndpoint(status, cached, time.Since(start).Seconds())
		}
	}()

	q := r.URL.Query()
	if err := telegram.VerifyInitData(h.botToken, q.Get("initDataHash"), q.Get("dataCheckString")); err != nil {
		status = "unauthorized"
		h.logger.Warn("invoicelink: rejected init data", "error", err)
		writeJSON(w, http.StatusUnauthorized, linkResponse{Description: "invalid init data"})
		return
	}

	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(callerKey(r, q.Get("dataCheckString"))); !ok {
			status = "rate_limited"
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(math.Max(wait.Seconds(), 1)))))
			writeJSON(w, http.StatusTooManyRequests, linkResponse{Description: "rate limit exceeded"})
			return
		}
	}

	description := strings.TrimSpace(q.Get("description"))
	pricesRaw := q.Get("prices")
	payload := q.Get("payload")
	if description == "" || pricesRaw == "" || payload == "" {
		status = "bad_request"
		writeJSON(w, http.StatusBadRequest, linkResponse{Description: "description, prices and payload are required"})
		return
	}
	prices, err := parsePrices(pricesRaw)
	if err != nil {
		status = "bad_request"
		writeJSON(w, http.StatusBadRequest, linkResponse{Description: err.Error()})
		return
	}
	if _, err := booking.ParsePayload(payload); err != nil {
		status = "bad_request"
		writeJSON(w, http.StatusBadRequest, linkResponse{Description: err.Error()})
		return
	}

	ctx := r.Context()
	key := CacheKey(description, pricesRaw, payload)
	if h.cache != nil {
		link, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			h.logger.Warn("invoicelink: cache lookup failed", "error", err)
		} else if ok {
			status, cached = "ok", true
			writeJSON(w, http.StatusOK, linkResponse{OK: true, Result: link})
			return
		}
	}

	link, err := h.creator.CreateInvoiceLink(ctx, telegram.InvoiceLinkParams{
		Title:           h.settings.Title,
		Description:     description,
		Payload:         payload,
		ProviderToken:   h.settings.ProviderToken,
		Currency:        h.settings.Currency,
		Prices:          prices,
		PhotoURL:        h.settings.PhotoURL,
		NeedName:        h.settings.NeedName,
		NeedPhoneNumber: h.settings.NeedPhoneNumber,
	})
	if err != nil {
		status = "upstream_error"
		h.logger.Error("invoicelink: createInvoiceLink failed", "error", err)
		writeJSON(w, http.StatusBadGateway, linkResponse{Description: "could not create invoice link"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, link, h.cacheTTL); err != nil {
			h.logger.Warn("invoicelink: cache store failed", "error", err)
		}
	}

	status = "ok"
	h.logger.Info("invoicelink: link created",
		"line_items", len(prices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, linkResponse{OK: true, Result: link})
}

// callerKey identifies the caller by the Telegram user in its verified init
// data, falling back to the remote address when the user field is absent.
func callerKey(r *http.Request, dataCheckString string) string {
	if user, err := telegram.InitDataUser(dataCheckString); err == nil {
		return "user:" + strconv.FormatInt(user.ID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

var errInvalidPrices = errors.New("prices must be a non-empty JSON array of {label, amount}")

func parsePrices(raw string) ([]telegram.LabeledPrice, error) {
	var items []booking.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPrices, err)
	}
	if len(items) == 0 {
		return nil, errInvalidPrices
	}
	prices := make([]telegram.LabeledPrice, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Label) == "" || item.Amount < 0 {
			return nil, errInvalidPrices
		}
		prices = append(prices, telegram.LabeledPrice{Label: item.Label, Amount: item.Amount})
	}
	return prices, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
