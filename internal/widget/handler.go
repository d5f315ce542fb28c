// Package widget hosts booking widget sessions over WebSocket. Each connection
// owns one booking controller; the browser renders the screens it receives and
// forwards clicks and host events back.
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/catalog"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

var errUnknownEvent = errors.New("widget: unknown event type")

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type   string `json:"type"` // "select_service", "select_date", "select_time", "main_button", "back_button", "invoice_closed", "ping"
	Index  *int   `json:"index,omitempty"`
	Key    string `json:"key,omitempty"`
	Status string `json:"status,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string          `json:"type"` // "session", "screen", "main_button", "back_button", "alert", "open_invoice", "close", "error", "pong"
	SessionID string          `json:"session_id,omitempty"`
	Screen    *booking.Screen `json:"screen,omitempty"`
	Visible   *bool           `json:"visible,omitempty"`
	Text      string          `json:"text,omitempty"`
	Link      string          `json:"link,omitempty"`
}

// Handler manages booking widget connections.
type Handler struct {
	source             catalog.Source
	requester          booking.InvoiceLinkRequester
	descriptionContext string
	clock              booking.Clock
	metrics            *metrics.BookingMetrics
	logger             *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id     string
	ctrl   *booking.Controller
	host   *wsHost
	logger *logging.Logger
}

// NewHandler creates a widget handler loading each session's catalog from source.
func NewHandler(source catalog.Source, requester booking.InvoiceLinkRequester, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		source:    source,
		requester: requester,
		clock:     booking.SystemClock{},
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

func (h *Handler) WithDescriptionContext(text string) *Handler {
	h.descriptionContext = text
	return h
}

// WithClock overrides the clock used for date labels (for testing).
func (h *Handler) WithClock(clock booking.Clock) *Handler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *Handler) WithMetrics(m *metrics.BookingMetrics) *Handler {
	h.metrics = m
	return h
}

// ActiveSessions returns the number of connected sessions.
func (h *Handler) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll disconnects every session.
func (h *Handler) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		_ = s.host.conn.Close()
	}
}

// HandleWebSocket validates the session parameters and upgrades to WebSocket.
// user_id and init_message_id are required; init_data_hash and
// data_check_string are forwarded verbatim with the invoice request.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	identity := booking.Identity{
		UserID:          q.Get("user_id"),
		InitMessageID:   q.Get("init_message_id"),
		InitDataHash:    q.Get("init_data_hash"),
		DataCheckString: q.Get("data_check_string"),
	}
	if identity.InitMessageID == "" {
		h.metrics.SessionRejected("bad_request")
		http.Error(w, "init_message_id parameter required", http.StatusBadRequest)
		return
	}
	if identity.UserID == "" {
		h.metrics.SessionRejected("bad_request")
		http.Error(w, "user_id parameter required", http.StatusBadRequest)
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r, identity)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request, identity booking.Identity) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionID := uuid.New().String()
	logger := h.logger.WithSession(sessionID)
	host := &wsHost{conn: conn, logger: logger}

	cat, err := h.source.Load(ctx)
	if err != nil {
		logger.Error("widget: failed to load catalog", "error", err)
		h.metrics.SessionRejected("catalog_error")
		host.send(OutboundMessage{Type: "error", Text: "Booking is unavailable right now. Please try again later."})
		return
	}

	ctrl, err := booking.NewController(cat, identity, host, host, h.requester)
	if err != nil {
		logger.Error("widget: failed to start session", "error", err)
		h.metrics.SessionRejected("catalog_error")
		host.send(OutboundMessage{Type: "error", Text: "Booking is unavailable right now. Please try again later."})
		return
	}
	ctrl.WithClock(h.clock).WithDescriptionContext(h.descriptionContext).WithLogger(logger)

	sess := &session{id: sessionID, ctrl: ctrl, host: host, logger: logger}
	h.mu.Lock()
	h.sessions[sessionID] = sess
	h.mu.Unlock()
	h.metrics.SessionOpened()

	var confirmations sync.WaitGroup
	defer func() {
		cancel()
		confirmations.Wait()
		h.mu.Lock()
		delete(h.sessions, sessionID)
		h.mu.Unlock()
		h.metrics.SessionClosed()
		logger.Info("widget: session ended")
	}()

	logger.Info("widget: session opened",
		"user_id", identity.UserID,
		"init_message_id", identity.InitMessageID,
		"services", len(cat.Services),
		"dates", len(cat.FreeSlots),
	)
	host.send(OutboundMessage{Type: "session", SessionID: sessionID})
	ctrl.Start()

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			logger.Debug("widget: connection closed", "error", err)
			return
		}
		if done := h.dispatch(ctx, sess, msg, &confirmations); done {
			return
		}
	}
}

// dispatch applies one inbound event. It reports whether the session ended.
func (h *Handler) dispatch(ctx context.Context, s *session, msg InboundMessage, confirmations *sync.WaitGroup) bool {
	var err error
	eventType := msg.Type
	switch msg.Type {
	case "ping":
		s.host.send(OutboundMessage{Type: "pong"})
	case "select_service":
		switch {
		case msg.Index != nil:
			err = s.ctrl.ToggleService(*msg.Index)
		default:
			err = s.ctrl.ToggleServiceKey(msg.Key)
		}
	case "select_date":
		err = s.ctrl.SelectDate(msg.Key)
	case "select_time":
		err = s.ctrl.SelectTime(msg.Key)
	case "back_button":
		err = s.ctrl.Back()
	case "main_button":
		if s.ctrl.Section() == booking.SectionServiceSelection {
			err = s.ctrl.Advance()
			break
		}
		// Confirmation runs off the read loop so other events keep flowing
		// while the invoice link is requested.
		confirmations.Add(1)
		go func() {
			defer confirmations.Done()
			h.confirm(ctx, s)
		}()
	case "invoice_closed":
		h.metrics.ObserveEvent(eventType, "ok")
		return s.ctrl.InvoiceClosed(msg.Status)
	default:
		eventType = "unknown"
		err = fmt.Errorf("%w: %q", errUnknownEvent, msg.Type)
	}

	if err != nil {
		h.metrics.ObserveEvent(eventType, "rejected")
		s.logger.Debug("widget: event rejected", "type", msg.Type, "error", err)
		s.host.send(OutboundMessage{Type: "error", Text: err.Error()})
		return false
	}
	h.metrics.ObserveEvent(eventType, "ok")
	return false
}

func (h *Handler) confirm(ctx context.Context, s *session) {
	_, err := s.ctrl.Confirm(ctx)
	outcome := "opened"
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrRequestInFlight):
		outcome = "in_flight"
	case errors.Is(err, booking.ErrDateTimeRequired), errors.Is(err, booking.ErrNoServicesSelected):
		outcome = "alert"
	case errors.Is(err, booking.ErrWrongSection):
		outcome = "rejected"
	default:
		outcome = "failed"
	}
	h.metrics.ObserveConfirmation(outcome)
	if err != nil {
		s.logger.Info("widget: confirmation not completed", "outcome", outcome, "error", err)
	}
}
