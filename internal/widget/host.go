package widget

import (
	"sync"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// wsHost forwards host primitives and screens to the browser. Sends are
// serialized because confirmations write from their own goroutine.
type wsHost struct {
	conn   *websocket.Conn
	logger *logging.Logger

	mu sync.Mutex
}

func (h *wsHost) send(msg OutboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := websocket.JSON.Send(h.conn, msg); err != nil {
		h.logger.Debug("widget: send failed", "type", msg.Type, "error", err)
	}
}

func visible(v bool) *bool { return &v }

func (h *wsHost) ShowMainButton() {
	h.send(OutboundMessage{Type: "main_button", Visible: visible(true)})
}

func (h *wsHost) HideMainButton() {
	h.send(OutboundMessage{Type: "main_button", Visible: visible(false)})
}

func (h *wsHost) SetMainButtonText(text string) {
	h.send(OutboundMessage{Type: "main_button", Text: text})
}

func (h *wsHost) ShowBackButton() {
	h.send(OutboundMessage{Type: "back_button", Visible: visible(true)})
}

func (h *wsHost) HideBackButton() {
	h.send(OutboundMessage{Type: "back_button", Visible: visible(false)})
}

func (h *wsHost) ShowAlert(text string) {
	h.send(OutboundMessage{Type: "alert", Text: text})
}

func (h *wsHost) OpenInvoice(link string) {
	h.send(OutboundMessage{Type: "open_invoice", Link: link})
}

func (h *wsHost) Close() {
	h.send(OutboundMessage{Type: "close"})
}

func (h *wsHost) Render(screen booking.Screen) {
	h.send(OutboundMessage{Type: "screen", Screen: &screen})
}
