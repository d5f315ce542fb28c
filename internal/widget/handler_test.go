package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/catalog"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
)

type stubRequester struct {
	mu       sync.Mutex
	requests []booking.InvoiceRequest
	link     string
	err      error
}

func (s *stubRequester) CreateInvoiceLink(ctx context.Context, req booking.InvoiceRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.link, s.err
}

func (s *stubRequester) first() booking.InvoiceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[0]
}

func (s *stubRequester) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type failingSource struct{}

func (failingSource) Load(context.Context) (*catalog.Catalog, error) {
	return nil, errors.New("catalog backend down")
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Services: []catalog.Service{
			{Index: 0, ID: catalog.StringID("svc1"), Title: "Haircut", Price: 25.0},
		},
		FreeSlots: catalog.FreeSlots{
			{Date: "2024-06-01", Times: []string{"09:00:00", "10:00:00"}},
		},
	}
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// expect reads until a message of type want arrives.
func expect(t *testing.T, conn *websocket.Conn, want string) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg OutboundMessage
		require.NoError(t, websocket.JSON.Receive(conn, &msg), "waiting for %q", want)
		if msg.Type == want {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg InboundMessage) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(conn, msg))
}

func fixedClock() booking.Clock {
	return booking.ClockFunc(func() time.Time {
		return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	})
}

func TestHandleWebSocketRequiresInitMessageID(t *testing.T) {
	h := NewHandler(catalog.StaticSource{Catalog: testCatalog()}, &stubRequester{}, nil)
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/ws?user_id=1001")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/ws?init_message_id=77")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestWidgetSessionBooksAndCloses(t *testing.T) {
	requester := &stubRequester{link: "https://t.me/$invoice123"}
	reg := prometheus.NewRegistry()
	h := NewHandler(catalog.StaticSource{Catalog: testCatalog()}, requester, nil).
		WithClock(fixedClock()).
		WithMetrics(metrics.NewBookingMetrics(reg))
	srv := newTestServer(t, h)

	conn := dial(t, srv, "user_id=1001&init_message_id=77&init_data_hash=abc&data_check_string=auth_date%3D1")

	sessionMsg := expect(t, conn, "session")
	assert.NotEmpty(t, sessionMsg.SessionID)
	screen := expect(t, conn, "screen")
	require.NotNil(t, screen.Screen)
	assert.Equal(t, booking.SectionServiceSelection, screen.Screen.Section)
	require.Len(t, screen.Screen.Services, 1)

	idx := 0
	send(t, conn, InboundMessage{Type: "select_service", Index: &idx})
	mainButton := expect(t, conn, "main_button")
	require.NotNil(t, mainButton.Visible)
	assert.True(t, *mainButton.Visible)

	send(t, conn, InboundMessage{Type: "main_button"})
	backButton := expect(t, conn, "back_button")
	require.NotNil(t, backButton.Visible)
	assert.True(t, *backButton.Visible)
	screen = expect(t, conn, "screen")
	assert.Equal(t, booking.SectionDateTimeSelection, screen.Screen.Section)
	assert.Equal(t, "today", screen.Screen.Dates[0].Label)
	assert.Empty(t, screen.Screen.Times)

	send(t, conn, InboundMessage{Type: "select_date", Key: "2024-06-01"})
	screen = expect(t, conn, "screen")
	require.Len(t, screen.Screen.Times, 2)
	send(t, conn, InboundMessage{Type: "select_time", Key: "09:00:00"})
	expect(t, conn, "screen")

	send(t, conn, InboundMessage{Type: "main_button"})
	invoice := expect(t, conn, "open_invoice")
	assert.Equal(t, "https://t.me/$invoice123", invoice.Link)

	require.Equal(t, 1, requester.count())
	req := requester.first()
	assert.Equal(t, `1001 77 ["svc1"] 2024-06-01 09:00:00`, req.Payload)
	assert.Equal(t, "abc", req.InitDataHash)
	assert.Equal(t, "auth_date=1", req.DataCheckString)

	send(t, conn, InboundMessage{Type: "invoice_closed", Status: "cancelled"})
	send(t, conn, InboundMessage{Type: "ping"})
	expect(t, conn, "pong")

	send(t, conn, InboundMessage{Type: "invoice_closed", Status: "paid"})
	expect(t, conn, "close")

	assert.Eventually(t, func() bool { return h.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWidgetConfirmWithoutTimeAlerts(t *testing.T) {
	requester := &stubRequester{link: "https://t.me/$invoice123"}
	h := NewHandler(catalog.StaticSource{Catalog: testCatalog()}, requester, nil).WithClock(fixedClock())
	srv := newTestServer(t, h)
	conn := dial(t, srv, "user_id=1001&init_message_id=77")
	expect(t, conn, "screen")

	send(t, conn, InboundMessage{Type: "select_service", Key: "0"})
	expect(t, conn, "screen")
	send(t, conn, InboundMessage{Type: "main_button"})
	expect(t, conn, "screen")
	send(t, conn, InboundMessage{Type: "select_date", Key: "2024-06-01"})
	expect(t, conn, "screen")

	send(t, conn, InboundMessage{Type: "main_button"})
	alert := expect(t, conn, "alert")
	assert.Equal(t, booking.AlertDateTimeRequired, alert.Text)
	assert.Equal(t, 0, requester.count())
}

func TestWidgetInvoiceFailureAlerts(t *testing.T) {
	requester := &stubRequester{err: errors.New("backend unavailable")}
	h := NewHandler(catalog.StaticSource{Catalog: testCatalog()}, requester, nil).WithClock(fixedClock())
	srv := newTestServer(t, h)
	conn := dial(t, srv, "user_id=1001&init_message_id=77")
	expect(t, conn, "screen")

	idx := 0
	send(t, conn, InboundMessage{Type: "select_service", Index: &idx})
	send(t, conn, InboundMessage{Type: "main_button"})
	send(t, conn, InboundMessage{Type: "select_date", Key: "2024-06-01"})
	send(t, conn, InboundMessage{Type: "select_time", Key: "10:00:00"})
	send(t, conn, InboundMessage{Type: "main_button"})

	alert := expect(t, conn, "alert")
	assert.Equal(t, booking.AlertInvoiceFailed, alert.Text)
}

func TestWidgetRejectsUnknownEvents(t *testing.T) {
	h := NewHandler(catalog.StaticSource{Catalog: testCatalog()}, &stubRequester{}, nil)
	srv := newTestServer(t, h)
	conn := dial(t, srv, "user_id=1001&init_message_id=77")
	expect(t, conn, "screen")

	send(t, conn, InboundMessage{Type: "dance"})
	msg := expect(t, conn, "error")
	assert.Contains(t, msg.Text, "unknown event type")

	send(t, conn, InboundMessage{Type: "select_date", Key: "2024-06-01"})
	msg = expect(t, conn, "error")
	assert.Contains(t, msg.Text, "not available in current section")
}

func TestWidgetCatalogFailure(t *testing.T) {
	h := NewHandler(failingSource{}, &stubRequester{}, nil)
	srv := newTestServer(t, h)
	conn := dial(t, srv, "user_id=1001&init_message_id=77")

	msg := expect(t, conn, "error")
	assert.Contains(t, msg.Text, "unavailable")
	assert.Equal(t, 0, h.ActiveSessions())
}

func TestCloseAllDisconnectsSessions(t *testing.T) {
	h := NewHandler(catalog.StaticSource{Catalog: testCatalog()}, &stubRequester{}, nil)
	srv := newTestServer(t, h)
	conn := dial(t, srv, "user_id=1001&init_message_id=77")
	expect(t, conn, "screen")
	require.Equal(t, 1, h.ActiveSessions())

	h.CloseAll()
	assert.Eventually(t, func() bool { return h.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}
