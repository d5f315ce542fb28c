// Package invoice requests invoice links from the bot backend on behalf of a
// booking widget session.
package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

var invoiceTracer = otel.Tracer("booking.internal.invoice")

// ErrMalformedResponse is returned when the backend answers without a usable
// invoice link.
var ErrMalformedResponse = errors.New("invoice: malformed response")

// LinkObserver records invoice link request outcomes.
type LinkObserver interface {
	ObserveInvoiceLinkRequest(status string, seconds float64)
}

// Client calls GET <endpoint>?description&prices&payload&initDataHash&dataCheckString
// and expects {"ok": true, "result": "<invoice link>"}.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	observer   LinkObserver
	logger     *logging.Logger
}

// NewClient creates a client for the invoice link endpoint.
func NewClient(endpoint string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// WithTimeout bounds each request. Zero disables the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

func (c *Client) WithObserver(observer LinkObserver) *Client {
	c.observer = observer
	return c
}

type linkResponse struct {
	OK          bool   `json:"ok"`
	Result      string `json:"result"`
	Description string `json:"description,omitempty"`
}

// CreateInvoiceLink implements booking.InvoiceLinkRequester.
func (c *Client) CreateInvoiceLink(ctx context.Context, req booking.InvoiceRequest) (link string, err error) {
	ctx, span := invoiceTracer.Start(ctx, "invoice.create_link")
	defer span.End()
	span.SetAttributes(attribute.Int("booking.line_items", len(req.Prices)))

	start := time.Now()
	status := "error"
	defer func() {
		if c.observer != nil {
			c.observer.ObserveInvoiceLinkRequest(status, time.Since(start).Seconds())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prices, err := req.PricesJSON()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invoice: invalid endpoint %q", c.endpoint)
	}
	q := u.Query()
	q.Set("description", req.Description)
	q.Set("prices", prices)
	q.Set("payload", req.Payload)
	q.Set("initDataHash", req.InitDataHash)
	q.Set("dataCheckString", req.DataCheckString)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("invoice: request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("invoice: http: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusMultipleChoices {
		status = fmt.Sprintf("http_%d", resp.StatusCode)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("invoice: endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed linkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		status = "malformed"
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !parsed.OK || strings.TrimSpace(parsed.Result) == "" {
		status = "malformed"
		return "", fmt.Errorf("%w: ok=%t description=%q", ErrMalformedResponse, parsed.OK, parsed.Description)
	}

	status = "ok"
	c.logger.Debug("invoice: link created",
		"line_items", len(req.Prices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return parsed.Result, nil
}
