package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/booking-widget/pkg/logging"
)

var botTracer = otel.Tracer("booking.internal.telegram")

// LabeledPrice is a portion of the invoice price in minor units.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// InvoiceLinkParams are the createInvoiceLink arguments.
type InvoiceLinkParams struct {
	Title           string
	Description     string
	Payload         string
	ProviderToken   string
	Currency        string
	Prices          []LabeledPrice
	PhotoURL        string
	NeedName        bool
	NeedPhoneNumber bool
}

// APIError is an unsuccessful Bot API reply.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: bot api error %d: %s", e.Code, e.Description)
}

// BotClient calls the Telegram Bot API.
type BotClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// NewBotClient creates a Bot API client for token.
func NewBotClient(token string, logger *logging.Logger) *BotClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &BotClient{
		token:      token,
		baseURL:    "https://api.telegram.org",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Bot API base URL (for testing).
func (c *BotClient) WithBaseURL(baseURL string) *BotClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

func (c *BotClient) WithHTTPClient(client *http.Client) *BotClient {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// WithDryRun enables dry-run mode (returns fake links without calling Telegram).
func (c *BotClient) WithDryRun(enabled bool) *BotClient {
	c.dryRun = enabled
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// CreateInvoiceLink creates a payment invoice link.
func (c *BotClient) CreateInvoiceLink(ctx context.Context, params InvoiceLinkParams) (string, error) {
	ctx, span := botTracer.Start(ctx, "telegram.create_invoice_link")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.currency", params.Currency),
		attribute.Int("booking.line_items", len(params.Prices)),
	)

	if c.dryRun {
		link := "https://t.me/$dry-run-" + uuid.New().String()[:8]
		c.logger.Info("telegram dry run: skipping createInvoiceLink",
			"currency", params.Currency, "line_items", len(params.Prices))
		return link, nil
	}
	if c.token == "" {
		return "", fmt.Errorf("telegram: bot token not configured")
	}

	prices, err := json.Marshal(params.Prices)
	if err != nil {
		return "", fmt.Errorf("telegram: encode prices: %w", err)
	}
	form := url.Values{}
	form.Set("title", params.Title)
	form.Set("description", params.Description)
	form.Set("payload", params.Payload)
	form.Set("provider_token", params.ProviderToken)
	form.Set("currency", params.Currency)
	form.Set("prices", string(prices))
	if params.PhotoURL != "" {
		form.Set("photo_url", params.PhotoURL)
	}
	form.Set("need_name", strconv.FormatBool(params.NeedName))
	form.Set("need_phone_number", strconv.FormatBool(params.NeedPhoneNumber))

	var link string
	if err := c.call(ctx, "createInvoiceLink", form, &link); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "createInvoiceLink failed")
		return "", err
	}
	if link == "" {
		return "", fmt.Errorf("telegram: createInvoiceLink returned empty link")
	}
	return link, nil
}

func (c *BotClient) call(ctx context.Context, method string, form url.Values, out any) error {
	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL embeds the token; keep it out of the error.
		if urlErr, ok := err.(*url.Error); ok {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram: %s http: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: %s read: %w", method, err)
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("telegram: %s status %d: decode: %w", method, resp.StatusCode, err)
	}
	if !parsed.OK {
		code := parsed.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: parsed.Description}
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return fmt.Errorf("telegram: %s decode result: %w", method, err)
	}
	return nil
}
