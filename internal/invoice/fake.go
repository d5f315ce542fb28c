package invoice

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// FakeClient returns placeholder invoice links without calling any backend.
// It is used in dry-run deployments and local development.
type FakeClient struct {
	logger *logging.Logger

	mu       sync.Mutex
	requests []booking.InvoiceRequest
}

func NewFakeClient(logger *logging.Logger) *FakeClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeClient{logger: logger}
}

func (f *FakeClient) CreateInvoiceLink(ctx context.Context, req booking.InvoiceRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	link := "https://t.me/$dry-run-" + uuid.New().String()[:8]
	f.logger.Info("invoice dry run: returning placeholder link",
		"link", link, "line_items", len(req.Prices), "payload", req.Payload)
	return link, nil
}

// Requests returns the requests received so far.
func (f *FakeClient) Requests() []booking.InvoiceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]booking.InvoiceRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
