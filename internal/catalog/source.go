package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/booking-widget/pkg/logging"
)

var catalogTracer = otel.Tracer("booking.internal.catalog")

// maxCatalogBytes caps remote catalog documents.
const maxCatalogBytes = 4 << 20

// Source supplies the catalog a widget session starts from.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// StaticSource always returns the same catalog.
type StaticSource struct {
	Catalog *Catalog
}

func (s StaticSource) Load(context.Context) (*Catalog, error) {
	if err := s.Catalog.Validate(); err != nil {
		return nil, err
	}
	return s.Catalog, nil
}

// FileSource reads the catalog from a JSON file on every load so edits are
// picked up by new sessions.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*Catalog, error) {
	_, span := catalogTracer.Start(ctx, "catalog.load_file")
	defer span.End()
	span.SetAttributes(attribute.String("booking.catalog_path", s.Path))

	data, err := os.ReadFile(s.Path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("catalog: read %s: %w", s.Path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	return cat, nil
}

// HTTPSource fetches the catalog from the backend that owns availability.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPSource creates a source that GETs url.
func NewHTTPSource(url string, logger *logging.Logger) *HTTPSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPSource{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (s *HTTPSource) WithHTTPClient(client *http.Client) *HTTPSource {
	if client != nil {
		s.httpClient = client
	}
	return s
}

func (s *HTTPSource) Load(ctx context.Context) (*Catalog, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.load_http")
	defer span.End()
	span.SetAttributes(attribute.String("booking.catalog_url", s.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http failed")
		return nil, fmt.Errorf("catalog: http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("catalog: source status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return nil, err
	}

	cat, err := Parse(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	s.logger.Debug("catalog: loaded",
		"url", s.url,
		"services", len(cat.Services),
		"dates", len(cat.FreeSlots),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cat, nil
}
