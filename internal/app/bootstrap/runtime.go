package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/catalog"
	appconfig "github.com/wolfman30/booking-widget/internal/config"
	httpmiddleware "github.com/wolfman30/booking-widget/internal/http/middleware"
	"github.com/wolfman30/booking-widget/internal/invoice"
	"github.com/wolfman30/booking-widget/internal/invoicelink"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
	"github.com/wolfman30/booking-widget/internal/telegram"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// ErrNoCatalogSource is returned when neither CATALOG_PATH nor CATALOG_URL is set.
var ErrNoCatalogSource = errors.New("bootstrap: CATALOG_PATH or CATALOG_URL is required")

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLinkCache prefers Redis and falls back to an in-process cache.
func BuildLinkCache(redisClient *redis.Client) invoicelink.LinkCache {
	if redisClient == nil {
		return invoicelink.NewMemoryLinkCache()
	}
	return invoicelink.NewRedisLinkCache(redisClient, nil)
}

// BuildCatalogSource picks the catalog source. A local file wins over a URL.
func BuildCatalogSource(cfg *appconfig.Config, logger *logging.Logger) (catalog.Source, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if path := strings.TrimSpace(cfg.CatalogPath); path != "" {
		return catalog.FileSource{Path: path}, nil
	}
	if url := strings.TrimSpace(cfg.CatalogURL); url != "" {
		return catalog.NewHTTPSource(url, logger), nil
	}
	return nil, ErrNoCatalogSource
}

// BuildBotClient wires the Bot API client. Without a bot token the client
// runs in dry-run mode so local development works offline.
func BuildBotClient(cfg *appconfig.Config, logger *logging.Logger) *telegram.BotClient {
	dryRun := cfg.InvoiceDryRun || strings.TrimSpace(cfg.BotToken) == ""
	if dryRun && logger != nil {
		logger.Warn("telegram bot client in dry-run mode; invoice links are fake")
	}
	return telegram.NewBotClient(cfg.BotToken, logger).
		WithBaseURL(cfg.TelegramAPIBaseURL).
		WithDryRun(dryRun)
}

// BuildInvoiceRequester returns the client widget sessions use to obtain
// invoice links.
func BuildInvoiceRequester(cfg *appconfig.Config, m *metrics.BookingMetrics, logger *logging.Logger) booking.InvoiceLinkRequester {
	if cfg.InvoiceDryRun {
		return invoice.NewFakeClient(logger)
	}
	client := invoice.NewClient(cfg.ResolvedInvoiceEndpointURL(), logger).
		WithTimeout(cfg.InvoiceRequestTimeout)
	if m != nil {
		client = client.WithObserver(m)
	}
	return client
}

// BuildRateLimiter returns a limiter for RATE_LIMIT_RPS/RATE_LIMIT_BURST, or
// nil when limiting is disabled.
func BuildRateLimiter(cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg == nil || cfg.RateLimitRPS <= 0 {
		return nil
	}
	return httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}

// BuildInvoiceLinkHandler wires the server side of the invoice link endpoint.
// limiter may be nil.
func BuildInvoiceLinkHandler(cfg *appconfig.Config, bot invoicelink.LinkCreator, cache invoicelink.LinkCache, limiter *httpmiddleware.RateLimiter, m *metrics.BookingMetrics, logger *logging.Logger) *invoicelink.Handler {
	h := invoicelink.NewHandler(cfg.BotToken, bot, invoicelink.InvoiceSettings{
		Title:           cfg.InvoiceTitle,
		Currency:        cfg.InvoiceCurrency,
		ProviderToken:   cfg.PaymentProviderToken,
		PhotoURL:        cfg.InvoicePhotoURL,
		NeedName:        cfg.InvoiceNeedName,
		NeedPhoneNumber: cfg.InvoiceNeedPhoneNumber,
	}, logger)
	if cache != nil && cfg.InvoiceLinkCacheTTL > 0 {
		h = h.WithCache(cache, cfg.InvoiceLinkCacheTTL)
	}
	if limiter != nil {
		h = h.WithRateLimiter(limiter)
	}
	if m != nil {
		h = h.WithObserver(m)
	}
	return h
}
