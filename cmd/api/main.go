package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-widget/internal/api/router"
	"github.com/wolfman30/booking-widget/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-widget/internal/config"
	httpmiddleware "github.com/wolfman30/booking-widget/internal/http/middleware"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
	"github.com/wolfman30/booking-widget/internal/widget"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking widget server",
		"env", cfg.Env,
		"port", cfg.Port,
		"invoice_endpoint", cfg.ResolvedInvoiceEndpointURL(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.handler,
		// Widget sessions are long-lived websockets, so only header reads are bounded.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	app.widget.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler  http.Handler
	widget   *widget.Handler
	limiters []*httpmiddleware.RateLimiter
	redis    *redis.Client
}

func (a *application) Close() {
	for _, l := range a.limiters {
		if l != nil {
			l.Stop()
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// buildApp wires every component from configuration.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	source, err := bootstrap.BuildCatalogSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	// Fail fast on a broken catalog instead of on the first session.
	if _, err := source.Load(ctx); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	metricsHandler, bookingMetrics := setupMetrics(cfg)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		logger.Info("invoice link cache backed by redis", "addr", cfg.RedisAddr)
	}

	// Session opens are limited per IP; invoice links per Telegram user.
	sessionLimiter := bootstrap.BuildRateLimiter(cfg)
	linkLimiter := bootstrap.BuildRateLimiter(cfg)

	bot := bootstrap.BuildBotClient(cfg, logger)
	links := bootstrap.BuildInvoiceLinkHandler(cfg, bot, bootstrap.BuildLinkCache(redisClient), linkLimiter, bookingMetrics, logger)

	widgetHandler := widget.NewHandler(source, bootstrap.BuildInvoiceRequester(cfg, bookingMetrics, logger), logger).
		WithDescriptionContext(cfg.BookingDescriptionContext).
		WithMetrics(bookingMetrics)

	handler := router.New(&router.Config{
		Logger:             logger,
		Widget:             widgetHandler,
		InvoiceLinks:       links,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SessionRateLimiter: sessionLimiter,
	})

	return &application{
		handler:  handler,
		widget:   widgetHandler,
		limiters: []*httpmiddleware.RateLimiter{sessionLimiter, linkLimiter},
		redis:    redisClient,
	}, nil
}

// setupMetrics returns the /metrics handler and booking metrics. Both are nil
// when metrics are disabled; nil metrics are safe to use.
func setupMetrics(cfg *appconfig.Config) (http.Handler, *metrics.BookingMetrics) {
	if !cfg.MetricsEnabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}
