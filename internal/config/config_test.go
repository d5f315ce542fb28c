package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("INVOICE_CURRENCY", "")
	t.Setenv("INVOICE_ENDPOINT_URL", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.InvoiceTitle != "Appointment" {
		t.Fatalf("expected default invoice title, got %s", cfg.InvoiceTitle)
	}
	if cfg.InvoiceCurrency != "USD" {
		t.Fatalf("expected default currency USD, got %s", cfg.InvoiceCurrency)
	}
	if !cfg.InvoiceNeedName || !cfg.InvoiceNeedPhoneNumber {
		t.Fatalf("expected name and phone to be requested by default")
	}
	if cfg.InvoiceRequestTimeout != 10*time.Second {
		t.Fatalf("expected default invoice timeout, got %s", cfg.InvoiceRequestTimeout)
	}
	if cfg.BookingDescriptionContext != "Beauty salon services" {
		t.Fatalf("unexpected description context: %s", cfg.BookingDescriptionContext)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
	if got := cfg.ResolvedInvoiceEndpointURL(); got != "http://localhost:8080/bot/create_invoice_link" {
		t.Fatalf("unexpected default invoice endpoint: %s", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("PUBLIC_BASE_URL", "https://salon.example.com/")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("INVOICE_CURRENCY", "eur")
	t.Setenv("INVOICE_NEED_NAME", "false")
	t.Setenv("INVOICE_REQUEST_TIMEOUT", "3s")
	t.Setenv("INVOICE_LINK_CACHE_TTL", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("INVOICE_ENDPOINT_URL", "")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.PublicBaseURL != "https://salon.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
	if cfg.BotToken != "123:abc" {
		t.Fatalf("expected bot token override, got %s", cfg.BotToken)
	}
	if cfg.InvoiceCurrency != "EUR" {
		t.Fatalf("expected upper-cased currency, got %s", cfg.InvoiceCurrency)
	}
	if cfg.InvoiceNeedName {
		t.Fatalf("expected need_name override to false")
	}
	if cfg.InvoiceRequestTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.InvoiceRequestTimeout)
	}
	if cfg.InvoiceLinkCacheTTL != time.Minute {
		t.Fatalf("expected cache ttl override, got %s", cfg.InvoiceLinkCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 4 {
		t.Fatalf("unexpected rate limit: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if got := cfg.ResolvedInvoiceEndpointURL(); got != "https://salon.example.com/bot/create_invoice_link" {
		t.Fatalf("unexpected invoice endpoint: %s", got)
	}
}

func TestExplicitInvoiceEndpointWins(t *testing.T) {
	cfg := &Config{Port: "8080", InvoiceEndpointURL: "https://backend.example/bot/create_invoice_link"}
	if got := cfg.ResolvedInvoiceEndpointURL(); got != "https://backend.example/bot/create_invoice_link" {
		t.Fatalf("expected explicit endpoint, got %s", got)
	}
}
