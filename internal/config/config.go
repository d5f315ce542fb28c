package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Telegram Bot API
	BotToken             string
	PaymentProviderToken string
	TelegramAPIBaseURL   string

	// Invoice parameters sent to createInvoiceLink
	InvoiceTitle           string
	InvoiceCurrency        string
	InvoicePhotoURL        string
	InvoiceNeedName        bool
	InvoiceNeedPhoneNumber bool

	// Widget -> invoice link endpoint
	InvoiceEndpointURL        string
	InvoiceRequestTimeout     time.Duration
	InvoiceDryRun             bool
	InvoiceLinkCacheTTL       time.Duration
	BookingDescriptionContext string

	// Catalog supplied to the widget
	CatalogPath string
	CatalogURL  string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MetricsEnabled     bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		BotToken:             getEnv("BOT_TOKEN", ""),
		PaymentProviderToken: getEnv("PAYMENT_PROVIDER_TOKEN", ""),
		TelegramAPIBaseURL:   getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),

		InvoiceTitle:           getEnv("INVOICE_TITLE", "Appointment"),
		InvoiceCurrency:        strings.ToUpper(getEnv("INVOICE_CURRENCY", "USD")),
		InvoicePhotoURL:        getEnv("INVOICE_PHOTO_URL", ""),
		InvoiceNeedName:        getEnvAsBool("INVOICE_NEED_NAME", true),
		InvoiceNeedPhoneNumber: getEnvAsBool("INVOICE_NEED_PHONE_NUMBER", true),

		InvoiceEndpointURL:        getEnv("INVOICE_ENDPOINT_URL", ""),
		InvoiceRequestTimeout:     getEnvAsDuration("INVOICE_REQUEST_TIMEOUT", 10*time.Second),
		InvoiceDryRun:             getEnvAsBool("INVOICE_DRY_RUN", false),
		InvoiceLinkCacheTTL:       getEnvAsDuration("INVOICE_LINK_CACHE_TTL", 10*time.Minute),
		BookingDescriptionContext: getEnv("BOOKING_DESCRIPTION_CONTEXT", "Beauty salon services"),

		CatalogPath: getEnv("CATALOG_PATH", ""),
		CatalogURL:  getEnv("CATALOG_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
	}
}

// ResolvedInvoiceEndpointURL returns the endpoint the widget calls to obtain invoice links.
// Without an explicit INVOICE_ENDPOINT_URL it points at this server's own handler.
func (c *Config) ResolvedInvoiceEndpointURL() string {
	if c.InvoiceEndpointURL != "" {
		return c.InvoiceEndpointURL
	}
	base := c.PublicBaseURL
	if base == "" {
		base = "http://localhost:" + c.Port
	}
	return base + "/bot/create_invoice_link"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
