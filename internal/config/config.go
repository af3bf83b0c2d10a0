package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRemote   = "remote"
)

// Config is read once from the environment at startup.
type Config struct {
	RunLocal bool
	HTTPAddr string
	LogLevel string

	LedgerBackend string
	LedgerURL     string
	DatabaseURL   string

	OrdersTable      string
	OrderItemsTable  string
	IdempotencyTable string
	MenuTable        string
	CategoriesTable  string

	NotifyQueueURL    string
	NotificationEmail string
	SMTP              SMTPConfig

	MetricsNamespace string

	OrderPrefix string
	Timezone    *time.Location

	CacheTTL       time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdempotencyTTL time.Duration
}

// SMTPConfig holds the mail relay used for order notifications.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		RunLocal: getBool("RUN_LOCAL", false),
		HTTPAddr: getString("HTTP_ADDR", ":8080"),
		LogLevel: getString("LOG_LEVEL", "info"),

		LedgerBackend: strings.ToLower(getString("LEDGER_BACKEND", BackendDynamoDB)),
		LedgerURL:     os.Getenv("LEDGER_URL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		OrdersTable:      getString("ORDERS_TABLE", "orders"),
		OrderItemsTable:  getString("ORDER_ITEMS_TABLE", "order_items"),
		IdempotencyTable: getString("IDEMPOTENCY_TABLE", "idempotency"),
		MenuTable:        getString("MENU_TABLE", "menu"),
		CategoriesTable:  getString("CATEGORIES_TABLE", "menu_categories"),

		NotifyQueueURL:    os.Getenv("NOTIFY_QUEUE_URL"),
		NotificationEmail: os.Getenv("NOTIFICATION_EMAIL"),
		SMTP: SMTPConfig{
			Addr:     os.Getenv("SMTP_ADDR"),
			From:     getString("SMTP_FROM", "orders@localhost"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},

		MetricsNamespace: getString("METRICS_NAMESPACE", "TableOrderflow"),
		OrderPrefix:      getString("ORDER_PREFIX", "ORD"),
	}

	var err error
	tz := getString("TIMEZONE", "Asia/Jakarta")
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 48*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LedgerBackend {
	case BackendDynamoDB, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s ledger backend", c.LedgerBackend)
		}
	case BackendRemote:
		if c.LedgerURL == "" {
			return fmt.Errorf("LEDGER_URL is required for the %s ledger backend", c.LedgerBackend)
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	return nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
