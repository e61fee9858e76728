package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort int

	DatabaseURL string

	JWTAccessSecret []byte
	AuthHTTPURL     string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CatalogCacheTTL time.Duration

	OrderTxTimeout time.Duration

	NotifyTransport  string
	KafkaBrokers     []string
	KafkaGroupID     string
	RabbitMQURL      string
	RabbitMQExchange string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	OTLPEndpoint string

	CSRFEnabled bool
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		AuthHTTPURL:     os.Getenv("AUTH_URL"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         EnvIntDefault("REDIS_DB", 0),
		CatalogCacheTTL: EnvDurationDefault("CATALOG_CACHE_TTL", time.Hour),

		OrderTxTimeout: EnvDurationDefault("ORDER_TX_TIMEOUT", 5*time.Second),

		NotifyTransport:  strings.ToLower(EnvDefault("NOTIFY_TRANSPORT", "kafka")),
		KafkaBrokers:     CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaGroupID:     EnvDefault("KAFKA_GROUP_ID", "storefront-notifier"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: EnvDefault("RABBITMQ_EXCHANGE", "storefront.events"),

		OutboxPollInterval: EnvDurationDefault("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:    EnvIntDefault("OUTBOX_BATCH_SIZE", 50),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		CSRFEnabled: EnvBoolDefault("CSRF_ENABLED", false),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationDefault accepts Go duration strings ("30s") or a bare number of seconds.
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func EnvBoolDefault(key string, def bool) bool {
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
