package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server reads from the environment.
// Defaults are chosen so a bare `go run ./cmd/server` works on a
// laptop: sqlite on disk, redis on localhost, notifications logged.
type Config struct {
	HTTPAddr string `env:"ALLOC_HTTP_ADDR" envDefault:":8080"`

	DBDriver string `env:"ALLOC_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"ALLOC_DB_DSN" envDefault:"file:allocator.db?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"`

	Transport    string   `env:"ALLOC_TRANSPORT" envDefault:"redis"`
	RedisAddr    string   `env:"ALLOC_REDIS_ADDR" envDefault:"localhost:6379"`
	KafkaBrokers []string `env:"ALLOC_KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaGroupID string   `env:"ALLOC_KAFKA_GROUP_ID" envDefault:"allocator"`

	SMTPHost        string `env:"ALLOC_SMTP_HOST"`
	SMTPPort        int    `env:"ALLOC_SMTP_PORT" envDefault:"1025"`
	EmailFrom       string `env:"ALLOC_EMAIL_FROM" envDefault:"allocations@example.com"`
	StockAlertEmail string `env:"ALLOC_STOCK_ALERT_EMAIL" envDefault:"stock@example.com"`

	OTELEndpoint string `env:"ALLOC_OTEL_ENDPOINT"`

	ShutdownTimeout time.Duration `env:"ALLOC_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
