package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/utils"
)

type Config struct {
	Env       string    `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel  string    `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP      HTTP      `yaml:"http"`
	Postgres  PG        `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Tokenizer Tokenizer `yaml:"tokenizer"`
	PDF       PDF       `yaml:"pdf"`
	Recovery  Recovery  `yaml:"recovery"`

	// EcommerceFilter skips checkout-originated events, their receipts
	// are produced by a dedicated flow.
	EcommerceFilter bool `yaml:"ecommerce_filter" env:"ECOMMERCE_FILTER_ENABLED" env-default:"true"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"RECEIPT_QUEUE_TOPIC" env-default:"receipt-generation"`
}

type Tokenizer struct {
	BaseURL     string        `yaml:"base_url" env:"TOKENIZER_URL"`
	APIKey      string        `yaml:"api_key" env:"TOKENIZER_API_KEY"`
	MaxRetry    uint64        `yaml:"max_retry" env:"TOKENIZER_MAX_RETRY" env-default:"3"`
	InitialWait time.Duration `yaml:"initial_wait" env:"TOKENIZER_INITIAL_WAIT" env-default:"200ms"`
	Timeout     time.Duration `yaml:"timeout" env:"TOKENIZER_TIMEOUT" env-default:"5s"`
}

type PDF struct {
	EngineURL    string        `yaml:"engine_url" env:"PDF_ENGINE_URL"`
	EngineAPIKey string        `yaml:"engine_api_key" env:"PDF_ENGINE_API_KEY"`
	BlobURL      string        `yaml:"blob_url" env:"BLOB_STORAGE_URL"`
	BlobAPIKey   string        `yaml:"blob_api_key" env:"BLOB_STORAGE_API_KEY"`
	Timeout      time.Duration `yaml:"timeout" env:"PDF_TIMEOUT" env-default:"30s"`
}

// Recovery gates and tunes the background reconciliation loops. A
// disabled loop performs zero store calls.
type Recovery struct {
	FailedEnabled      bool          `yaml:"failed_enabled" env:"FAILED_AUTORECOVER_ENABLED" env-default:"true"`
	CartEnabled        bool          `yaml:"cart_enabled" env:"CART_AUTORECOVER_ENABLED" env-default:"true"`
	NotNotifiedEnabled bool          `yaml:"not_notified_enabled" env:"NOTIFIED_AUTORECOVER_ENABLED" env-default:"true"`
	FailedInterval     time.Duration `yaml:"failed_interval" env:"RECOVER_FAILED_INTERVAL" env-default:"1h"`
	CartInterval       time.Duration `yaml:"cart_interval" env:"RECOVER_CART_INTERVAL" env-default:"1h"`
	NotNotifiedInterval time.Duration `yaml:"not_notified_interval" env:"RECOVER_NOT_NOTIFIED_INTERVAL" env-default:"1h"`

	// Inserted receipts/carts younger than these windows are still
	// considered in-flight and skipped by the batch scans.
	MaxDateDiff     time.Duration `yaml:"max_date_diff" env:"MAX_DATE_DIFF_MILLIS" env-default:"6h"`
	MaxDateDiffCart time.Duration `yaml:"max_date_diff_cart" env:"MAX_DATE_DIFF_CART_MILLIS" env-default:"6h"`

	// Failed items older than this many days are out of recovery scope.
	MaxDays     int `yaml:"max_days" env:"RECOVER_MASSIVE_MAX_DAYS" env-default:"30"`
	MaxDaysCart int `yaml:"max_days_cart" env:"RECOVER_CART_MASSIVE_MAX_DAYS" env-default:"30"`
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	var cfg Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("error reading config from env: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
