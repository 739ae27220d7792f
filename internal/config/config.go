package config

import (
	"fmt"
	"time"

	"github.com/utafrali/coursesearch/internal/engine/elasticsearch"
	pkgconfig "github.com/utafrali/coursesearch/pkg/config"
	"github.com/utafrali/coursesearch/pkg/database"
	"github.com/utafrali/coursesearch/pkg/httpclient"
	"github.com/utafrali/coursesearch/pkg/middleware"
	"github.com/utafrali/coursesearch/pkg/tracing"
)

// Search engine backends.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Config holds all configuration for the course search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"course-search"`

	// HTTP server
	HTTPPort           int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CacheMaxAge        int           `env:"CACHE_MAX_AGE" envDefault:"0"`
	AdminToken         string        `env:"ADMIN_TOKEN"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Search engine selection (elasticsearch or memory)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`

	// Elasticsearch
	ElasticsearchURLs     []string      `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchIndex    string        `env:"ELASTICSEARCH_INDEX" envDefault:"courses"`
	ElasticsearchUsername string        `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string        `env:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchTimeout  time.Duration `env:"ELASTICSEARCH_TIMEOUT" envDefault:"10s"`
	SlowQueryThreshold    time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"500ms"`

	// Circuit breaker around the Elasticsearch transport
	BreakerEnabled      bool          `env:"BREAKER_ENABLED" envDefault:"true"`
	BreakerFailureRatio float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerOpenTimeout  time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	// Catalog dataset
	CatalogPath   string `env:"CATALOG_PATH"`
	CatalogWatch  bool   `env:"CATALOG_WATCH" envDefault:"false"`
	LoadOnStartup bool   `env:"LOAD_ON_STARTUP" envDefault:"true"`

	// Redis (shared reindex lock, event idempotency)
	RedisEnabled       bool          `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost          string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort          int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	RedisSlowThreshold time.Duration `env:"REDIS_SLOW_THRESHOLD" envDefault:"100ms"`
	ReindexLockTTL     time.Duration `env:"REINDEX_LOCK_TTL" envDefault:"5m"`

	// Kafka
	KafkaEnabled    bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID    string        `env:"KAFKA_GROUP_ID" envDefault:"course-search"`
	KafkaMaxRetries int           `env:"KAFKA_MAX_RETRIES" envDefault:"3"`
	KafkaDLQEnabled bool          `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`
	IdempotencyTTL  time.Duration `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load course search config: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load course search config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.SearchEngine {
	case EngineElasticsearch:
		if len(c.ElasticsearchURLs) == 0 {
			return fmt.Errorf("ELASTICSEARCH_URL is required for the %s engine", EngineElasticsearch)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("unknown search engine %q (want %s or %s)", c.SearchEngine, EngineElasticsearch, EngineMemory)
	}
	if c.CatalogWatch && c.CatalogPath == "" {
		return fmt.Errorf("CATALOG_WATCH requires CATALOG_PATH")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("invalid breaker failure ratio: %v", c.BreakerFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("invalid OTEL sample rate: %v", c.OTELSampleRate)
	}
	if c.RedisEnabled && c.ReindexLockTTL <= 0 {
		return fmt.Errorf("invalid reindex lock TTL: %s", c.ReindexLockTTL)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
		}
		if c.KafkaGroupID == "" {
			return fmt.Errorf("KAFKA_GROUP_ID is required when Kafka is enabled")
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Elasticsearch returns the engine settings. The transport is left to the
// caller.
func (c *Config) Elasticsearch() elasticsearch.Config {
	return elasticsearch.Config{
		Addresses: c.ElasticsearchURLs,
		Index:     c.ElasticsearchIndex,
		Username:  c.ElasticsearchUsername,
		Password:  c.ElasticsearchPassword,
	}
}

// Transport returns the upstream HTTP settings for the engine client.
func (c *Config) Transport() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = c.ElasticsearchTimeout
	return cfg
}

// Breaker returns the circuit breaker settings for the engine client.
func (c *Config) Breaker() httpclient.CircuitBreakerConfig {
	cfg := httpclient.DefaultCircuitBreakerConfig(EngineElasticsearch)
	cfg.FailureRatio = c.BreakerFailureRatio
	cfg.MinRequests = c.BreakerMinRequests
	cfg.Timeout = c.BreakerOpenTimeout
	return cfg
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:                 c.RedisHost,
		Port:                 c.RedisPort,
		Password:             c.RedisPassword,
		DB:                   c.RedisDB,
		SlowCommandThreshold: c.RedisSlowThreshold,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	cfg := tracing.DefaultConfig(c.ServiceName)
	cfg.Environment = c.Environment
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	cfg.Enabled = c.OTELEnabled
	return cfg
}

// CORS returns the cross-origin settings for the HTTP API.
func (c *Config) CORS() middleware.CORSConfig {
	cfg := middleware.DefaultCORSConfig()
	cfg.AllowedOrigins = c.CORSAllowedOrigins
	cfg.Environment = c.Environment
	return cfg
}
