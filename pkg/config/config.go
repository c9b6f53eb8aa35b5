// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Model    ModelConfig    `yaml:"model"`
	Docstore DocstoreConfig `yaml:"docstore"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	HealthTimeout   time.Duration `yaml:"healthTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest  string `yaml:"documentIngest"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls where columns live, which indexing strategy grows
// them and how the ingest pipeline batches commits.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	Strategy       string        `yaml:"strategy"`
	BatchSize      int           `yaml:"batchSize"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queueSize"`
	CommitInterval time.Duration `yaml:"commitInterval"`
}

// SearchConfig controls paging limits and the fields bare query words are
// matched against.
type SearchConfig struct {
	DefaultTake   int           `yaml:"defaultTake"`
	MaxTake       int           `yaml:"maxTake"`
	DefaultFields []string      `yaml:"defaultFields"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ModelConfig tunes the embedding model. IdenticalAngle must be greater
// than FoldAngle.
type ModelConfig struct {
	IdenticalAngle float64  `yaml:"identicalAngle"`
	FoldAngle      float64  `yaml:"foldAngle"`
	Dimensions     int      `yaml:"dimensions"`
	// StopWords replaces the built-in English list when set. An empty list
	// keeps every word.
	StopWords      []string `yaml:"stopWords"`
	MinTokenLength int      `yaml:"minTokenLength"`
}

// DocstoreConfig selects the document store: memory, badger or postgres.
type DocstoreConfig struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Model.FoldAngle >= c.Model.IdenticalAngle {
		return fmt.Errorf("model.foldAngle (%.3f) must be below model.identicalAngle (%.3f)",
			c.Model.FoldAngle, c.Model.IdenticalAngle)
	}
	if c.Model.IdenticalAngle > 1 {
		return fmt.Errorf("model.identicalAngle (%.3f) must not exceed 1", c.Model.IdenticalAngle)
	}
	if c.Model.MinTokenLength < 0 {
		return fmt.Errorf("model.minTokenLength (%d) must not be negative", c.Model.MinTokenLength)
	}
	if c.Search.DefaultTake <= 0 || c.Search.MaxTake < c.Search.DefaultTake {
		return fmt.Errorf("search.defaultTake (%d) must be positive and at most search.maxTake (%d)",
			c.Search.DefaultTake, c.Search.MaxTake)
	}
	switch c.Docstore.Driver {
	case "memory", "badger", "postgres":
	default:
		return fmt.Errorf("unknown docstore.driver %q", c.Docstore.Driver)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			HealthTimeout:   5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "vectorsearch",
			User:            "vectorsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "vectorsearch-indexer",
			Topics: KafkaTopics{
				DocumentIngest:  "document-ingest",
				CacheInvalidate: "cache-invalidate",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:        "./data/index",
			Strategy:       "log",
			BatchSize:      1000,
			Workers:        4,
			QueueSize:      256,
			CommitInterval: 10 * time.Second,
		},
		Search: SearchConfig{
			DefaultTake:   10,
			MaxTake:       100,
			DefaultFields: []string{"title", "description"},
			Timeout:       5 * time.Second,
		},
		Model: ModelConfig{
			IdenticalAngle: 0.9,
			FoldAngle:      0.55,
			Dimensions:     1 << 16,
		},
		Docstore: DocstoreConfig{
			Driver: "badger",
			Dir:    "./data/docs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads VS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("VS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("VS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("VS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("VS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("VS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("VS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("VS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VS_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("VS_INDEXER_STRATEGY"); v != "" {
		cfg.Indexer.Strategy = v
	}
	if v := os.Getenv("VS_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("VS_SEARCH_DEFAULT_FIELDS"); v != "" {
		cfg.Search.DefaultFields = strings.Split(v, ",")
	}
	if v := os.Getenv("VS_MODEL_IDENTICAL_ANGLE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.IdenticalAngle = f
		}
	}
	if v := os.Getenv("VS_MODEL_FOLD_ANGLE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.FoldAngle = f
		}
	}
	if v := os.Getenv("VS_DOCSTORE_DRIVER"); v != "" {
		cfg.Docstore.Driver = v
	}
	if v := os.Getenv("VS_DOCSTORE_DIR"); v != "" {
		cfg.Docstore.Dir = v
	}
	if v := os.Getenv("VS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
