// Package config defines all configuration structures for DiscourseLens.
// No I/O or parsing logic lives in this file, only plain data types and
// validation.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimitRPS is the per-client request rate on /api/v1; 0 disables
	// limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// AnalysisConfig holds the coherence engine options that the settings
// collaborator would otherwise supply per document.
type AnalysisConfig struct {
	PronounVisible       bool   `mapstructure:"pronoun_visible"`
	PostVerbSubjectsLeft bool   `mapstructure:"post_verb_subjects_left"`
	MinTopics            int    `mapstructure:"min_topics"`
	WindowOffset         int    `mapstructure:"window_offset"`
	WindowMaxParagraphs  int    `mapstructure:"window_max_paragraphs"` // 0 = unbounded
	SortByCount          bool   `mapstructure:"sort_by_count"`
	Language             string `mapstructure:"language"`
	ImagePattern         string `mapstructure:"image_pattern"`
}

// ClustersConfig points at the YAML cluster definition file.
type ClustersConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// RedisConfig holds Redis connection parameters for the report cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer and worker parameters.  Topic
// receives completion events; RequestTopic feeds the analysis worker.
type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	TimeoutMS         int      `mapstructure:"timeout_ms"`
	ProducerRetries   int      `mapstructure:"producer_retries"`
	BatchSize         int      `mapstructure:"batch_size"`
	RequestTopic      string   `mapstructure:"request_topic"`
	GroupID           string   `mapstructure:"group_id"`
	DeadLetterTopic   string   `mapstructure:"dead_letter_topic"`
	ConsumerRetries   int      `mapstructure:"consumer_retries"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Clusters ClustersConfig `mapstructure:"clusters"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first error encountered.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must be ≥ 0, got %v", c.Server.RateLimitRPS)
	}

	// Analysis
	if c.Analysis.MinTopics < 1 {
		return fmt.Errorf("config: analysis.min_topics must be ≥ 1, got %d", c.Analysis.MinTopics)
	}
	if c.Analysis.WindowOffset < 0 {
		return fmt.Errorf("config: analysis.window_offset must be ≥ 0, got %d", c.Analysis.WindowOffset)
	}
	if c.Analysis.WindowMaxParagraphs < 0 {
		return fmt.Errorf("config: analysis.window_max_paragraphs must be ≥ 0, got %d", c.Analysis.WindowMaxParagraphs)
	}
	if _, err := regexp.Compile(c.Analysis.ImagePattern); err != nil {
		return fmt.Errorf("config: analysis.image_pattern is not a valid expression: %w", err)
	}

	// Clusters
	if c.Clusters.Watch && c.Clusters.File == "" {
		return fmt.Errorf("config: clusters.watch requires clusters.file")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required")
		}
	}
	if c.Kafka.ConsumerRetries < 0 {
		return fmt.Errorf("config: kafka.consumer_retries must be >= 0, got %d", c.Kafka.ConsumerRetries)
	}
	if c.Kafka.RequestTopic != "" && c.Kafka.RequestTopic == c.Kafka.Topic {
		return fmt.Errorf("config: kafka.request_topic must differ from kafka.topic")
	}

	// MinIO
	if c.MinIO.Enabled && c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
