package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultMinTopics    = 2
	DefaultLanguage     = "en"
	DefaultImagePattern = `\{\{image-\d+\}\}`

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "dlens:"
	DefaultRedisTTL       = 30 * time.Minute

	DefaultKafkaBroker          = "localhost:9092"
	DefaultKafkaTopic           = "dlens.analysis.completed"
	DefaultKafkaRequestTopic    = "dlens.analysis.requests"
	DefaultKafkaGroupID         = "dlens-worker"
	DefaultKafkaDeadLetterTopic = "dlens.dead_letter"
	DefaultKafkaConsumerRetries = 3

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "parsed-documents"

	DefaultMetricsNamespace = "dlens"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the default.  Fields
// already set by the caller are left unchanged so explicit configuration
// always wins.  Call it after unmarshalling and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 16 << 20
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(2 * cfg.Server.RateLimitRPS)
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	// Booleans and the window offset have meaningful zero values and are
	// left as-is.
	if cfg.Analysis.MinTopics == 0 {
		cfg.Analysis.MinTopics = DefaultMinTopics
	}
	if cfg.Analysis.Language == "" {
		cfg.Analysis.Language = DefaultLanguage
	}
	if cfg.Analysis.ImagePattern == "" {
		cfg.Analysis.ImagePattern = DefaultImagePattern
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDeadLetterTopic
	}
	if cfg.Kafka.ConsumerRetries == 0 {
		cfg.Kafka.ConsumerRetries = DefaultKafkaConsumerRetries
	}
	if cfg.Kafka.Partitions == 0 {
		cfg.Kafka.Partitions = 1
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// Default returns a Config populated only with defaults.  The CLI uses it
// when no config file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
