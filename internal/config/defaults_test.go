package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultMinTopics, cfg.Analysis.MinTopics)
	assert.Equal(t, DefaultImagePattern, cfg.Analysis.ImagePattern)
	assert.Equal(t, 0, cfg.Analysis.WindowMaxParagraphs)
	assert.False(t, cfg.Analysis.PronounVisible)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Equal(t, DefaultKafkaRequestTopic, cfg.Kafka.RequestTopic)
	assert.Equal(t, DefaultKafkaGroupID, cfg.Kafka.GroupID)
	assert.Equal(t, DefaultKafkaConsumerRetries, cfg.Kafka.ConsumerRetries)
	assert.Equal(t, 1, cfg.Kafka.Partitions)
	assert.Equal(t, 0, cfg.Server.RateLimitBurst, "no burst without a rate")
	assert.Equal(t, DefaultRedisTTL, cfg.Redis.DefaultTTL)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Analysis.MinTopics = 3
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Analysis.MinTopics)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestApplyDefaults_RateLimitBurst(t *testing.T) {
	cfg := &Config{}
	cfg.Server.RateLimitRPS = 5
	ApplyDefaults(cfg)
	assert.Equal(t, 10, cfg.Server.RateLimitBurst)

	cfg = &Config{}
	cfg.Server.RateLimitRPS = 5
	cfg.Server.RateLimitBurst = 1
	ApplyDefaults(cfg)
	assert.Equal(t, 1, cfg.Server.RateLimitBurst)
}
