package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "DLENS"

// envBoundKeys lists the keys that must resolve from DLENS_* variables even
// when no config file declares them.  viper.AutomaticEnv only consults the
// environment for keys it already knows about during Unmarshal.
var envBoundKeys = []string{
	"server.port", "server.mode", "server.rate_limit_rps", "server.rate_limit_burst",
	"analysis.pronoun_visible", "analysis.post_verb_subjects_left", "analysis.min_topics",
	"analysis.window_offset", "analysis.window_max_paragraphs", "analysis.sort_by_count",
	"analysis.language", "analysis.image_pattern",
	"clusters.file", "clusters.watch",
	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.key_prefix",
	"kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.request_topic", "kafka.group_id",
	"kafka.dead_letter_topic", "kafka.consumer_retries",
	"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.use_ssl",
	"metrics.enabled", "metrics.namespace",
	"log.level", "log.format", "log.output",
}

// newViper builds a Viper instance with YAML file type, the DLENS_ env
// prefix and a "." → "_" key replacer, so "redis.addr" resolves to
// DLENS_REDIS_ADDR.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envBoundKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges DLENS_* environment
// overrides, applies defaults for unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from DLENS_* environment variables.
//
//	DLENS_<SECTION>_<FIELD>   e.g.  DLENS_ANALYSIS_MIN_TOPICS, DLENS_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file changes.  Invalid edits are reported to onError (which
// may be nil) and onChange is not called, so the running process keeps its
// last good configuration.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load that panics on any error.  main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
