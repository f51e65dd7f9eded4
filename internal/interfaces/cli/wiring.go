package cli

import (
	"context"
	"time"

	"github.com/turtacn/DiscourseLens/internal/application/analysis"
	"github.com/turtacn/DiscourseLens/internal/config"
	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/database/redis"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/storage/minio"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/handlers"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

const eventSource = "dlens"

// runtime holds the analysis service and everything it was wired to.
type runtime struct {
	collector prometheus.MetricsCollector
	metrics   *prometheus.AppMetrics
	service   analysis.Service
	checkers  []handlers.HealthChecker
	closers   []func() error
	logger    logging.Logger
}

// newRuntime wires the service from cfg.  clustersPath overrides
// cfg.Clusters.File when non-empty.  Backends that are enabled but
// unreachable fail the whole wiring.
func newRuntime(ctx context.Context, cfg *config.Config, clustersPath string, logger logging.Logger) (_ *runtime, err error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rt := &runtime{logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		rt.collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableGoMetrics:      true,
			EnableProcessMetrics: true,
		}, logger)
		if err != nil {
			return nil, err
		}
	} else {
		rt.collector = prometheus.NewNoopCollector()
	}
	rt.metrics = prometheus.NewAppMetrics(rt.collector)

	registry := cluster.NewRegistry()
	if clustersPath == "" {
		clustersPath = cfg.Clusters.File
	}
	if clustersPath != "" {
		if err = cluster.LoadInto(registry, clustersPath); err != nil {
			return nil, err
		}
		logger.Debug("cluster file loaded", logging.String("path", clustersPath))
	}

	deps := analysis.Deps{
		Registry: registry,
		Metrics:  rt.metrics,
		Logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, cerr := redis.NewClient(&redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if cerr != nil {
			return nil, cerr
		}
		rt.closers = append(rt.closers, client.Close)
		rt.checkers = append(rt.checkers, client)
		deps.Cache = redis.NewRedisCache(client, logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
	}

	if cfg.MinIO.Enabled {
		client, cerr := minio.NewClient(&minio.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKey,
			SecretAccessKey: cfg.MinIO.SecretKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Bucket:          cfg.MinIO.Bucket,
		}, logger)
		if cerr != nil {
			return nil, cerr
		}
		rt.closers = append(rt.closers, client.Close)
		rt.checkers = append(rt.checkers, client)
		store := minio.NewDocumentStore(client, logger)
		deps.Source = store
		deps.Archive = store
	}

	if cfg.Kafka.Enabled {
		producer, perr := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.ProducerRetries,
			BatchSize:    cfg.Kafka.BatchSize,
			WriteTimeout: time.Duration(cfg.Kafka.TimeoutMS) * time.Millisecond,
			AsyncErrorHandler: func(err error, _ *common.ProducerMessage) {
				logger.Warn("async event publish failed", logging.Err(err))
			},
		}, logger)
		if perr != nil {
			return nil, perr
		}
		publisher := kafka.NewEventPublisher(producer, cfg.Kafka.Topic, eventSource, logger)
		rt.closers = append(rt.closers, publisher.Close)
		deps.Publisher = publisher
	}

	rt.service = analysis.NewService(analysis.Config{
		Language: cfg.Analysis.Language,
		CacheTTL: cfg.Redis.DefaultTTL,
	}, deps)
	// The registry generation restarts with the process, so reports cached
	// by an earlier run could carry a matching key.
	rt.service.NotifyRegistryChanged(ctx)
	return rt, nil
}

// watchClusters reloads the cluster file on change when clusters.watch is
// set.  The returned func stops the watcher.
func (rt *runtime) watchClusters(ctx context.Context, cfg *config.Config, override string) (func(), error) {
	path := override
	if path == "" {
		path = cfg.Clusters.File
	}
	if !cfg.Clusters.Watch || path == "" {
		return func() {}, nil
	}
	w, err := cluster.NewWatcher(path, rt.service.Registry(), rt.logger, cluster.WatcherOptions{
		OnReload: func(err error) {
			prometheus.RecordClusterReload(rt.metrics, err)
			if err == nil {
				rt.service.NotifyRegistryChanged(ctx)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	rt.logger.Info("watching cluster file", logging.String("path", path))
	return w.Stop, nil
}

// Close releases backends in reverse wiring order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("backend close failed", logging.Err(err))
		}
	}
	rt.closers = nil
}

// analysisOptions maps the analysis config section onto engine options.
func analysisOptions(c config.AnalysisConfig) coherence.Options {
	return coherence.Options{
		PronounVisible:       c.PronounVisible,
		PostVerbSubjectsLeft: c.PostVerbSubjectsLeft,
		MinTopics:            c.MinTopics,
		SortByCount:          c.SortByCount,
		ImagePattern:         c.ImagePattern,
		Window: document.Window{
			Offset: c.WindowOffset,
			Max:    c.WindowMaxParagraphs,
		},
	}
}
