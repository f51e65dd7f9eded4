package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/DiscourseLens/internal/application/analysis"
	"github.com/turtacn/DiscourseLens/internal/config"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

type workerOptions struct {
	clusters     string
	ensureTopics bool
}

func newWorkerCmd() *cobra.Command {
	o := &workerOptions{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve analysis requests from Kafka",
		Long: "Worker consumes analysis requests from kafka.request_topic, loads each\n" +
			"document from MinIO, archives the report and publishes a completion\n" +
			"event to kafka.topic.  Requests that keep failing go to\n" +
			"kafka.dead_letter_topic.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.clusters, "clusters", "", "cluster definition file (overrides clusters.file)")
	f.BoolVar(&o.ensureTopics, "ensure-topics", false, "create the request, completion and dead-letter topics before consuming")
	return cmd
}

func runWorker(cmd *cobra.Command, o *workerOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	log := cliCtx.Logger
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "worker requires kafka.enabled")
	}
	if !cfg.MinIO.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "worker requires minio.enabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.ensureTopics {
		if err := ensureTopics(ctx, cfg.Kafka, log); err != nil {
			return err
		}
	}

	rt, err := newRuntime(ctx, cfg, o.clusters, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	stopWatch, err := rt.watchClusters(ctx, cfg, o.clusters)
	if err != nil {
		return err
	}
	defer stopWatch()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{cfg.Kafka.RequestTopic},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Kafka.ConsumerRetries,
			RetryBackoff:    time.Second,
			MaxRetryBackoff: 30 * time.Second,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
			Retryable:       analysis.Retryable,
		},
	}, log)
	if err != nil {
		return err
	}
	consumer.Subscribe(cfg.Kafka.RequestTopic, analysis.NewRequestHandler(rt.service, analysisOptions(cfg.Analysis), log))
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	log.Info("worker started",
		logging.String("group", cfg.Kafka.GroupID),
		logging.String("topic", cfg.Kafka.RequestTopic))
	<-ctx.Done()

	err = consumer.Close()
	log.Info("worker stopped",
		logging.Int64("processed", consumer.Processed()),
		logging.Int64("failed", consumer.Failed()),
		logging.Int64("dead_lettered", consumer.DeadLettered()))
	return err
}

func ensureTopics(ctx context.Context, kc config.KafkaConfig, log logging.Logger) error {
	tm, err := kafka.NewTopicManager(kc.Brokers, log)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(kc.RequestTopic, kc.Topic, kc.DeadLetterTopic, kc.Partitions, kc.ReplicationFactor))
}

// requestSubmitter publishes analysis requests.
type requestSubmitter interface {
	PublishAnalysisRequested(ctx context.Context, payload kafka.AnalysisRequestedPayload) (string, error)
	Close() error
}

// newRequestSubmitter is replaced in tests.
var newRequestSubmitter = func(kc config.KafkaConfig, log logging.Logger) (requestSubmitter, error) {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		MaxRetries:   kc.ProducerRetries,
		WriteTimeout: time.Duration(kc.TimeoutMS) * time.Millisecond,
	}, log)
	if err != nil {
		return nil, err
	}
	return kafka.NewEventPublisher(producer, kc.RequestTopic, eventSource+"-cli", log), nil
}

type submitOptions struct {
	local     string
	minTopics int
}

// submitResult is printed after a request was accepted by the broker.
type submitResult struct {
	RequestID string `json:"request_id"`
	Object    string `json:"object"`
	Topic     string `json:"topic"`
}

func (r submitResult) String() string {
	return fmt.Sprintf("Submitted %s for %s on %s\n", r.RequestID, r.Object, r.Topic)
}

func newSubmitCmd() *cobra.Command {
	o := &submitOptions{}

	cmd := &cobra.Command{
		Use:   "submit OBJECT",
		Short: "Queue a stored document for analysis by a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, o, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.local, "local", "", "comma-separated paragraph positions to report local topics for")
	f.IntVar(&o.minTopics, "min-topics", 0, "minimum left count for a topic (0 keeps the worker's setting)")
	return cmd
}

func runSubmit(cmd *cobra.Command, o *submitOptions, object string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	kc := cliCtx.Config.Kafka
	if !kc.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "submit requires kafka.enabled")
	}
	if o.minTopics < 0 {
		return errors.InvalidParam("min-topics must be >= 0")
	}
	local, err := parseLocal(o.local)
	if err != nil {
		return err
	}

	sub, err := newRequestSubmitter(kc, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()
	id, err := sub.PublishAnalysisRequested(ctx, kafka.AnalysisRequestedPayload{
		Object:    object,
		Local:     local,
		MinTopics: o.minTopics,
	})
	if err != nil {
		return err
	}
	return PrintResult(cmd, submitResult{RequestID: id, Object: object, Topic: kc.RequestTopic})
}
