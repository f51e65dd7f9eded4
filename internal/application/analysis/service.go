// Package analysis is the application service behind the CLI and the HTTP
// API.  It loads parsed documents, runs the coherence engine against the
// shared cluster registry and fans the report out to the cache, the report
// archive and the event bus.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/database/redis"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DiscourseLens/pkg/errors"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

// WarnPipelineUnavailable is the report warning for documents the
// linguistic pipeline never tokenized.
const WarnPipelineUnavailable = "linguistic pipeline unavailable: no sentence carries tokens"

const reportCachePrefix = "report:"

// DocumentSource loads parsed documents by reference.
type DocumentSource interface {
	Load(ctx context.Context, ref string) (*document.ParsedDocument, error)
}

// ReportArchive stores finished reports.
type ReportArchive interface {
	SaveReport(ctx context.Context, runID string, v interface{}) (string, error)
}

// EventPublisher announces finished analyses.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, payload kafka.AnalysisCompletedPayload) error
}

// Service defines the analysis use cases.
type Service interface {
	Analyze(ctx context.Context, req *Request) (*Result, error)
	ReplaceClusters(ctx context.Context, clusters []cluster.Cluster) error
	SetTopics(ctx context.Context, topics []string) error
	// NotifyRegistryChanged is called after the registry was edited
	// directly, e.g. by a cluster file reload.
	NotifyRegistryChanged(ctx context.Context)
	Registry() *cluster.Registry
}

// Request is one analysis.  Object is used only when Document is nil.
type Request struct {
	Document       *document.ParsedDocument
	Object         string
	Options        coherence.Options
	LocalPositions []int
}

// Result wraps the report with run metadata.
type Result struct {
	Report     *coherence.Report `json:"report"`
	Cached     bool              `json:"cached"`
	Duration   time.Duration     `json:"duration"`
	ArchiveKey string            `json:"archive_key,omitempty"`
}

// Config holds service settings.
type Config struct {
	// Language is used for documents that do not name one.
	Language string
	// CacheTTL bounds cached reports; zero uses the cache default.
	CacheTTL time.Duration
}

// Deps are the collaborators.  Everything but Registry is optional.
type Deps struct {
	Registry  *cluster.Registry
	Source    DocumentSource
	Cache     redis.Cache
	Archive   ReportArchive
	Publisher EventPublisher
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
}

type serviceImpl struct {
	cfg       Config
	registry  *cluster.Registry
	source    DocumentSource
	cache     redis.Cache
	archive   ReportArchive
	publisher EventPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// NewService creates the analysis service.
func NewService(cfg Config, deps Deps) Service {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if deps.Registry == nil {
		deps.Registry = cluster.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewAppMetrics(prometheus.NewNoopCollector())
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		cfg:       cfg,
		registry:  deps.Registry,
		source:    deps.Source,
		cache:     deps.Cache,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("analysis"),
	}
}

func (s *serviceImpl) Registry() *cluster.Registry { return s.registry }

func (s *serviceImpl) Analyze(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.With(logging.String("run_id", runID))
	if id := common.RequestIDFrom(ctx); id != "" {
		log = log.With(logging.String("request_id", id))
	}

	pd, err := s.load(ctx, req)
	if err != nil {
		prometheus.RecordError(s.metrics, "analysis", string(errors.GetCode(err)))
		return nil, err
	}
	if pd.Language == "" {
		pd.Language = s.cfg.Language
	}

	if !pipelineAvailable(pd) {
		log.Warn("pipeline unavailable, returning empty report", logging.String("document_id", pd.ID))
		prometheus.RecordError(s.metrics, "analysis", string(errors.ErrCodePipelineUnavailable))
		r := coherence.EmptyReport(pd.ID, WarnPipelineUnavailable)
		r.RunID = runID
		r.Language = pd.Language
		return &Result{Report: r, Duration: time.Since(start)}, nil
	}

	report, cached, err := s.report(ctx, pd, req)
	duration := time.Since(start)
	if err != nil {
		prometheus.RecordAnalysis(s.metrics, coherence.ScopeGlobal.String(), false, duration, 0, 0)
		prometheus.RecordError(s.metrics, "analysis", string(errors.GetCode(err)))
		log.Error("analysis failed", logging.String("document_id", pd.ID), logging.Err(err))
		return nil, err
	}
	report.RunID = runID
	prometheus.RecordAnalysis(s.metrics, coherence.ScopeGlobal.String(), true, duration, report.TopicCount(), len(report.Paragraphs))
	for _, name := range report.UndefinedClusters {
		log.Warn("cluster declared without surface forms", logging.String("cluster", name))
	}

	res := &Result{Report: report, Cached: cached, Duration: duration}
	if s.archive != nil {
		key, err := s.archive.SaveReport(ctx, runID, report)
		if err != nil {
			prometheus.RecordError(s.metrics, "archive", string(errors.GetCode(err)))
			log.Warn("report archive failed", logging.Err(err))
		}
		res.ArchiveKey = key
	}
	s.publish(ctx, res)

	log.Info("analysis completed",
		logging.String("document_id", report.DocumentID),
		logging.Int("topics", report.TopicCount()),
		logging.Int("paragraphs", len(report.Paragraphs)),
		logging.Bool("cached", cached),
		logging.Duration("duration", duration))
	return res, nil
}

func (s *serviceImpl) load(ctx context.Context, req *Request) (*document.ParsedDocument, error) {
	if req == nil {
		return nil, errors.InvalidParam("request is nil")
	}
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}
	if req.Document != nil {
		if err := req.Document.Validate(); err != nil {
			return nil, err
		}
		return req.Document, nil
	}
	if req.Object == "" {
		return nil, errors.InvalidParam("either a document or an object reference is required")
	}
	if s.source == nil {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "object storage is not configured")
	}

	timer := prometheus.NewTimer(s.metrics.ObjectFetchDuration.WithLabelValues("minio"))
	pd, err := s.source.Load(ctx, req.Object)
	timer.ObserveDuration()
	return pd, err
}

// report returns a cached report when one exists for the same document
// content, registry generation and options.
func (s *serviceImpl) report(ctx context.Context, pd *document.ParsedDocument, req *Request) (*coherence.Report, bool, error) {
	snap := s.registry.Snapshot()
	if s.cache == nil {
		r, err := s.run(ctx, snap, pd, req)
		return r, false, err
	}

	key, err := cacheKey(pd, snap.Generation(), req)
	if err != nil {
		return nil, false, err
	}
	computed := false
	var report coherence.Report
	err = s.cache.GetOrSet(ctx, key, &report, s.cfg.CacheTTL, func(ctx context.Context) (interface{}, error) {
		computed = true
		return s.run(ctx, snap, pd, req)
	})
	if err != nil {
		return nil, false, err
	}
	prometheus.RecordCacheAccess(s.metrics, "report", !computed)
	return &report, !computed, nil
}

// run analyzes pd against snap only; registry edits made meanwhile apply to
// the next run.
func (s *serviceImpl) run(ctx context.Context, snap *cluster.Snapshot, pd *document.ParsedDocument, req *Request) (*coherence.Report, error) {
	norm, err := coherence.NewNormalizer(snap, req.Options)
	if err != nil {
		return nil, err
	}
	doc, err := document.Build(pd, norm)
	if err != nil {
		return nil, err
	}
	a, err := coherence.NewAnalyzer(doc, cluster.Pin(snap), req.Options, s.logger)
	if err != nil {
		return nil, err
	}
	timer := prometheus.NewTimer(s.metrics.StageDuration.WithLabelValues("classify"))
	reason, err := a.Refresh(ctx)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}
	if reason != coherence.ReasonNone {
		prometheus.RecordClassifierRecompute(s.metrics, reason)
	}

	timer = prometheus.NewTimer(s.metrics.StageDuration.WithLabelValues("report"))
	defer timer.ObserveDuration()
	return a.Report(ctx, req.LocalPositions)
}

func (s *serviceImpl) publish(ctx context.Context, res *Result) {
	if s.publisher == nil {
		return
	}
	r := res.Report
	topics := make([]string, len(r.GlobalTopics))
	for i, t := range r.GlobalTopics {
		topics[i] = t.Lemma
	}
	err := s.publisher.PublishAnalysisCompleted(ctx, kafka.AnalysisCompletedPayload{
		RunID:      r.RunID,
		DocumentID: r.DocumentID,
		Topics:     topics,
		Paragraphs: len(r.Paragraphs),
		DurationMS: res.Duration.Milliseconds(),
		Cached:     res.Cached,
	})
	prometheus.RecordEventPublished(s.metrics, kafka.TopicAnalysisCompleted, err)
	if err != nil {
		s.logger.Warn("analysis event not published", logging.String("run_id", r.RunID), logging.Err(err))
	}
}

func (s *serviceImpl) ReplaceClusters(ctx context.Context, clusters []cluster.Cluster) error {
	if err := s.registry.SetSynonyms(clusters); err != nil {
		return err
	}
	s.registryChanged(ctx)
	return nil
}

func (s *serviceImpl) SetTopics(ctx context.Context, topics []string) error {
	s.registry.SetTopics(topics)
	s.registryChanged(ctx)
	return nil
}

func (s *serviceImpl) NotifyRegistryChanged(ctx context.Context) {
	s.registryChanged(ctx)
}

// registryChanged records the new registry size and drops reports computed
// against older generations.
func (s *serviceImpl) registryChanged(ctx context.Context) {
	snap := s.registry.Snapshot()
	synonyms, clusters, topics := snap.Counts()
	prometheus.RecordClusterRegistry(s.metrics, synonyms, clusters, topics)
	s.logger.Info("cluster registry updated",
		logging.Uint64("generation", snap.Generation()),
		logging.Int("clusters", clusters),
		logging.Int("topics", topics))
	if undefined := snap.UndefinedClusters(); len(undefined) > 0 {
		s.logger.Warn("clusters declared without surface forms", logging.Strings("clusters", undefined))
	}

	if s.cache == nil {
		return
	}
	n, err := s.cache.DeleteByPrefix(ctx, reportCachePrefix)
	if err != nil {
		s.logger.Warn("stale report eviction failed", logging.Err(err))
		return
	}
	s.logger.Debug("stale reports evicted", logging.Int64("count", n))
}

// pipelineAvailable reports whether any non-image sentence carries tokens.
// Documents without sentences count as available.
func pipelineAvailable(pd *document.ParsedDocument) bool {
	sentences := 0
	for _, e := range pd.Elements {
		if e.Type == document.ElementImage {
			continue
		}
		for _, s := range e.Sentences {
			if len(s.Tokens) > 0 {
				return true
			}
			sentences++
		}
	}
	return sentences == 0
}

func cacheKey(pd *document.ParsedDocument, generation uint64, req *Request) (string, error) {
	body, err := json.Marshal(pd)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to hash document")
	}
	positions := make([]string, len(req.LocalPositions))
	for i, p := range req.LocalPositions {
		positions[i] = strconv.Itoa(p)
	}

	h := sha256.New()
	h.Write(body)
	h.Write([]byte{0})
	h.Write([]byte(req.Options.Key()))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(positions, ",")))
	return fmt.Sprintf("%s%s:%d", reportCachePrefix, hex.EncodeToString(h.Sum(nil))[:32], generation), nil
}
