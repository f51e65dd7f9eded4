package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all DiscourseLens metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Analysis Layer
	AnalysisRunsTotal    CounterVec
	AnalysisDuration     HistogramVec
	AnalysisTopicsCount  HistogramVec
	AnalysisParagraphs   HistogramVec
	ClassifierRecomputes CounterVec
	StageDuration        HistogramVec
	ClusterRegistrySize  GaugeVec
	ClusterReloadsTotal  CounterVec

	// Infrastructure Layer
	CacheHitsTotal       CounterVec
	CacheMissesTotal     CounterVec
	EventsPublishedTotal CounterVec
	ObjectFetchDuration  HistogramVec

	// System Health
	ErrorsTotal CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalysisDurationBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultCountBuckets            = []float64{0, 1, 2, 5, 10, 20, 50, 100, 250, 500}
)

// NewAppMetrics registers all metrics and returns the AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	// Analysis
	m.AnalysisRunsTotal = collector.RegisterCounter("analysis_runs_total", "Coherence analysis runs", "scope", "status")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Coherence analysis duration", DefaultAnalysisDurationBuckets, "scope")
	m.AnalysisTopicsCount = collector.RegisterHistogram("analysis_topics", "Qualified topics per analysis", DefaultCountBuckets, "scope")
	m.AnalysisParagraphs = collector.RegisterHistogram("analysis_paragraphs", "Paragraphs per analysed document", DefaultCountBuckets)
	m.ClassifierRecomputes = collector.RegisterCounter("classifier_recomputes_total", "Given/new classifier recomputations", "reason")
	m.StageDuration = collector.RegisterHistogram("analysis_stage_duration_seconds", "Duration of one analysis stage", DefaultAnalysisDurationBuckets, "stage")
	m.ClusterRegistrySize = collector.RegisterGauge("cluster_registry_size", "Entries in the topic cluster registry", "kind")
	m.ClusterReloadsTotal = collector.RegisterCounter("cluster_reloads_total", "Cluster file reloads", "status")

	// Infrastructure
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Events published to the message bus", "topic", "status")
	m.ObjectFetchDuration = collector.RegisterHistogram("object_fetch_duration_seconds", "Parsed document fetch duration", DefaultHTTPDurationBuckets, "source")

	// System Health
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordAnalysis(metrics *AppMetrics, scope string, success bool, duration time.Duration, topics, paragraphs int) {
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.AnalysisRunsTotal.WithLabelValues(scope, status).Inc()
	metrics.AnalysisDuration.WithLabelValues(scope).Observe(duration.Seconds())
	if success {
		metrics.AnalysisTopicsCount.WithLabelValues(scope).Observe(float64(topics))
		metrics.AnalysisParagraphs.WithLabelValues().Observe(float64(paragraphs))
	}
}

func RecordClassifierRecompute(metrics *AppMetrics, reason string) {
	metrics.ClassifierRecomputes.WithLabelValues(reason).Inc()
}

func RecordClusterRegistry(metrics *AppMetrics, synonyms, clusters, topics int) {
	metrics.ClusterRegistrySize.WithLabelValues("synonym").Set(float64(synonyms))
	metrics.ClusterRegistrySize.WithLabelValues("cluster").Set(float64(clusters))
	metrics.ClusterRegistrySize.WithLabelValues("topic").Set(float64(topics))
}

func RecordClusterReload(metrics *AppMetrics, err error) {
	if err != nil {
		metrics.ClusterReloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	metrics.ClusterReloadsTotal.WithLabelValues("success").Inc()
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordEventPublished(metrics *AppMetrics, topic string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.EventsPublishedTotal.WithLabelValues(topic, status).Inc()
}

func RecordError(metrics *AppMetrics, component, errorType string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
