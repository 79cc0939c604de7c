// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_rehab"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysesActive   prometheus.Gauge
	AnalysisDuration prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	OverallScore     prometheus.Histogram
	SimilarityScore  prometheus.Histogram
	IssuesTotal      *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived prometheus.Counter
	DecodePaths        *prometheus.CounterVec
	FeatureFallbacks   *prometheus.CounterVec

	// Recognition metrics
	RecognitionResults   *prometheus.CounterVec
	RecognitionFallbacks *prometheus.CounterVec
	STTErrors            *prometheus.CounterVec
	STTLatency           *prometheus.HistogramVec

	// Engine registry metrics
	EnginesLoaded      prometheus.Gauge
	EngineLoadAttempts *prometheus.CounterVec
	LanguageSwitches   *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Transport metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
	RPCTotal     *prometheus.CounterVec
	RPCLatency   *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics with the default
// registerer. Call it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		AnalysesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of pronunciation analyses",
		}, []string{"language", "engine", "outcome"}),
		AnalysesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_active",
			Help:      "Number of analyses currently running",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage analysis latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
		OverallScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overall_score",
			Help:      "Distribution of overall pronunciation scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		SimilarityScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similarity_score",
			Help:      "Distribution of text similarity scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		IssuesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Total number of diagnosed issues by type",
		}, []string{"type", "severity"}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		DecodePaths: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_decode_total",
			Help:      "Audio normalizations by decode path",
		}, []string{"path"}),
		FeatureFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_fallbacks_total",
			Help:      "Acoustic features that fell back to defaults",
		}, []string{"feature"}),

		RecognitionResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_results_total",
			Help:      "Recognition results by engine and status",
		}, []string{"engine", "status"}),
		RecognitionFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_fallbacks_total",
			Help:      "Recognitions served by the simulated fallback",
		}, []string{"language"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text processing latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider"}),

		EnginesLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engines_loaded",
			Help:      "Number of loaded recognition engines",
		}),
		EngineLoadAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_load_attempts_total",
			Help:      "Engine load attempts by language and result",
		}, []string{"language", "result"}),
		LanguageSwitches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "language_switches_total",
			Help:      "Active language switch requests by result",
		}, []string{"result"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "gRPC calls by method and status code",
		}, []string{"method", "code"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// RecordAnalysisStart records an analysis starting.
func (m *Metrics) RecordAnalysisStart(audioBytes int) {
	m.AnalysesActive.Inc()
	m.AudioBytesReceived.Add(float64(audioBytes))
}

// RecordAnalysisEnd records an analysis finishing with its scores.
func (m *Metrics) RecordAnalysisEnd(language, engine, outcome string, overall, similarity int, durationSeconds float64) {
	m.AnalysesActive.Dec()
	m.AnalysesTotal.WithLabelValues(language, engine, outcome).Inc()
	m.AnalysisDuration.Observe(durationSeconds)
	m.OverallScore.Observe(float64(overall))
	m.SimilarityScore.Observe(float64(similarity))
}

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordIssue records a diagnosed issue.
func (m *Metrics) RecordIssue(issueType, severity string) {
	m.IssuesTotal.WithLabelValues(issueType, severity).Inc()
}

// RecordDecodePath records which decoder normalized an upload.
func (m *Metrics) RecordDecodePath(path string) {
	m.DecodePaths.WithLabelValues(path).Inc()
}

// RecordFeatureFallback records a feature that used its default.
func (m *Metrics) RecordFeatureFallback(feature string) {
	m.FeatureFallbacks.WithLabelValues(feature).Inc()
}

// RecordRecognition records a recognition outcome.
func (m *Metrics) RecordRecognition(engine, status string, latencySeconds float64) {
	m.RecognitionResults.WithLabelValues(engine, status).Inc()
	m.STTLatency.WithLabelValues(engine).Observe(latencySeconds)
}

// RecordFallback records a recognition served by the simulator.
func (m *Metrics) RecordFallback(language string) {
	m.RecognitionFallbacks.WithLabelValues(language).Inc()
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordEngineLoad records an engine load attempt.
func (m *Metrics) RecordEngineLoad(language string, ok bool) {
	result := "loaded"
	if !ok {
		result = "failed"
	}
	m.EngineLoadAttempts.WithLabelValues(language, result).Inc()
}

// SetEnginesLoaded sets the number of loaded engines.
func (m *Metrics) SetEnginesLoaded(n int) {
	m.EnginesLoaded.Set(float64(n))
}

// RecordLanguageSwitch records an active language switch request.
func (m *Metrics) RecordLanguageSwitch(ok bool) {
	result := "switched"
	if !ok {
		result = "rejected"
	}
	m.LanguageSwitches.WithLabelValues(result).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, httpCode(code)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordRPC records a served gRPC call.
func (m *Metrics) RecordRPC(method, code string, latencySeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(latencySeconds)
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
