package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transit_disruptions"

// Prometheus implements Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	messages      *prometheus.CounterVec
	events        *prometheus.CounterVec
	pipelineRuns  *prometheus.HistogramVec
	dbConnections prometheus.Gauge
	dbQueries     *prometheus.CounterVec
}

// NewPrometheus creates and registers the collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "endpoint", "status"})
	p.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
	p.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_classified_total",
		Help:      "Messages classified by outcome",
	}, []string{"outcome"})
	p.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_extracted_total",
		Help:      "Disruption events extracted by kind",
	}, []string{"kind"})
	p.pipelineRuns = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_run_duration_seconds",
		Help:      "Time spent on one pipeline run per source",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
	p.dbConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_active",
		Help:      "Acquired database connections",
	})
	p.dbQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_queries_total",
		Help:      "Database queries by operation and status",
	}, []string{"operation", "status"})

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.httpRequests, p.httpDuration,
		p.messages, p.events, p.pipelineRuns,
		p.dbConnections, p.dbQueries,
	)
	return p
}

func (p *Prometheus) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, endpoint, statusLabel(statusCode)).Inc()
	p.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (p *Prometheus) RecordMessageClassified(outcome string) {
	p.messages.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) RecordEventExtracted(kind string) {
	p.events.WithLabelValues(kind).Inc()
}

func (p *Prometheus) RecordPipelineRun(source string, duration time.Duration) {
	p.pipelineRuns.WithLabelValues(source).Observe(duration.Seconds())
}

func (p *Prometheus) SetDBConnectionsActive(count float64) {
	p.dbConnections.Set(count)
}

func (p *Prometheus) RecordDBQuery(operation, status string) {
	p.dbQueries.WithLabelValues(operation, status).Inc()
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
