package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordMessageClassified(outcome string)
	RecordEventExtracted(kind string)
	RecordPipelineRun(source string, duration time.Duration)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordMessageClassified(outcome string)                  {}
func (m *NoOpMetrics) RecordEventExtracted(kind string)                        {}
func (m *NoOpMetrics) RecordPipelineRun(source string, duration time.Duration) {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                    {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                  {}
func (m *NoOpMetrics) Handler() http.Handler                                   { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init switches the package to Prometheus-backed metrics when enabled.
func Init(enabled bool) {
	if !enabled {
		globalMetrics = &NoOpMetrics{}
		return
	}
	globalMetrics = NewPrometheus()
}

// Set replaces the global metrics implementation.
func Set(m Metrics) {
	if m == nil {
		m = &NoOpMetrics{}
	}
	globalMetrics = m
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordMessageClassified counts one classified message by outcome
func RecordMessageClassified(outcome string) {
	globalMetrics.RecordMessageClassified(outcome)
}

// RecordEventExtracted counts one extracted event by kind
func RecordEventExtracted(kind string) {
	globalMetrics.RecordEventExtracted(kind)
}

// RecordPipelineRun records pipeline run metrics
func RecordPipelineRun(source string, duration time.Duration) {
	globalMetrics.RecordPipelineRun(source, duration)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
