package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	middlewares "github.com/rajasatyajit/TransitDisruptions/internal/middleware"
	"github.com/rajasatyajit/TransitDisruptions/internal/pipeline"
	"github.com/rajasatyajit/TransitDisruptions/internal/store"
)

// Ingester runs one pass over every message source.
type Ingester interface {
	RunOnce(ctx context.Context) ([]pipeline.RunResult, error)
}

// Options carries the handler's settings and build information.
type Options struct {
	API             config.APIConfig
	AdminSecretHash []byte
	// Location is the agency zone used for weekly report boundaries.
	Location *time.Location

	Version   string
	BuildTime string
	GitCommit string
}

// Handler handles HTTP requests for the API
type Handler struct {
	store      store.Store
	classifier *classifier.Classifier
	ingester   Ingester
	validate   *validator.Validate
	opts       Options
	startTime  time.Time
	now        func() time.Time
}

// NewHandler creates a new API handler. ingester may be nil, in which case
// the ingest endpoint reports 503.
func NewHandler(st store.Store, cls *classifier.Classifier, ingester Ingester, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.API.DefaultLimit <= 0 {
		opts.API.DefaultLimit = 100
	}
	if opts.API.MaxLimit <= 0 {
		opts.API.MaxLimit = 1000
	}
	if opts.API.MaxBodyBytes <= 0 {
		opts.API.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		store:      st,
		classifier: cls,
		ingester:   ingester,
		validate:   validator.New(),
		opts:       opts,
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		r.Post("/classify", h.classifyHandler)

		r.Get("/events", h.getEventsHandler)
		r.Get("/events/{id}", h.getEventHandler)
		r.Get("/summary", h.summaryHandler)
		r.Get("/report", h.reportHandler)
		r.Get("/gtfsrt/alerts", h.gtfsAlertsHandler)

		r.Get("/version", h.versionHandler)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.AdminSecret(h.opts.AdminSecretHash))
			r.Post("/ingest", h.ingestHandler)
		})
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": h.now().UTC(),
		"version":   h.opts.Version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"store": "ok",
	}
	statusCode := http.StatusOK
	status := "ready"

	if err := h.store.Health(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": h.now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": h.now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.opts.Version,
		"build_time": h.opts.BuildTime,
		"git_commit": h.opts.GitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(middleware.RequestIDHeader)
	}
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: h.now().UTC(),
		RequestID: requestID,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
