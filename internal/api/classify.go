package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
	"github.com/rajasatyajit/TransitDisruptions/internal/pipeline"
	"github.com/rajasatyajit/TransitDisruptions/internal/summary"
)

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Messages []models.Message `json:"messages" validate:"required,min=1,max=10000,dive"`
}

// ClassifyResponse reports the outcome of every message in request order.
type ClassifyResponse struct {
	Outcomes []models.Outcome         `json:"outcomes"`
	Events   []models.DisruptionEvent `json:"events"`
	Failures []classifier.Failure     `json:"failures"`
	Summary  summary.Statistics       `json:"summary"`
}

// IngestResponse is returned by POST /v1/admin/ingest.
type IngestResponse struct {
	Runs []pipeline.RunResult `json:"runs"`
}

// classifyHandler handles POST /v1/classify. Nothing is stored.
func (h *Handler) classifyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.classifier == nil {
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, "classifier not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.API.MaxBodyBytes)
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	result, err := h.classifier.ClassifyBatch(ctx, req.Messages)
	if err != nil {
		logger.WithContext(ctx).Error("Classification aborted", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "classification failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ClassifyResponse{
		Outcomes: result.Outcomes,
		Events:   result.Events,
		Failures: result.Failures,
		Summary:  summary.Summarize(result.Events),
	})
}

// ingestHandler handles POST /v1/admin/ingest. Results are returned for
// every source; any source failure turns the status into 502.
func (h *Handler) ingestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.ingester == nil {
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	runs, err := h.ingester.RunOnce(ctx)
	status := http.StatusOK
	if err != nil {
		logger.WithContext(ctx).Warn("Manual ingest finished with errors", "error", err)
		status = http.StatusBadGateway
	}
	if runs == nil {
		runs = []pipeline.RunResult{}
	}
	h.writeJSONResponse(w, status, IngestResponse{Runs: runs})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("invalid field %s: failed %s", fe.Namespace(), fe.Tag())
	}
	return apperrors.ErrInvalidInput.Error()
}
