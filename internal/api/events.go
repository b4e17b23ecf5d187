package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/gtfsrt"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
	"github.com/rajasatyajit/TransitDisruptions/internal/summary"
)

// getEventsHandler handles GET /v1/events
func (h *Handler) getEventsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseEventQuery(r, h.opts.API.DefaultLimit)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.QueryEvents(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query events", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"data":      events,
		"count":     len(events),
		"timestamp": h.now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getEventHandler handles GET /v1/events/{id}
func (h *Handler) getEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")

	if eventID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "event ID is required")
		return
	}

	event, err := h.store.GetEvent(ctx, eventID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get event", "error", err, "event_id", eventID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, event)
}

// summaryHandler handles GET /v1/summary. Without a limit every matching
// event is summarized.
func (h *Handler) summaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseEventQuery(r, 0)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.QueryEvents(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query events for summary", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"statistics": summary.Summarize(events),
		"timestamp":  h.now().UTC(),
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// reportHandler handles GET /v1/report?weeks=N, the weekly breakdown of
// stored events.
func (h *Handler) reportHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	weeks := summary.DefaultWeeks
	if s := r.URL.Query().Get("weeks"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 52 {
			h.writeErrorResponse(w, r, http.StatusBadRequest, "weeks must be between 1 and 52")
			return
		}
		weeks = n
	}

	now := h.now()
	monday := summary.WeekStart(now, h.opts.Location)
	events, err := h.store.QueryEvents(ctx, models.EventQuery{
		Since: monday.AddDate(0, 0, -7*weeks),
		Until: monday,
	})
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query events for report", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, summary.BuildReport(now, h.opts.Location, weeks, events, nil))
}

// gtfsAlertsHandler handles GET /v1/gtfsrt/alerts. The feed is protobuf
// unless format=text asks for prototext.
func (h *Handler) gtfsAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseEventQuery(r, 0)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.QueryEvents(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query events for feed", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	feed := &gtfsrt.Feed{
		Timestamp: h.now(),
		AgencyID:  h.opts.API.AgencyID,
		Language:  "en",
		Events:    events,
	}

	humanReadable := r.URL.Query().Get("format") == "text"
	if humanReadable {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/x-protobuf")
	}
	w.Header().Set("Cache-Control", "public, max-age=30")
	if err := feed.Dump(w, humanReadable); err != nil {
		logger.WithContext(ctx).Error("Failed to write feed", "error", err)
	}
}

// parseEventQuery parses query parameters into EventQuery. defaultLimit
// applies when no limit is given; zero means unlimited.
func (h *Handler) parseEventQuery(r *http.Request, defaultLimit int) (models.EventQuery, error) {
	values := r.URL.Query()
	q := models.EventQuery{Limit: defaultLimit}

	if limitStr := values.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %s", limitStr)
		}
		if limit < 0 || limit > h.opts.API.MaxLimit {
			return q, fmt.Errorf("limit must be between 0 and %d", h.opts.API.MaxLimit)
		}
		q.Limit = limit
	}

	if offsetStr := values.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return q, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return q, fmt.Errorf("offset must be non-negative")
		}
		q.Offset = offset
	}

	if sinceStr := values.Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("invalid since format: %s", sinceStr)
		}
		q.Since = since
	}

	if untilStr := values.Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return q, fmt.Errorf("invalid until format: %s", untilStr)
		}
		q.Until = until
	}

	for _, k := range values["kind"] {
		kind := models.EventKind(k)
		if !kind.Valid() {
			return q, fmt.Errorf("invalid kind: %s", k)
		}
		q.Kinds = append(q.Kinds, kind)
	}

	for _, s := range values["message_id"] {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return q, fmt.Errorf("invalid message_id: %s", s)
		}
		q.MessageIDs = append(q.MessageIDs, id)
	}

	q.Routes = values["route"]
	q.IDs = values["id"]

	return q, nil
}
