package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

func TestClient_Events(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"data":  []models.DisruptionEvent{{ID: "e1", Kind: models.KindCancelled, Route: "3"}},
			"count": 1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	events, err := c.Events(context.Background(), models.EventQuery{
		Kinds: []models.EventKind{models.KindCancelled},
		Since: time.Date(2021, 1, 25, 0, 0, 0, 0, time.UTC),
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("unexpected events %+v", events)
	}
	if gotQuery != "kind=cancelled&limit=5&since=2021-01-25T00%3A00%3A00Z" {
		t.Errorf("unexpected query %s", gotQuery)
	}
}

func TestClient_TriggerIngest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(AdminSecretHeader) != "s3cret" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("forbidden\n"))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"runs": []IngestRun{{Source: "message-cache", Fetched: 2}}})
	}))
	defer srv.Close()

	runs, err := New(srv.URL, "s3cret").TriggerIngest(context.Background())
	if err != nil {
		t.Fatalf("TriggerIngest() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Fetched != 2 {
		t.Errorf("unexpected runs %+v", runs)
	}

	_, err = New(srv.URL, "wrong").TriggerIngest(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "forbidden" {
		t.Errorf("expected 403 APIError, got %v", err)
	}
}

func TestClient_ClassifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Bad Request","message":"invalid JSON body"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Classify(context.Background(), []models.Message{{ID: 1}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "invalid JSON body" {
		t.Errorf("expected APIError with message, got %v", err)
	}
}
