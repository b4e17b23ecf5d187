package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/api"
	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/dedup"
	middlewares "github.com/rajasatyajit/TransitDisruptions/internal/middleware"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
	"github.com/rajasatyajit/TransitDisruptions/internal/pipeline"
	"github.com/rajasatyajit/TransitDisruptions/internal/store"
)

const messageCache = `{"tweets":[
 {"id":1353447509805342721,"created_at":"2021-01-24T21:00:06Z","text":"Bus 3: Bus 3: 10:30am Wellington Station to Lyall Bay is cancelled."},
 {"id":1353447509805342722,"created_at":"2021-01-24T21:05:00Z","text":"Bus 27: Bus 27: 11:23am Kingston - Wellington Stn has been REINSTATED."},
 {"id":1353447509805342723,"created_at":"2021-01-24T21:10:00Z","text":"Trains: minor delays across the network."}
]}`

type testServer struct {
	router *chi.Mux
	store  *store.InMemoryStore
}

func setup(t *testing.T) *testServer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tweets.json")
	if err := os.WriteFile(path, []byte(messageCache), 0o644); err != nil {
		t.Fatal(err)
	}

	st := store.NewInMemoryStore()
	cls, err := classifier.New(classifier.Options{Workers: 2})
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	p := pipeline.New(st, cls, dedup.NewMemory(0), []pipeline.Source{
		pipeline.NewFileSource("message-cache", path, time.Minute),
	}, config.PipelineConfig{WorkerCount: 1, BatchSize: 10, RunTimeout: time.Minute})

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := api.NewHandler(st, cls, p, api.Options{
		API:             config.APIConfig{DefaultLimit: 100, MaxLimit: 1000, MaxBodyBytes: 1 << 20, AgencyID: "metlink"},
		AdminSecretHash: hash,
		Version:         "test",
		BuildTime:       "test-time",
		GitCommit:       "test-commit",
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &testServer{router: r, store: st}
}

func (s *testServer) do(t *testing.T, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	s := setup(t)

	tests := []struct {
		name           string
		endpoint       string
		expectedStatus int
	}{
		{"Health Check", "/health", http.StatusOK},
		{"Readiness Check", "/v1/health/ready", http.StatusOK},
		{"Liveness Check", "/v1/health/live", http.StatusOK},
		{"Version Info", "/v1/version", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.endpoint, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestIngestThenQuery(t *testing.T) {
	s := setup(t)
	admin := map[string]string{middlewares.AdminSecretHeader: "s3cret"}

	w := s.do(t, http.MethodPost, "/v1/admin/ingest", admin)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ingest api.IngestResponse
	if err := json.NewDecoder(w.Body).Decode(&ingest); err != nil {
		t.Fatalf("decode ingest: %v", err)
	}
	if len(ingest.Runs) != 1 || ingest.Runs[0].New != 3 || ingest.Runs[0].Events != 2 {
		t.Fatalf("unexpected runs %+v", ingest.Runs)
	}
	if s.store.Len() != 2 {
		t.Fatalf("expected 2 stored events, got %d", s.store.Len())
	}

	// a second pass finds nothing new
	w = s.do(t, http.MethodPost, "/v1/admin/ingest", admin)
	ingest = api.IngestResponse{}
	if err := json.NewDecoder(w.Body).Decode(&ingest); err != nil {
		t.Fatalf("decode ingest: %v", err)
	}
	if ingest.Runs[0].New != 0 {
		t.Errorf("expected no new messages, got %d", ingest.Runs[0].New)
	}

	t.Run("List events", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/events?kind=reinstated", nil)
		var resp struct {
			Data []models.DisruptionEvent `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Data) != 1 || resp.Data[0].Route != "27" || resp.Data[0].RawTimeText != "11:23 am" {
			t.Errorf("unexpected events %+v", resp.Data)
		}
	})

	t.Run("Get single event", func(t *testing.T) {
		id := classifier.EventID(1353447509805342721, 0)
		w := s.do(t, http.MethodGet, "/v1/events/"+id, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var e models.DisruptionEvent
		if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if e.Kind != models.KindCancelled || e.Destination != "Lyall Bay" {
			t.Errorf("unexpected event %+v", e)
		}
	})

	t.Run("Feed", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/gtfsrt/alerts", nil)
		if w.Code != http.StatusOK || w.Body.Len() == 0 {
			t.Errorf("expected feed, got %d with %d bytes", w.Code, w.Body.Len())
		}
	})
}

func TestIngestRequiresSecret(t *testing.T) {
	s := setup(t)
	w := s.do(t, http.MethodPost, "/v1/admin/ingest", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if n, _ := s.store.QueryEvents(context.Background(), models.EventQuery{}); len(n) != 0 {
		t.Error("nothing should be ingested without the secret")
	}
}
