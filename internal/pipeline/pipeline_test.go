package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/dedup"
	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// MockStore for testing
type MockStore struct {
	mu     sync.Mutex
	events []models.DisruptionEvent
	calls  int
	err    error
}

func (m *MockStore) UpsertEvents(ctx context.Context, events []models.DisruptionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

// MockSource for testing
type MockSource struct {
	name     string
	messages []models.Message
	err      error
	interval time.Duration
	fetches  int
	mu       sync.Mutex
}

func (m *MockSource) Name() string { return m.name }

func (m *MockSource) Fetch(ctx context.Context) ([]models.Message, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.messages, nil
}

func (m *MockSource) Interval() time.Duration {
	if m.interval == 0 {
		return 50 * time.Millisecond
	}
	return m.interval
}

func (m *MockSource) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

var posted = time.Date(2021, 1, 24, 21, 0, 6, 0, time.UTC)

func sampleMessages() []models.Message {
	return []models.Message{
		{ID: 101, PostedAt: posted, Text: "Bus 3: Bus 3: 10:30am Wellington Station to Lyall Bay is cancelled. Please check RTI for next available bus."},
		{ID: 102, PostedAt: posted, Text: "Bus 27: Bus 27: 5:23pm Kingston - Wellington Stn has been REINSTATED."},
		{ID: 103, PostedAt: posted, Text: "Trains: WRL services are running to timetable."},
		{ID: 104, PostedAt: posted, Text: "Bus 3: 4:15 Wellington Station to Lyall Bay is cancelled."},
	}
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{RateLimit: 100, WorkerCount: 2, BatchSize: 2, RunTimeout: 5 * time.Second}
}

func newTestPipeline(t *testing.T, store Store, sources ...Source) (*Pipeline, *dedup.Memory) {
	t.Helper()
	logger.Init("error", "text")
	cls, err := classifier.New(classifier.Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	d := dedup.NewMemory(0)
	return New(store, cls, d, sources, testConfig()), d
}

func TestNew(t *testing.T) {
	store := &MockStore{}
	src := &MockSource{name: "mock"}
	p, _ := newTestPipeline(t, store, src)

	if p.store != store {
		t.Error("Store not set correctly")
	}
	if len(p.Sources()) != 1 {
		t.Errorf("Expected 1 source, got %d", len(p.Sources()))
	}
	if p.IsRunning() {
		t.Error("Pipeline should not be running after New")
	}
}

func TestNew_DefaultsDeduper(t *testing.T) {
	logger.Init("error", "text")
	p := New(&MockStore{}, nil, nil, nil, config.PipelineConfig{})
	if p.deduper == nil {
		t.Fatal("expected a default deduper")
	}
}

func TestPipeline_RunOnce(t *testing.T) {
	store := &MockStore{}
	src := &MockSource{name: "mock", messages: sampleMessages()}
	p, d := newTestPipeline(t, store, src)

	results, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.RunID == "" {
		t.Error("Expected a run id")
	}
	if res.Fetched != 4 || res.New != 4 {
		t.Errorf("Expected 4 fetched and new, got %d/%d", res.Fetched, res.New)
	}
	if res.Events != 2 || len(store.events) != 2 {
		t.Errorf("Expected 2 events stored, got %d (store %d)", res.Events, len(store.events))
	}
	if len(res.Failures) != 1 || res.Failures[0].MessageID != 104 {
		t.Errorf("Expected message 104 to fail, got %+v", res.Failures)
	}
	var amb *apperrors.AmbiguousTimeOfDayError
	if len(res.Failures) == 1 && !apperrors.As(res.Failures[0].Err, &amb) {
		t.Errorf("Expected ambiguous time failure, got %v", res.Failures[0].Err)
	}
	if d.Len() != 4 {
		t.Errorf("Expected every message marked seen, got %d", d.Len())
	}
	for _, e := range store.events {
		if e.ID == "" || e.MessageID == 0 {
			t.Errorf("event missing identity: %+v", e)
		}
	}

	// A second pass sees nothing new
	results, err = p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if results[0].New != 0 || store.calls != 1 {
		t.Errorf("Expected no new messages and no extra store calls, got new=%d calls=%d", results[0].New, store.calls)
	}
}

func TestPipeline_RunOnce_FetchError(t *testing.T) {
	good := &MockSource{name: "good", messages: sampleMessages()[:1]}
	bad := &MockSource{name: "bad", err: errors.New("connection refused")}
	p, _ := newTestPipeline(t, &MockStore{}, good, bad)

	results, err := p.RunOnce(context.Background())
	if err == nil {
		t.Fatal("Expected error from failing source")
	}
	var perr apperrors.PipelineError
	if !apperrors.As(err, &perr) {
		t.Fatalf("Expected PipelineError, got %T %v", err, err)
	}
	if perr.Source != "bad" || perr.Stage != "fetch" {
		t.Errorf("unexpected pipeline error %+v", perr)
	}
	if results[0].Events != 1 {
		t.Errorf("good source should still store its event, got %d", results[0].Events)
	}
	if results[1].Error == "" {
		t.Error("Expected failing source result to carry the error")
	}
}

func TestPipeline_RunOnce_StoreError(t *testing.T) {
	store := &MockStore{err: errors.New("database unavailable")}
	src := &MockSource{name: "mock", messages: sampleMessages()[:1]}
	p, d := newTestPipeline(t, store, src)

	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("Expected error when store fails")
	}
	if d.Len() != 0 {
		t.Errorf("messages must not be marked seen when storing fails, got %d", d.Len())
	}
}

func TestPipeline_RunOnce_NoMessages(t *testing.T) {
	store := &MockStore{}
	p, _ := newTestPipeline(t, store, &MockSource{name: "empty"})

	results, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if results[0].Fetched != 0 || store.calls != 0 {
		t.Errorf("Expected nothing processed, got %+v calls=%d", results[0], store.calls)
	}
}

func TestPipeline_Run(t *testing.T) {
	src := &MockSource{name: "mock", messages: sampleMessages()[:1], interval: 20 * time.Millisecond}
	p, _ := newTestPipeline(t, &MockStore{}, src)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	if !p.IsRunning() {
		t.Error("Expected pipeline to be running")
	}
	if err := p.Run(ctx); err == nil {
		t.Error("Expected error when starting an already running pipeline")
	}

	if err := <-done; err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
	if p.IsRunning() {
		t.Error("Expected pipeline to be stopped")
	}
	if src.Fetches() < 2 {
		t.Errorf("Expected repeated polling, got %d fetches", src.Fetches())
	}
}
