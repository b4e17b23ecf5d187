package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string]models.DisruptionEvent
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string]models.DisruptionEvent),
	}
}

// UpsertEvents stores events in memory, replacing any with the same id.
// Nothing is stored if any event is invalid.
func (s *InMemoryStore) UpsertEvents(ctx context.Context, events []models.DisruptionEvent) error {
	if err := validate(events); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.events[e.ID] = e
	}

	return nil
}

// QueryEvents returns matching events, most recently posted first.
func (s *InMemoryStore) QueryEvents(ctx context.Context, q models.EventQuery) ([]models.DisruptionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.DisruptionEvent{}
	for _, e := range s.events {
		if q.Matches(e) {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[j].Less(result[i])
	})

	if q.Offset >= len(result) {
		return []models.DisruptionEvent{}, nil
	}
	if q.Offset > 0 {
		result = result[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	return result, nil
}

// GetEvent retrieves a single event by ID
func (s *InMemoryStore) GetEvent(ctx context.Context, id string) (*models.DisruptionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, exists := s.events[id]; exists {
		return &e, nil
	}

	return nil, fmt.Errorf("event %q: %w", id, apperrors.ErrNotFound)
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}

// Len reports how many events are held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func invalid(field, msg string) error {
	return apperrors.ValidationError{Field: field, Message: msg}
}
