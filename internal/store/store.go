package store

import (
	"context"

	pgx "github.com/jackc/pgx/v5"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// Store defines the interface for disruption event storage.
// GetEvent returns errors.ErrNotFound when the id is unknown.
type Store interface {
	UpsertEvents(ctx context.Context, events []models.DisruptionEvent) error
	QueryEvents(ctx context.Context, q models.EventQuery) ([]models.DisruptionEvent, error)
	GetEvent(ctx context.Context, id string) (*models.DisruptionEvent, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) error
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}

func validate(events []models.DisruptionEvent) error {
	for _, e := range events {
		if e.ID == "" {
			return invalid("id", "event without id")
		}
		if err := e.Validate(); err != nil {
			return invalid(e.ID, err.Error())
		}
	}
	return nil
}
