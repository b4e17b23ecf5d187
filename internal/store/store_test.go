package store

import (
	"context"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

type cfgDB struct{ configured bool }

func (d *cfgDB) Exec(ctx context.Context, sql string, args ...any) error { return nil }
func (d *cfgDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (d *cfgDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (d *cfgDB) SendBatch(ctx context.Context, b *pgx.Batch) error            { return nil }
func (d *cfgDB) Health(ctx context.Context) error                             { return nil }
func (d *cfgDB) IsConfigured() bool                                           { return d.configured }

func TestNew_ReturnsPostgresWhenConfigured(t *testing.T) {
	s := New(&cfgDB{configured: true})
	if _, ok := s.(*PostgresStore); !ok {
		t.Fatalf("expected PostgresStore when db is configured, got %T", s)
	}
}

func TestNew_ReturnsInMemoryWhenNotConfigured(t *testing.T) {
	s := New(&cfgDB{configured: false})
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("expected InMemoryStore when db is not configured, got %T", s)
	}
}

var nzdt = time.FixedZone("NZDT", 13*60*60)

func cancelled(id, route string, posted time.Time) models.DisruptionEvent {
	e := models.NewCancelled(models.Service{
		Route:       route,
		Origin:      "Courtenay Place",
		Destination: "Island Bay",
		RawTimeText: "6:20 pm",
		PostedAt:    posted,
		Resolved:    posted.Add(30 * time.Minute).In(nzdt),
	})
	e.ID = id
	e.MessageID = 1
	return e
}
