package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v5"
	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// PostgresStore implements Store using PostgreSQL.
//
// TIMESTAMPTZ keeps the instant but not the offset, so the resolved time's
// zone name and offset are stored alongside it and reapplied on read.
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertEventSQL = `
	INSERT INTO disruption_events (
		id, message_id, kind, route, origin, destination, gap_start, gap_end,
		delay_minutes, raw_time_text, posted_at, resolved_time, resolved_zone, resolved_offset
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
	)
	ON CONFLICT (id) DO UPDATE SET
		message_id = EXCLUDED.message_id,
		kind = EXCLUDED.kind,
		route = EXCLUDED.route,
		origin = EXCLUDED.origin,
		destination = EXCLUDED.destination,
		gap_start = EXCLUDED.gap_start,
		gap_end = EXCLUDED.gap_end,
		delay_minutes = EXCLUDED.delay_minutes,
		raw_time_text = EXCLUDED.raw_time_text,
		posted_at = EXCLUDED.posted_at,
		resolved_time = EXCLUDED.resolved_time,
		resolved_zone = EXCLUDED.resolved_zone,
		resolved_offset = EXCLUDED.resolved_offset,
		updated_at = NOW()
`

const selectEventColumns = `
	SELECT id, message_id, kind, route, origin, destination, gap_start, gap_end,
		   delay_minutes, raw_time_text, posted_at, resolved_time, resolved_zone, resolved_offset
	FROM disruption_events
`

// UpsertEvents inserts or updates events in a single batch.
func (s *PostgresStore) UpsertEvents(ctx context.Context, events []models.DisruptionEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := validate(events); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		zone, offset := e.ResolvedTime.Zone()
		batch.Queue(upsertEventSQL,
			e.ID, int64(e.MessageID), string(e.Kind), e.Route, e.Origin, e.Destination,
			e.GapStart, e.GapEnd, e.DelayMinutes, e.RawTimeText,
			e.PostedAt, e.ResolvedTime, zone, offset,
		)
	}

	if err := s.db.SendBatch(ctx, batch); err != nil {
		return apperrors.DatabaseError{Operation: fmt.Sprintf("upsert %d events", len(events)), Err: err}
	}
	return nil
}

// QueryEvents retrieves events based on query parameters, most recently
// posted first.
func (s *PostgresStore) QueryEvents(ctx context.Context, q models.EventQuery) ([]models.DisruptionEvent, error) {
	query := selectEventColumns + " WHERE 1=1"

	var args []any
	argIndex := 1

	if len(q.IDs) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d)", argIndex)
		args = append(args, q.IDs)
		argIndex++
	}

	if len(q.MessageIDs) > 0 {
		ids := make([]int64, len(q.MessageIDs))
		for i, id := range q.MessageIDs {
			ids[i] = int64(id)
		}
		query += fmt.Sprintf(" AND message_id = ANY($%d)", argIndex)
		args = append(args, ids)
		argIndex++
	}

	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		query += fmt.Sprintf(" AND kind = ANY($%d)", argIndex)
		args = append(args, kinds)
		argIndex++
	}

	if len(q.Routes) > 0 {
		query += fmt.Sprintf(" AND route = ANY($%d)", argIndex)
		args = append(args, q.Routes)
		argIndex++
	}

	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND posted_at >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}

	if !q.Until.IsZero() {
		query += fmt.Sprintf(" AND posted_at <= $%d", argIndex)
		args = append(args, q.Until)
		argIndex++
	}

	query += " ORDER BY posted_at DESC, resolved_time DESC, route DESC, kind DESC, id DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}

	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []models.DisruptionEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	return events, nil
}

// GetEvent retrieves a single event by ID
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*models.DisruptionEvent, error) {
	row := s.db.QueryRow(ctx, selectEventColumns+" WHERE id = $1", id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("event %q: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return &e, nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func scanEvent(row pgx.Row) (models.DisruptionEvent, error) {
	var (
		e         models.DisruptionEvent
		messageID int64
		kind      string
		zone      string
		offset    int
	)
	err := row.Scan(
		&e.ID, &messageID, &kind, &e.Route, &e.Origin, &e.Destination,
		&e.GapStart, &e.GapEnd, &e.DelayMinutes, &e.RawTimeText,
		&e.PostedAt, &e.ResolvedTime, &zone, &offset,
	)
	if err != nil {
		return models.DisruptionEvent{}, fmt.Errorf("scan event: %w", err)
	}
	e.MessageID = uint64(messageID)
	e.Kind = models.EventKind(kind)
	e.PostedAt = e.PostedAt.UTC()
	e.ResolvedTime = e.ResolvedTime.In(time.FixedZone(zone, offset))
	return e, nil
}
