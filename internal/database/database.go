package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajasatyajit/TransitDisruptions/config"
	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/metrics"
)

// Schema creates the tables the event store needs. It is idempotent.
//
//go:embed schema.sql
var Schema string

// ErrNotConfigured is returned by queries when no DATABASE_URL was given.
var ErrNotConfigured = errors.New("database not configured")

const queryTimeout = 30 * time.Second

// DB wraps a pgx pool. A DB without a pool is valid and reports
// IsConfigured() == false so callers can fall back to memory.
type DB struct {
	pool *pgxpool.Pool
	cfg  config.DatabaseConfig
}

// New creates a new database connection
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		logger.Info("DATABASE_URL not set; using in-memory store only")
		return &DB{pool: nil, cfg: cfg}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		logger.Debug("Database connection established", "pid", conn.PgConn().PID())
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db := &DB{pool: pool, cfg: cfg}

	go db.collectMetrics(ctx)

	logger.Info("Database connection established",
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)

	return db, nil
}

// Migrate applies Schema.
func (d *DB) Migrate(ctx context.Context) error {
	if d.pool == nil {
		return nil
	}
	if err := d.Exec(ctx, Schema); err != nil {
		return apperrors.DatabaseError{Operation: "migrate", Err: err}
	}
	logger.Info("Database schema applied")
	return nil
}

// Close closes the database connection
func (d *DB) Close(ctx context.Context) {
	if d.pool != nil {
		d.pool.Close()
		logger.Info("Database connection closed")
	}
}

// collectMetrics periodically publishes pool usage
func (d *DB) collectMetrics(ctx context.Context) {
	if d.pool == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := d.pool.Stat()
			metrics.SetDBConnectionsActive(float64(stat.AcquiredConns()))
		}
	}
}

// Exec executes a statement. Without a pool it is a no-op.
func (d *DB) Exec(ctx context.Context, sql string, args ...any) error {
	if d.pool == nil {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := d.pool.Exec(ctx, sql, args...)
	d.observe("exec", sql, start, err)
	return err
}

// Query executes a query and returns rows. The caller closes them.
func (d *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if d.pool == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	rows, err := d.pool.Query(ctx, sql, args...)
	d.observe("query", sql, start, err)
	return rows, err
}

// QueryRow executes a query that returns a single row
func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if d.pool == nil {
		return errRow{err: ErrNotConfigured}
	}
	start := time.Now()
	row := d.pool.QueryRow(ctx, sql, args...)
	d.observe("query_row", sql, start, nil)
	return row
}

// SendBatch runs every queued statement in b inside one round trip and
// returns the first failure.
func (d *DB) SendBatch(ctx context.Context, b *pgx.Batch) error {
	if d.pool == nil {
		return ErrNotConfigured
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	results := d.pool.SendBatch(ctx, b)
	var err error
	for i := 0; i < b.Len(); i++ {
		if _, err = results.Exec(); err != nil {
			err = fmt.Errorf("batch statement %d: %w", i, err)
			break
		}
	}
	if cerr := results.Close(); err == nil {
		err = cerr
	}
	d.observe("batch", fmt.Sprintf("%d statements", b.Len()), start, err)
	return err
}

func (d *DB) observe(op, sql string, start time.Time, err error) {
	logger.Debug("Database "+op,
		"sql", sql,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	status := "success"
	if err != nil {
		status = "error"
		logger.Error("Database "+op+" failed", "error", err, "sql", sql)
	}
	metrics.RecordDBQuery(op, status)
}

// Health checks database connectivity
func (d *DB) Health(ctx context.Context) error {
	if d.pool == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return d.pool.Ping(ctx)
}

// IsConfigured returns true if database is configured
func (d *DB) IsConfigured() bool {
	return d.pool != nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
