package threatlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishguard/phishguard/pkg/verdict"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS threat_events (
	id          UUID PRIMARY KEY,
	url         TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	source      TEXT NOT NULL
)`

// PostgresStore persists events across restarts and gateway instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the events table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createEventsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure threat_events table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Append inserts e.
func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO threat_events (id, url, ts, status, probability, source)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.URL, e.Timestamp, string(e.Status), e.Probability, e.Source)
	if err != nil {
		return fmt.Errorf("insert threat event: %w", err)
	}
	return nil
}

// Count returns the total number of recorded events.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM threat_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count threat events: %w", err)
	}
	return n, nil
}

// Since returns events at or after cutoff, oldest first.
func (s *PostgresStore) Since(ctx context.Context, cutoff time.Time) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, ts, status, probability, source
		 FROM threat_events WHERE ts >= $1 ORDER BY ts`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query threat events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var status string
		if err := rows.Scan(&e.ID, &e.URL, &e.Timestamp, &status, &e.Probability, &e.Source); err != nil {
			return nil, fmt.Errorf("scan threat event: %w", err)
		}
		e.Status = verdict.Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threat events: %w", err)
	}
	return out, nil
}
