// Package journal persists table change events to Postgres for audit
// and replay.
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"domotica-bridge/internal/events"
)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS table_events (
    id      UUID PRIMARY KEY,
    ts      TIMESTAMPTZ NOT NULL,
    evento  TEXT NOT NULL,
    seq     BIGINT NOT NULL,
    payload JSONB NOT NULL
)`

	insertEventSQL = `
INSERT INTO table_events (id, ts, evento, seq, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`
)

// DB is the slice of pgxpool.Pool the journal needs. Tests substitute
// pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Journal writes events to the table_events table.
type Journal struct {
	db     DB
	logger *zap.Logger
}

// New connects to Postgres, ensures the schema and returns a journal.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect journal db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure table_events: %w", err)
	}
	return &Journal{db: pool, logger: logger}, nil
}

// NewWithDB wraps an existing connection. The schema is assumed present.
func NewWithDB(db DB, logger *zap.Logger) *Journal {
	return &Journal{db: db, logger: logger}
}

// RecordEvent inserts one event. Replays of an already-journaled event
// id are silently ignored.
func (j *Journal) RecordEvent(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt.Mesas)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	tag, err := j.db.Exec(ctx, insertEventSQL, evt.ID, evt.TS, string(evt.Evento), int64(evt.Seq), payload)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		j.logger.Debug("event already journaled", zap.String("event_id", evt.ID))
	}
	return nil
}

// Close releases the underlying pool.
func (j *Journal) Close() {
	j.db.Close()
}
