// Package cdr persists call detail records to PostgreSQL. The sink
// is an audit trail only: the in-memory session store remains the
// authoritative view, and every write here is best-effort.
//
// Expected schema:
//
//	CREATE TABLE call_records (
//	    session_id       text PRIMARY KEY,
//	    provider_call_id text NOT NULL,
//	    target_number    text NOT NULL,
//	    spoof_number     text NOT NULL,
//	    status           text NOT NULL,
//	    conference_name  text,
//	    voice            text,
//	    language         text,
//	    recording_count  int NOT NULL DEFAULT 0,
//	    started_at       timestamptz NOT NULL,
//	    updated_at       timestamptz NOT NULL
//	);
package cdr

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/birddigital/spoofcall/pkg/telephony"
)

// Store writes call records through a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SessionCreated inserts the initial record for a new session.
func (s *Store) SessionCreated(ctx context.Context, snap telephony.Snapshot) error {
	query := `
		INSERT INTO call_records (
			session_id, provider_call_id, target_number, spoof_number,
			status, conference_name, voice, language,
			recording_count, started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.SessionID,
		snap.ProviderCallID,
		snap.TargetNumber,
		snap.SpoofNumber,
		snap.Status,
		snap.ConferenceName,
		snap.Modulation.Voice,
		snap.Modulation.Language,
		len(snap.Recordings),
		snap.StartTime,
	)
	return errors.Wrap(err, "insert call record")
}

// SessionUpdated refreshes the mutable columns after a transition,
// termination or recording arrival.
func (s *Store) SessionUpdated(ctx context.Context, snap telephony.Snapshot) error {
	query := `
		UPDATE call_records SET
			status = $1,
			recording_count = $2,
			updated_at = now()
		WHERE session_id = $3
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Status,
		len(snap.Recordings),
		snap.SessionID,
	)
	return errors.Wrap(err, "update call record")
}
