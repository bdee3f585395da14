package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Dialect selects SQL placeholder style and migration set.
type Dialect string

const (
	dialectSQLite   Dialect = "sqlite"
	dialectPostgres Dialect = "postgres"
)

const pingTimeout = 10 * time.Second

// SQLStore implements Store for SQLite and PostgreSQL.
type SQLStore struct {
	dialect Dialect
	db      *sql.DB
}

func openSQLStore(ctx context.Context, dialect Dialect, db *sql.DB) (*SQLStore, error) {
	// A turn writes a handful of rows synchronously; one connection keeps
	// SQLite free of lock contention and is plenty for postgres too.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	s := &SQLStore{dialect: dialect, db: db}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Dialect reports which database the store talks to.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) bind(pos int) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

// rebind rewrites '?' placeholders for the store's dialect.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.bind(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_unix_nano BIGINT NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		sqlBytes, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		q := s.rebind("INSERT INTO schema_migrations (version, applied_unix_nano) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, q, base, time.Now().UnixNano()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// ---------------------------------------------------------
// Events
// ---------------------------------------------------------

const eventColumns = "id, session_id, ts_unix_nano, event_type, turn, actor, payload"

// Append inserts a new event into the immutable ledger.
func (s *SQLStore) Append(ctx context.Context, event StoredEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if event.Payload == nil {
		payload = []byte("{}")
	}

	query := s.rebind("INSERT INTO events (" + eventColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp.UnixNano(), event.EventType,
		event.Turn, event.Actor, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// GetBySessionID retrieves all events of a session (the full replay).
func (s *SQLStore) GetBySessionID(ctx context.Context, sessionID string) ([]StoredEvent, error) {
	return s.queryEvents(ctx, "SELECT "+eventColumns+" FROM events WHERE session_id = ? ORDER BY seq ASC", sessionID)
}

// GetByEventType retrieves all events of a specific type.
func (s *SQLStore) GetByEventType(ctx context.Context, sessionID string, eventType string) ([]StoredEvent, error) {
	return s.queryEvents(ctx, "SELECT "+eventColumns+" FROM events WHERE session_id = ? AND event_type = ? ORDER BY seq ASC", sessionID, eventType)
}

// GetByTurnRange retrieves events from an inclusive range of turns.
func (s *SQLStore) GetByTurnRange(ctx context.Context, sessionID string, from, to int) ([]StoredEvent, error) {
	return s.queryEvents(ctx, "SELECT "+eventColumns+" FROM events WHERE session_id = ? AND turn >= ? AND turn <= ? ORDER BY seq ASC", sessionID, from, to)
}

// Sessions lists sessions by the order their first event was written.
func (s *SQLStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT session_id, MIN(seq) AS first_seq FROM events GROUP BY session_id ORDER BY first_seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var first int64
		if err := rows.Scan(&id, &first); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryEvents is a helper to execute queries and scan results.
func (s *SQLStore) queryEvents(ctx context.Context, query string, args ...any) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var ts int64
		var payload []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &ts, &e.EventType, &e.Turn, &e.Actor, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------
// High scores
// ---------------------------------------------------------

// HighScore returns the record for a difficulty.
func (s *SQLStore) HighScore(ctx context.Context, difficulty string) (int64, error) {
	var score int64
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT score FROM high_scores WHERE difficulty = ?"), difficulty).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read high score: %w", err)
	}
	return score, nil
}

// SubmitScore replaces the record when score beats it.
func (s *SQLStore) SubmitScore(ctx context.Context, difficulty string, score int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin score tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, s.rebind("SELECT score FROM high_scores WHERE difficulty = ?"), difficulty).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("failed to read high score: %w", err)
	case score <= current:
		return false, nil
	}

	query := s.rebind(`
		INSERT INTO high_scores (difficulty, score, achieved_unix_nano) VALUES (?, ?, ?)
		ON CONFLICT (difficulty) DO UPDATE SET score = excluded.score, achieved_unix_nano = excluded.achieved_unix_nano
	`)
	if _, err := tx.ExecContext(ctx, query, difficulty, score, time.Now().UnixNano()); err != nil {
		return false, fmt.Errorf("failed to store high score: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit score tx: %w", err)
	}
	return true, nil
}

// ---------------------------------------------------------
// Achievements
// ---------------------------------------------------------

// Unlock stores an achievement ID once.
func (s *SQLStore) Unlock(ctx context.Context, id string, at time.Time) (bool, error) {
	query := s.rebind("INSERT INTO achievements (id, unlocked_unix_nano) VALUES (?, ?) ON CONFLICT (id) DO NOTHING")
	res, err := s.db.ExecContext(ctx, query, id, at.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return n == 1, nil
}

// Unlocked lists stored achievement IDs.
func (s *SQLStore) Unlocked(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM achievements ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---------------------------------------------------------
// Saved sessions
// ---------------------------------------------------------

// SaveSession upserts an encoded save into a slot.
func (s *SQLStore) SaveSession(ctx context.Context, slot string, payload string) error {
	query := s.rebind(`
		INSERT INTO sessions (slot, payload, saved_unix_nano) VALUES (?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET payload = excluded.payload, saved_unix_nano = excluded.saved_unix_nano
	`)
	if _, err := s.db.ExecContext(ctx, query, slot, payload, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession reads an encoded save from a slot.
func (s *SQLStore) LoadSession(ctx context.Context, slot string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT payload FROM sessions WHERE slot = ?"), slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return payload, nil
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
