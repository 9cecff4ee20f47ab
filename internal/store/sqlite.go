package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seantiz/athenamock/internal/model"

	_ "modernc.org/sqlite"
)

const createTransitionsTable = `
CREATE TABLE IF NOT EXISTS transitions (
    id           TEXT PRIMARY KEY,
    execution_id TEXT NOT NULL,
    from_state   TEXT NOT NULL DEFAULT '',
    to_state     TEXT NOT NULL,
    tick         INTEGER NOT NULL,
    created_at   INTEGER NOT NULL,
    UNIQUE (execution_id, tick)
)`

const createTransitionsIndex = `
CREATE INDEX IF NOT EXISTS idx_transitions_execution ON transitions (execution_id, tick)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
// ":memory:" keeps the journal in process memory.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createTransitionsTable, createTransitionsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate transitions: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordTransition appends a transition. A missing ID is filled with a new ULID.
func (s *SQLiteStore) RecordTransition(ctx context.Context, tr *model.Transition) error {
	if tr.ID == "" {
		tr.ID = model.NewID()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (id, execution_id, from_state, to_state, tick, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.ExecutionID, string(tr.From), string(tr.To), tr.Tick, tr.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns the recorded transitions of one execution in tick
// order. It returns ErrNotFound when nothing was recorded.
func (s *SQLiteStore) ListTransitions(ctx context.Context, executionID string) ([]model.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, from_state, to_state, tick, created_at
		FROM transitions WHERE execution_id = ? ORDER BY tick ASC`, executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []model.Transition
	for rows.Next() {
		var (
			tr        model.Transition
			from, to  string
			createdAt int64
		)
		if err := rows.Scan(&tr.ID, &tr.ExecutionID, &from, &to, &tr.Tick, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = model.State(from)
		tr.To = model.State(to)
		tr.CreatedAt = time.UnixMilli(createdAt).UTC()
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}

	if len(transitions) == 0 {
		return nil, ErrNotFound
	}
	return transitions, nil
}

// GetStats returns the number of journaled executions by their latest state
// and the mean time from QUEUED to SUCCEEDED.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &Stats{CountByState: make(map[model.State]int)}

	rows, err := tx.QueryContext(ctx,
		`SELECT t.to_state, COUNT(*)
		FROM transitions t
		WHERE t.tick = (SELECT MAX(tick) FROM transitions WHERE execution_id = t.execution_id)
		GROUP BY t.to_state`,
	)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		stats.CountByState[model.State(state)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state counts: %w", err)
	}

	var avg sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT AVG(s.created_at - q.created_at)
		FROM transitions q
		JOIN transitions s ON s.execution_id = q.execution_id
		WHERE q.to_state = ? AND s.to_state = ?`,
		string(model.StateQueued), string(model.StateSucceeded),
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average completion: %w", err)
	}
	if avg.Valid {
		stats.AvgCompletionMS = avg.Float64
	}

	return stats, nil
}
