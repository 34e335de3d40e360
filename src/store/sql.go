package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"errlens-agent/src/contracts"
)

// sqlLog implements Store over database/sql. The two SQL backends differ
// only in schema and placeholder syntax.
type sqlLog struct {
	db *sql.DB
	// ph returns the placeholder for the n-th (1-based) argument.
	ph func(n int) string
	// noLimit is the LIMIT value meaning "all rows" ("-1" in SQLite, "ALL" in Postgres).
	noLimit string
}

func (s *sqlLog) migrate(ctx context.Context, schema []string) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Prepend inserts ev and deletes everything older than the newest limit rows
// in one transaction.
func (s *sqlLog) Prepend(ctx context.Context, ev contracts.Event, limit int) ([]string, error) {
	if ev.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(`
		INSERT INTO events (id, type, status, data, captured_at)
		VALUES (%s, %s, %s, %s, %s)
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	if _, err := tx.ExecContext(ctx, insert, ev.ID, string(ev.Type), string(ev.Status), string(data), ev.Timestamp.UTC()); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	overflow := fmt.Sprintf(`
		SELECT id FROM events
		ORDER BY seq DESC
		LIMIT %s OFFSET %s
	`, s.noLimit, s.ph(1))
	rows, err := tx.QueryContext(ctx, overflow, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query overflow: %w", err)
	}
	var evicted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan overflow: %w", err)
		}
		evicted = append(evicted, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read overflow: %w", err)
	}

	del := fmt.Sprintf(`DELETE FROM events WHERE id = %s`, s.ph(1))
	for _, id := range evicted {
		if _, err := tx.ExecContext(ctx, del, id); err != nil {
			return nil, fmt.Errorf("failed to evict %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return evicted, nil
}

// Update replaces the stored record with the same id.
func (s *sqlLog) Update(ctx context.Context, ev contracts.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	query := fmt.Sprintf(`
		UPDATE events
		SET status = %s, data = %s, updated_at = %s
		WHERE id = %s
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4))

	result, err := s.db.ExecContext(ctx, query, string(ev.Status), string(data), time.Now().UTC(), ev.ID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ev.ID)
	}
	return nil
}

// Get returns one event by id.
func (s *sqlLog) Get(ctx context.Context, id string) (contracts.Event, error) {
	query := fmt.Sprintf(`SELECT data FROM events WHERE id = %s`, s.ph(1))

	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return contracts.Event{}, fmt.Errorf("failed to get event: %w", err)
	}
	return decodeEvent(data)
}

// List returns every stored event, most recent first.
func (s *sqlLog) List(ctx context.Context) ([]contracts.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM events ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []contracts.Event{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev, err := decodeEvent(data)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// Clear removes every event.
func (s *sqlLog) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlLog) Close() error {
	return s.db.Close()
}

func decodeEvent(data string) (contracts.Event, error) {
	var ev contracts.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return contracts.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}
