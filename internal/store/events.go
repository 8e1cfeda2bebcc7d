package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tribune/internal/types"
)

// SaveSensedEvent persists one perception snapshot.
func (s *Store) SaveSensedEvent(e *types.SensedEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	countsJSON, err := json.Marshal(e.Counts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal counts: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO sensed_events (source, counts_json, payload)
		VALUES (?, ?, ?)`, e.Source, string(countsJSON), e.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to save sensed event: %w", err)
	}
	return res.LastInsertId()
}

// LatestSensedEvent returns the most recent perception snapshot, or
// ErrNotFound when none has been recorded.
func (s *Store) LatestSensedEvent() (*types.SensedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e types.SensedEvent
	var countsJSON string
	err := s.db.QueryRow(`
		SELECT id, source, counts_json, payload, created_at
		FROM sensed_events ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&e.ID, &e.Source, &countsJSON, &e.Payload, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sensed event: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &e.Counts); err != nil {
		return nil, fmt.Errorf("failed to parse counts: %w", err)
	}
	return &e, nil
}

// SensedEventsSince returns snapshots since the given time, newest first.
func (s *Store) SensedEventsSince(since time.Time, limit int) ([]types.SensedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source, counts_json, payload, created_at
		FROM sensed_events WHERE created_at >= ?
		ORDER BY created_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensed events: %w", err)
	}
	defer rows.Close()

	var events []types.SensedEvent
	for rows.Next() {
		var e types.SensedEvent
		var countsJSON string
		if err := rows.Scan(&e.ID, &e.Source, &countsJSON, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sensed event: %w", err)
		}
		if err := json.Unmarshal([]byte(countsJSON), &e.Counts); err != nil {
			e.Counts = map[string]int{}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetCursor returns a named perception cursor value; empty when unset.
func (s *Store) GetCursor(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v sql.NullString
	err := s.db.QueryRow(`SELECT value FROM cursors WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return v.String, nil
}

// SetCursor stores a named perception cursor. An empty value clears it.
func (s *Store) SetCursor(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == "" {
		_, err := s.db.Exec(`
			INSERT INTO cursors (name, value, updated_at) VALUES (?, NULL, CURRENT_TIMESTAMP)
			ON CONFLICT(name) DO UPDATE SET value = NULL, updated_at = CURRENT_TIMESTAMP`, name)
		if err != nil {
			return fmt.Errorf("failed to clear cursor: %w", err)
		}
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO cursors (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}
