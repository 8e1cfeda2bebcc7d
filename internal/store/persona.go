package store

import (
	"database/sql"
	"fmt"

	"tribune/internal/types"
)

// SavePersonaVersion stores one persona document under the next version
// number and returns it.
func (s *Store) SavePersonaVersion(hash, body, note string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(version) FROM persona_versions`).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to query persona versions: %w", err)
	}
	version := int(max.Int64) + 1

	_, err := s.db.Exec(`
		INSERT INTO persona_versions (version, hash, body, note)
		VALUES (?, ?, ?, ?)`, version, hash, body, note)
	if err != nil {
		return 0, fmt.Errorf("failed to save persona version: %w", err)
	}
	return version, nil
}

// PersonaVersion returns one stored persona version.
func (s *Store) PersonaVersion(version int) (*types.PersonaVersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r types.PersonaVersionRecord
	err := s.db.QueryRow(`
		SELECT version, hash, body, COALESCE(note, ''), created_at
		FROM persona_versions WHERE version = ?`, version).
		Scan(&r.Version, &r.Hash, &r.Body, &r.Note, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query persona version: %w", err)
	}
	return &r, nil
}

// PersonaVersions lists stored versions, newest first, without bodies.
func (s *Store) PersonaVersions() ([]types.PersonaVersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT version, hash, COALESCE(note, ''), created_at
		FROM persona_versions ORDER BY version DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query persona versions: %w", err)
	}
	defer rows.Close()

	var versions []types.PersonaVersionRecord
	for rows.Next() {
		var r types.PersonaVersionRecord
		if err := rows.Scan(&r.Version, &r.Hash, &r.Note, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan persona version: %w", err)
		}
		versions = append(versions, r)
	}
	return versions, rows.Err()
}

// LatestPersonaVersion returns the newest stored version, or ErrNotFound.
func (s *Store) LatestPersonaVersion() (*types.PersonaVersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r types.PersonaVersionRecord
	err := s.db.QueryRow(`
		SELECT version, hash, body, COALESCE(note, ''), created_at
		FROM persona_versions ORDER BY version DESC LIMIT 1`).
		Scan(&r.Version, &r.Hash, &r.Body, &r.Note, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest persona version: %w", err)
	}
	return &r, nil
}
