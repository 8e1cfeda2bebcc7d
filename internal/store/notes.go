package store

import (
	"fmt"
	"time"

	"tribune/internal/types"
)

// maxNotes caps the improvement-note ring; oldest entries beyond the cap
// are dropped on insert.
const maxNotes = 100

// SaveNote appends an improvement note, trimming the oldest beyond the cap.
func (s *Store) SaveNote(source, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`
		INSERT INTO notes (source, text) VALUES (?, ?)`, source, text); err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	_, err := s.db.Exec(`
		DELETE FROM notes WHERE id NOT IN (
			SELECT id FROM notes ORDER BY created_at DESC, id DESC LIMIT ?
		)`, maxNotes)
	if err != nil {
		return fmt.Errorf("failed to trim notes: %w", err)
	}
	return nil
}

// RecentNotes returns the last n notes, newest first.
func (s *Store) RecentNotes(limit int) ([]types.ImprovementNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source, text, created_at FROM notes
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []types.ImprovementNote
	for rows.Next() {
		var n types.ImprovementNote
		if err := rows.Scan(&n.ID, &n.Source, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// NotesSince returns notes created at or after the given time, newest first.
func (s *Store) NotesSince(since time.Time) ([]types.ImprovementNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source, text, created_at FROM notes
		WHERE created_at >= ? ORDER BY created_at DESC, id DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []types.ImprovementNote
	for rows.Next() {
		var n types.ImprovementNote
		if err := rows.Scan(&n.ID, &n.Source, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
