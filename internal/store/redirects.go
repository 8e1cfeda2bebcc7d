package store

import (
	"database/sql"
	"fmt"

	"tribune/internal/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = fmt.Errorf("not found")

// CreateRedirect stores a tracked short link under the given id.
func (s *Store) CreateRedirect(id, targetURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO redirects (id, target_url) VALUES (?, ?)`, id, targetURL)
	if err != nil {
		return fmt.Errorf("failed to create redirect: %w", err)
	}
	return nil
}

// ResolveRedirect returns the target URL for an id and increments its
// click count atomically.
func (s *Store) ResolveRedirect(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target string
	err := s.db.QueryRow(`
		SELECT target_url FROM redirects WHERE id = ?`, id).Scan(&target)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve redirect: %w", err)
	}

	if _, err := s.db.Exec(`
		UPDATE redirects SET clicks = clicks + 1 WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("failed to count click: %w", err)
	}
	return target, nil
}

// Redirects returns all tracked links.
func (s *Store) Redirects() ([]types.Redirect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, target_url, clicks, created_at FROM redirects
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query redirects: %w", err)
	}
	defer rows.Close()

	var redirects []types.Redirect
	for rows.Next() {
		var r types.Redirect
		if err := rows.Scan(&r.ID, &r.TargetURL, &r.Clicks, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redirect: %w", err)
		}
		redirects = append(redirects, r)
	}
	return redirects, rows.Err()
}

// TotalClicksSince sums clicks across redirects created since the given time.
func (s *Store) TotalClicks() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(clicks) FROM redirects`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to sum clicks: %w", err)
	}
	return int(n.Int64), nil
}
