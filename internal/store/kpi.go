package store

import (
	"database/sql"
	"fmt"
	"time"

	"tribune/internal/types"
)

// SaveKPI records one KPI series value.
func (s *Store) SaveKPI(series string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO kpis (series, value) VALUES (?, ?)`, series, value)
	if err != nil {
		return fmt.Errorf("failed to save kpi: %w", err)
	}
	return nil
}

// LatestKPI returns the most recent value of a series.
// The bool is false when the series has no samples yet.
func (s *Store) LatestKPI(series string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT value FROM kpis WHERE series = ?
		ORDER BY created_at DESC LIMIT 1`, series).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest kpi: %w", err)
	}
	return v.Float64, v.Valid, nil
}

// KPIHistory returns samples of a series since the given time, oldest first.
func (s *Store) KPIHistory(series string, since time.Time) ([]types.KPISnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, series, value, created_at FROM kpis
		WHERE series = ? AND created_at >= ?
		ORDER BY created_at ASC`, series, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpi history: %w", err)
	}
	defer rows.Close()

	var snaps []types.KPISnapshot
	for rows.Next() {
		var k types.KPISnapshot
		if err := rows.Scan(&k.ID, &k.Series, &k.Value, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan kpi: %w", err)
		}
		snaps = append(snaps, k)
	}
	return snaps, rows.Err()
}

// SaveFollowersSnapshot records one follower count sample.
func (s *Store) SaveFollowersSnapshot(platform string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO followers_snapshot (platform, count) VALUES (?, ?)`,
		platform, count)
	if err != nil {
		return fmt.Errorf("failed to save followers snapshot: %w", err)
	}
	return nil
}

// FollowerSnapshots returns snapshots for a platform since the given time,
// oldest first.
func (s *Store) FollowerSnapshots(platform string, since time.Time) ([]types.FollowersSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, platform, count, created_at FROM followers_snapshot
		WHERE platform = ? AND created_at >= ?
		ORDER BY created_at ASC`, platform, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query follower snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []types.FollowersSnapshot
	for rows.Next() {
		var f types.FollowersSnapshot
		if err := rows.Scan(&f.ID, &f.Platform, &f.Count, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, f)
	}
	return snaps, rows.Err()
}

// SaveOutcome records one structured mission outcome.
func (s *Store) SaveOutcome(o *types.StructuredOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO outcomes (post_id, kind, detail) VALUES (?, ?, ?)`,
		o.PostID, string(o.Kind), o.Detail)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// OutcomesSince returns structured outcomes since the given time.
func (s *Store) OutcomesSince(since time.Time) ([]types.StructuredOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, post_id, kind, COALESCE(detail, ''), created_at
		FROM outcomes WHERE created_at >= ?
		ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []types.StructuredOutcome
	for rows.Next() {
		var o types.StructuredOutcome
		var kind string
		if err := rows.Scan(&o.ID, &o.PostID, &kind, &o.Detail, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Kind = types.OutcomeKind(kind)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
