package store

import (
	"fmt"
	"time"

	"tribune/internal/types"
)

// LogArmSelection records the arm tuple chosen for a post at publish
// time. The reward stays NULL until the post's J-score is measured.
func (s *Store) LogArmSelection(postID int64, dimension, arm string, sampledProb float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO arms_log (post_id, dimension, arm, sampled_prob)
		VALUES (?, ?, ?, ?)`, postID, dimension, arm, sampledProb)
	if err != nil {
		return fmt.Errorf("failed to log arm selection: %w", err)
	}
	return nil
}

// RecordArmRewards writes the measured reward onto every unrewarded arm
// row of one post. Rewards are written exactly once.
func (s *Store) RecordArmRewards(postID int64, reward float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE arms_log SET reward = ?
		WHERE post_id = ? AND reward IS NULL`, reward, postID)
	if err != nil {
		return fmt.Errorf("failed to record arm rewards: %w", err)
	}
	return nil
}

// LogArmPull records one arm pull with its reward already known.
func (s *Store) LogArmPull(dimension, arm string, reward, sampledProb float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO arms_log (dimension, arm, reward, sampled_prob)
		VALUES (?, ?, ?, ?)`, dimension, arm, reward, sampledProb)
	if err != nil {
		return fmt.Errorf("failed to log arm pull: %w", err)
	}
	return nil
}

// ArmPulls returns arm pulls for a dimension since the given time,
// newest first, capped at limit.
func (s *Store) ArmPulls(dimension string, since time.Time, limit int) ([]types.ArmLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, dimension, arm, COALESCE(reward, 0), sampled_prob, created_at
		FROM arms_log WHERE dimension = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT ?`, dimension, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query arm pulls: %w", err)
	}
	defer rows.Close()

	var entries []types.ArmLogEntry
	for rows.Next() {
		var e types.ArmLogEntry
		if err := rows.Scan(&e.ID, &e.Dimension, &e.Arm, &e.Reward, &e.Sampled, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan arm pull: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentArmPulls returns the last n pulls across all dimensions,
// newest first.
func (s *Store) RecentArmPulls(limit int) ([]types.ArmLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, dimension, arm, COALESCE(reward, 0), sampled_prob, created_at
		FROM arms_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent arm pulls: %w", err)
	}
	defer rows.Close()

	var entries []types.ArmLogEntry
	for rows.Next() {
		var e types.ArmLogEntry
		if err := rows.Scan(&e.ID, &e.Dimension, &e.Arm, &e.Reward, &e.Sampled, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan arm pull: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ArmStats holds aggregate performance for one arm of one dimension.
type ArmStats struct {
	Dimension  string  `json:"dimension"`
	Arm        string  `json:"arm"`
	Pulls      int     `json:"pulls"`
	MeanReward float64 `json:"mean_reward"`
}

// ArmStatsSince aggregates measured pulls per (dimension, arm) over a
// window. Selections still awaiting a reward are excluded.
func (s *Store) ArmStatsSince(since time.Time) ([]ArmStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT dimension, arm, COUNT(*), AVG(reward)
		FROM arms_log WHERE created_at >= ? AND reward IS NOT NULL
		GROUP BY dimension, arm
		ORDER BY dimension, arm`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query arm stats: %w", err)
	}
	defer rows.Close()

	var stats []ArmStats
	for rows.Next() {
		var st ArmStats
		if err := rows.Scan(&st.Dimension, &st.Arm, &st.Pulls, &st.MeanReward); err != nil {
			return nil, fmt.Errorf("failed to scan arm stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
