package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tribune/internal/types"
)

// SaveAction records one agent action.
func (s *Store) SaveAction(a *types.Action) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	armsJSON, err := json.Marshal(a.Arms)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal arms: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO actions (type, kind, target, text, dm_copy, arms_json, result, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.Type), string(a.Kind), a.Target, a.Text, a.DMCopy,
		string(armsJSON), a.Result, a.Detail, timeOrNow(a.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to save action: %w", err)
	}
	return res.LastInsertId()
}

// RecentActions returns actions since the given time, newest first.
func (s *Store) RecentActions(since time.Time, limit int) ([]types.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, type, COALESCE(kind, ''), COALESCE(target, ''),
			COALESCE(text, ''), COALESCE(dm_copy, ''), COALESCE(arms_json, '{}'),
			result, COALESCE(detail, ''), created_at
		FROM actions WHERE created_at >= ?
		ORDER BY created_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []types.Action
	for rows.Next() {
		var a types.Action
		var typ, kind, armsJSON string
		err := rows.Scan(&a.ID, &typ, &kind, &a.Target, &a.Text, &a.DMCopy,
			&armsJSON, &a.Result, &a.Detail, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Type = types.ActionType(typ)
		a.Kind = types.PostKind(kind)
		if err := json.Unmarshal([]byte(armsJSON), &a.Arms); err != nil {
			// Legacy rows may carry malformed arms; skip the field
			a.Arms = types.ArmSelection{}
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// LastActionTime returns when an action of the given type last ran,
// or the zero time when it never has.
func (s *Store) LastActionTime(t types.ActionType) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ts sql.NullTime
	err := s.db.QueryRow(`
		SELECT MAX(created_at) FROM actions WHERE type = ?`, string(t)).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last action time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// SaveDM records one outbound direct message.
func (s *Store) SaveDM(platform, recipient, text string, dryRun bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO dm_log (platform, recipient, text, dry_run)
		VALUES (?, ?, ?, ?)`, platform, recipient, text, dryRun)
	if err != nil {
		return fmt.Errorf("failed to save dm: %w", err)
	}
	return nil
}

// DMSentSince reports whether a DM was sent to the recipient since the
// given time.
func (s *Store) DMSentSince(recipient string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM dm_log WHERE recipient = ? AND created_at >= ?`,
		recipient, since).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query dm log: %w", err)
	}
	return n > 0, nil
}
