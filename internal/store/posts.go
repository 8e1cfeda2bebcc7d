package store

import (
	"database/sql"
	"fmt"
	"time"

	"tribune/internal/types"
)

// SavePost inserts a published post and returns its row id.
func (s *Store) SavePost(p *types.Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO posts (platform, platform_id, kind, text, text_hash, topic,
			intensity, cta_variant, in_reply_to, dry_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Platform, p.PlatformID, string(p.Kind), p.Text, p.TextHash, p.Topic,
		p.Intensity, p.CTAVariant, p.InReplyTo, p.DryRun, timeOrNow(p.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to save post: %w", err)
	}
	return res.LastInsertId()
}

// UpdateEngagement overwrites the engagement counts for one post.
func (s *Store) UpdateEngagement(postID int64, e types.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE posts SET likes = ?, reposts = ?, replies = ?, quotes = ?, clicks = ?
		WHERE id = ?`,
		e.Likes, e.Reposts, e.Replies, e.Quotes, e.Clicks, postID)
	if err != nil {
		return fmt.Errorf("failed to update engagement: %w", err)
	}
	return nil
}

// UpdatePostScores stores the computed per-post scores.
func (s *Store) UpdatePostScores(postID int64, authorityHits int, penalty, jScore float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE posts SET authority_hits = ?, penalty_score = ?, j_score = ?
		WHERE id = ?`,
		authorityHits, penalty, jScore, postID)
	if err != nil {
		return fmt.Errorf("failed to update post scores: %w", err)
	}
	return nil
}

// RecentPosts returns posts created within the given window, newest first.
func (s *Store) RecentPosts(since time.Time, limit int) ([]types.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, platform, platform_id, kind, text, text_hash, topic,
			intensity, cta_variant, COALESCE(in_reply_to, ''), dry_run,
			likes, reposts, replies, quotes, clicks,
			authority_hits, penalty_score, j_score, created_at
		FROM posts WHERE created_at >= ?
		ORDER BY created_at DESC LIMIT ?`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// RecentTexts returns the texts and hashes of posts since the given time.
// Used by the duplicate gate.
func (s *Store) RecentTexts(since time.Time) ([]struct{ Text, Hash string }, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT text, text_hash FROM posts WHERE created_at >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent texts: %w", err)
	}
	defer rows.Close()

	var out []struct{ Text, Hash string }
	for rows.Next() {
		var t struct{ Text, Hash string }
		if err := rows.Scan(&t.Text, &t.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan text: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PostsMissingScores returns posts with engagement recorded but no J score.
func (s *Store) PostsMissingScores(limit int) ([]types.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, platform, platform_id, kind, text, text_hash, topic,
			intensity, cta_variant, COALESCE(in_reply_to, ''), dry_run,
			likes, reposts, replies, quotes, clicks,
			authority_hits, penalty_score, j_score, created_at
		FROM posts WHERE j_score IS NULL AND dry_run = 0
		ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscored posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// LastPostTime returns the time of the most recent post of the given kind,
// or the zero time when none exists.
func (s *Store) LastPostTime(kind types.PostKind) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ts sql.NullTime
	err := s.db.QueryRow(`
		SELECT MAX(created_at) FROM posts WHERE kind = ?`, string(kind)).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last post time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// CountPostsSince counts non-dry-run posts since the given time.
func (s *Store) CountPostsSince(since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM posts WHERE created_at >= ? AND dry_run = 0`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

func scanPosts(rows *sql.Rows) ([]types.Post, error) {
	var posts []types.Post
	for rows.Next() {
		var p types.Post
		var kind string
		var jScore sql.NullFloat64
		err := rows.Scan(&p.ID, &p.Platform, &p.PlatformID, &kind, &p.Text,
			&p.TextHash, &p.Topic, &p.Intensity, &p.CTAVariant, &p.InReplyTo,
			&p.DryRun, &p.Engagement.Likes, &p.Engagement.Reposts,
			&p.Engagement.Replies, &p.Engagement.Quotes, &p.Engagement.Clicks,
			&p.AuthorityHits, &p.PenaltyScore, &jScore, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.Kind = types.PostKind(kind)
		if jScore.Valid {
			v := jScore.Float64
			p.JScore = &v
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
