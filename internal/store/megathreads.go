package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// OpenMegathread returns the show's currently open megathread, or nil.
func (s *Store) OpenMegathread(ctx context.Context, showID int64) (*Megathread, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+megathreadColumns+` FROM megathreads
         WHERE show_id = ? AND open = 1 ORDER BY seq DESC LIMIT 1`,
		showID,
	)
	thread, err := scanMegathread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open megathread: %w", err)
	}
	return thread, nil
}

// LatestMegathread returns the show's highest-sequence megathread regardless
// of open state, or nil.
func (s *Store) LatestMegathread(ctx context.Context, showID int64) (*Megathread, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+megathreadColumns+` FROM megathreads
         WHERE show_id = ? ORDER BY seq DESC LIMIT 1`,
		showID,
	)
	thread, err := scanMegathread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest megathread: %w", err)
	}
	return thread, nil
}

// CreateMegathread records a newly created megathread post as the show's open
// megathread.
func (s *Store) CreateMegathread(ctx context.Context, showID int64, seq int, url string) (*Megathread, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO megathreads (show_id, seq, url, episode_count, open, created_at)
         VALUES (?, ?, ?, 0, 1, ?)`,
		showID,
		seq,
		url,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert megathread: %w", err)
	}
	return &Megathread{
		ShowID:    showID,
		Seq:       seq,
		URL:       url,
		Open:      true,
		CreatedAt: now,
	}, nil
}

// IncrementMegathreadCount bumps the attached-episode count and returns the
// new value.
func (s *Store) IncrementMegathreadCount(ctx context.Context, showID int64, seq int) (int, error) {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE megathreads SET episode_count = episode_count + 1 WHERE show_id = ? AND seq = ?`,
		showID,
		seq,
	)
	if err != nil {
		return 0, fmt.Errorf("increment megathread count: %w", err)
	}

	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT episode_count FROM megathreads WHERE show_id = ? AND seq = ?`,
		showID,
		seq,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("read megathread count: %w", err)
	}
	return count, nil
}

// CloseMegathread marks a megathread closed. Closed megathreads are never
// reopened; the next relegated episode allocates a successor.
func (s *Store) CloseMegathread(ctx context.Context, showID int64, seq int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE megathreads SET open = 0 WHERE show_id = ? AND seq = ?`,
		showID,
		seq,
	)
	if err != nil {
		return fmt.Errorf("close megathread: %w", err)
	}
	return nil
}

const megathreadColumns = "show_id, seq, url, episode_count, open, created_at"

func scanMegathread(scanner interface{ Scan(dest ...any) error }) (*Megathread, error) {
	var (
		showID     int64
		seq        int
		url        string
		count      int
		open       int
		createdRaw string
	)

	if err := scanner.Scan(&showID, &seq, &url, &count, &open, &createdRaw); err != nil {
		return nil, err
	}

	thread := &Megathread{
		ShowID:       showID,
		Seq:          seq,
		URL:          url,
		EpisodeCount: count,
		Open:         open != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		thread.CreatedAt = created
	}
	return thread, nil
}
