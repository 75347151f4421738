package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MarkPosted records a successful dispatch: the thread row is inserted and
// the episode transitions to posted in one transaction, so a crash between
// the two cannot leave a posted episode without its thread. Existing
// standalone threads of the show are marked stale so their cross-reference
// tables get refreshed.
func (s *Store) MarkPosted(ctx context.Context, episode *Episode, kind ThreadKind, url string) (*Thread, error) {
	if episode == nil {
		return nil, errors.New("episode is nil")
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin posted tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO threads (episode_id, show_id, kind, url, votes, comments, stale, created_at)
         VALUES (?, ?, ?, ?, 0, 0, 0, ?)`,
		episode.ID,
		episode.ShowID,
		string(kind),
		url,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	threadID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE episodes SET state = ?, updated_at = ? WHERE id = ?`,
		EpisodePosted,
		formatTime(now),
		episode.ID,
	); err != nil {
		return nil, fmt.Errorf("mark episode posted: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE threads SET stale = 1 WHERE show_id = ? AND kind = ? AND id != ?`,
		episode.ShowID,
		ThreadStandalone,
		threadID,
	); err != nil {
		return nil, fmt.Errorf("mark threads stale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit posted: %w", err)
	}

	episode.State = EpisodePosted
	return &Thread{
		ID:        threadID,
		EpisodeID: episode.ID,
		ShowID:    episode.ShowID,
		Episode:   episode.Number,
		Kind:      kind,
		URL:       url,
		CreatedAt: now,
	}, nil
}

// ThreadForEpisode fetches the thread belonging to an episode, or nil.
func (s *Store) ThreadForEpisode(ctx context.Context, episodeID int64) (*Thread, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+threadColumns+` FROM threads t
         JOIN episodes e ON e.id = t.episode_id
         WHERE t.episode_id = ?`,
		episodeID,
	)
	thread, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("thread for episode: %w", err)
	}
	return thread, nil
}

// ThreadsByShow returns all threads of a show ordered by episode number.
func (s *Store) ThreadsByShow(ctx context.Context, showID int64) ([]*Thread, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+threadColumns+` FROM threads t
         JOIN episodes e ON e.id = t.episode_id
         WHERE t.show_id = ? ORDER BY e.episode`,
		showID,
	)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

// StaleStandaloneThreads returns standalone threads whose cross-reference
// rendering is out of date, ordered by show then episode.
func (s *Store) StaleStandaloneThreads(ctx context.Context) ([]*Thread, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+threadColumns+` FROM threads t
         JOIN episodes e ON e.id = t.episode_id
         WHERE t.stale = 1 AND t.kind = ?
         ORDER BY t.show_id, e.episode`,
		ThreadStandalone,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

// ClearThreadStale marks a thread's rendering as refreshed.
func (s *Store) ClearThreadStale(ctx context.Context, threadID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE threads SET stale = 0 WHERE id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("clear thread stale: %w", err)
	}
	return nil
}

// UpdateThreadEngagement persists a freshly observed engagement snapshot.
func (s *Store) UpdateThreadEngagement(ctx context.Context, threadID int64, votes, comments int, checkedAt time.Time) error {
	checked := checkedAt.UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE threads SET votes = ?, comments = ?, checked_at = ? WHERE id = ?`,
		votes,
		comments,
		formatTime(checked),
		threadID,
	)
	if err != nil {
		return fmt.Errorf("update thread engagement: %w", err)
	}
	return nil
}

const threadColumns = "t.id, t.episode_id, t.show_id, e.episode, t.kind, t.url, t.votes, t.comments, t.stale, t.checked_at, t.created_at"

func scanThread(scanner interface{ Scan(dest ...any) error }) (*Thread, error) {
	var (
		id         int64
		episodeID  int64
		showID     int64
		number     int
		kind       string
		url        string
		votes      int
		comments   int
		stale      int
		checkedRaw sql.NullString
		createdRaw string
	)

	if err := scanner.Scan(&id, &episodeID, &showID, &number, &kind, &url, &votes, &comments, &stale, &checkedRaw, &createdRaw); err != nil {
		return nil, err
	}

	thread := &Thread{
		ID:        id,
		EpisodeID: episodeID,
		ShowID:    showID,
		Episode:   number,
		Kind:      ThreadKind(kind),
		URL:       url,
		Votes:     votes,
		Comments:  comments,
		Stale:     stale != 0,
	}
	if checkedRaw.Valid {
		if checked, err := parseTimeString(checkedRaw.String); err == nil {
			thread.CheckedAt = &checked
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		thread.CreatedAt = created
	}
	return thread, nil
}
