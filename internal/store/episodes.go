package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertUpcoming records a newly reported upcoming episode, or refreshes the
// air time of a known one when the schedule shifted. Posted and expired
// episodes are left untouched.
func (s *Store) UpsertUpcoming(ctx context.Context, showID int64, number int, airTime time.Time) error {
	now := formatTime(time.Now().UTC())

	existing, err := s.Episode(ctx, showID, number)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err := s.db.ExecContext(
			ctx,
			`INSERT INTO episodes (show_id, episode, air_time, state, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			showID,
			number,
			formatTime(airTime),
			EpisodeUpcoming,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
		return nil
	}

	if existing.State == EpisodePosted || existing.State == EpisodeExpired {
		return nil
	}
	if existing.AirTime.Equal(airTime.UTC()) {
		return nil
	}

	// A rescheduled episode drops back to upcoming so it is re-classified
	// against the new air time.
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE episodes SET air_time = ?, state = ?, updated_at = ? WHERE id = ?`,
		formatTime(airTime),
		EpisodeUpcoming,
		now,
		existing.ID,
	)
	if err != nil {
		return fmt.Errorf("update episode air time: %w", err)
	}
	return nil
}

// Episode fetches one episode by (show, number).
func (s *Store) Episode(ctx context.Context, showID int64, number int) (*Episode, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE show_id = ? AND episode = ?`,
		showID,
		number,
	)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// EpisodesByShow returns all episodes of a show ordered by episode number.
func (s *Store) EpisodesByShow(ctx context.Context, showID int64) ([]*Episode, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE show_id = ? ORDER BY episode`,
		showID,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// EpisodesInState returns episodes matching any of the given states, ordered
// by air time ascending so delayed runs still post chronologically.
func (s *Store) EpisodesInState(ctx context.Context, states ...EpisodeState) ([]*Episode, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(states))
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = string(state)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE state IN (`+placeholders+`) ORDER BY air_time`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes by state: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// SetEpisodeState transitions an episode's lifecycle state.
func (s *Store) SetEpisodeState(ctx context.Context, id int64, state EpisodeState) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET state = ?, updated_at = ? WHERE id = ?`,
		string(state),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set episode state: %w", err)
	}
	return nil
}

// LatestPostedEpisode returns the highest-numbered posted episode of a show,
// or nil when the show has never been posted.
func (s *Store) LatestPostedEpisode(ctx context.Context, showID int64) (*Episode, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes
         WHERE show_id = ? AND state = ? ORDER BY episode DESC LIMIT 1`,
		showID,
		EpisodePosted,
	)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest posted episode: %w", err)
	}
	return episode, nil
}

// ExpireEpisodesBefore marks unposted episodes whose air time is older than
// the cutoff as expired. Returns the number of episodes expired.
func (s *Store) ExpireEpisodesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET state = ?, updated_at = ?
         WHERE state IN (?, ?) AND air_time < ?`,
		EpisodeExpired,
		formatTime(time.Now().UTC()),
		EpisodeUpcoming,
		EpisodeDue,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("expire episodes: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpiredEpisodes purges expired episode records.
func (s *Store) DeleteExpiredEpisodes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE state = ?`, EpisodeExpired)
	if err != nil {
		return 0, fmt.Errorf("delete expired episodes: %w", err)
	}
	return res.RowsAffected()
}

const episodeColumns = "id, show_id, episode, air_time, state, created_at, updated_at"

func collectEpisodes(rows *sql.Rows) ([]*Episode, error) {
	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		id         int64
		showID     int64
		number     int
		airRaw     string
		state      string
		createdRaw string
		updatedRaw string
	)

	if err := scanner.Scan(&id, &showID, &number, &airRaw, &state, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	episode := &Episode{
		ID:     id,
		ShowID: showID,
		Number: number,
		State:  EpisodeState(state),
	}
	if airTime, err := parseTimeString(airRaw); err == nil {
		episode.AirTime = airTime
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		episode.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		episode.UpdatedAt = updated
	}
	return episode, nil
}
