package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// sanitizeName cleans titles before they reach post templates. Ampersands are
// spelled out because the platform escapes them aggressively in titles.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "&", " and ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
}

// AddShow inserts a tracked show. The English name is dropped when it only
// repeats the romanized title.
func (s *Store) AddShow(ctx context.Context, show *Show) error {
	if show == nil {
		return errors.New("show is nil")
	}

	show.Name = sanitizeName(show.Name)
	show.NameEN = sanitizeName(show.NameEN)
	if NormalizeTitle(show.NameEN) == NormalizeTitle(show.Name) {
		show.NameEN = ""
	}
	if show.Type == "" {
		show.Type = TypeUnknown
	}
	if show.Airing == "" {
		show.Airing = AiringReleasing
	}

	now := time.Now().UTC()
	show.CreatedAt = now
	show.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO shows (
            id, id_mal, name, name_en, show_type, country,
            has_source, nsfw, airing, enabled, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		show.ID,
		show.MALID,
		show.Name,
		nullableString(show.NameEN),
		string(show.Type),
		nullableString(show.Country),
		boolToInt(show.HasSource),
		boolToInt(show.NSFW),
		string(show.Airing),
		boolToInt(show.Enabled),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert show: %w", err)
	}
	return nil
}

// UpdateShow refreshes a show's metadata in place. Identity and the enabled
// flag are not touched; enablement changes go through SetShowEnabled.
func (s *Store) UpdateShow(ctx context.Context, show *Show) error {
	if show == nil {
		return errors.New("show is nil")
	}

	show.Name = sanitizeName(show.Name)
	show.NameEN = sanitizeName(show.NameEN)
	if NormalizeTitle(show.NameEN) == NormalizeTitle(show.Name) {
		show.NameEN = ""
	}
	show.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE shows
         SET id_mal = ?, name = ?, name_en = ?, show_type = ?, country = ?,
             has_source = ?, nsfw = ?, airing = ?, updated_at = ?
         WHERE id = ?`,
		show.MALID,
		show.Name,
		nullableString(show.NameEN),
		string(show.Type),
		nullableString(show.Country),
		boolToInt(show.HasSource),
		boolToInt(show.NSFW),
		string(show.Airing),
		formatTime(show.UpdatedAt),
		show.ID,
	)
	if err != nil {
		return fmt.Errorf("update show: %w", err)
	}
	return nil
}

// GetShow fetches a show by media id.
func (s *Store) GetShow(ctx context.Context, id int64) (*Show, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	return show, nil
}

// ShowByTitle looks up a show whose name, English name, or any alias matches
// the given title after normalization.
func (s *Store) ShowByTitle(ctx context.Context, title string) (*Show, error) {
	want := NormalizeTitle(title)
	if want == "" {
		return nil, nil
	}

	shows, err := s.Shows(ctx, ShowFilterAll)
	if err != nil {
		return nil, err
	}
	for _, show := range shows {
		if NormalizeTitle(show.Name) == want || NormalizeTitle(show.NameEN) == want {
			return show, nil
		}
		aliases, err := s.Aliases(ctx, show.ID)
		if err != nil {
			return nil, err
		}
		for _, alias := range aliases {
			if NormalizeTitle(alias) == want {
				return show, nil
			}
		}
	}
	return nil, nil
}

// ShowFilter selects shows by enabled state.
type ShowFilter int

const (
	ShowFilterAll ShowFilter = iota
	ShowFilterEnabled
	ShowFilterDisabled
)

// Shows returns tracked shows matching the filter, ordered by name.
func (s *Store) Shows(ctx context.Context, filter ShowFilter) ([]*Show, error) {
	query := `SELECT ` + showColumns + ` FROM shows`
	switch filter {
	case ShowFilterEnabled:
		query += ` WHERE enabled = 1`
	case ShowFilterDisabled:
		query += ` WHERE enabled = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query shows: %w", err)
	}
	defer rows.Close()

	var shows []*Show
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

// SetShowEnabled toggles a show's enabled flag.
func (s *Store) SetShowEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE shows SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set show enabled: %w", err)
	}
	return nil
}

// RemoveShow deletes a show. Episodes, threads, megathreads, and aliases
// cascade.
func (s *Store) RemoveShow(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete show: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddAlias records an alternative title for a show. Aliases that normalize to
// the show's own titles are skipped.
func (s *Store) AddAlias(ctx context.Context, showID int64, alias string) error {
	alias = sanitizeName(alias)
	if alias == "" {
		return nil
	}

	show, err := s.GetShow(ctx, showID)
	if err != nil {
		return err
	}
	if show != nil {
		normalized := NormalizeTitle(alias)
		if normalized == NormalizeTitle(show.Name) || normalized == NormalizeTitle(show.NameEN) {
			return nil
		}
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO aliases (show_id, alias) VALUES (?, ?)`,
		showID,
		alias,
	)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

// Aliases returns the recorded alternative titles for a show.
func (s *Store) Aliases(ctx context.Context, showID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias FROM aliases WHERE show_id = ? ORDER BY alias`, showID)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

const showColumns = "id, id_mal, name, name_en, show_type, country, has_source, nsfw, airing, enabled, created_at, updated_at"

func scanShow(scanner interface{ Scan(dest ...any) error }) (*Show, error) {
	var (
		id         int64
		malID      sql.NullInt64
		name       string
		nameEN     sql.NullString
		showType   string
		country    sql.NullString
		hasSource  int
		nsfw       int
		airing     string
		enabled    int
		createdRaw string
		updatedRaw string
	)

	if err := scanner.Scan(
		&id,
		&malID,
		&name,
		&nameEN,
		&showType,
		&country,
		&hasSource,
		&nsfw,
		&airing,
		&enabled,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	show := &Show{
		ID:        id,
		MALID:     malID.Int64,
		Name:      name,
		NameEN:    nameEN.String,
		Type:      ShowType(showType),
		Country:   country.String,
		HasSource: hasSource != 0,
		NSFW:      nsfw != 0,
		Airing:    AiringStatus(airing),
		Enabled:   enabled != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		show.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		show.UpdatedAt = updated
	}
	return show, nil
}
