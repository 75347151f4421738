// Package anilist wraps the AniList GraphQL API for show metadata and
// airing schedule lookups.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"airpost/internal/logging"
	"airpost/internal/store"
)

const (
	defaultBaseURL     = "https://graphql.anilist.co"
	defaultHTTPTimeout = 10 * time.Second

	// pageRetries is how many attempts each schedule page gets before the
	// page is skipped and the walk continues.
	pageRetries = 3

	// maxSkippedPages aborts a schedule walk once this many pages in a row
	// have been skipped, since the service is clearly down.
	maxSkippedPages = 5
)

// Client issues GraphQL queries against the AniList API. All requests pass
// through the shared rate limiter so schedule walks and metadata lookups
// count against the same budget.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option customizes the AniList client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs an AniList client. A nil limiter disables rate
// limiting, which is only appropriate in tests.
func NewClient(limiter *rate.Limiter, opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    limiter,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Title carries the romanized and English titles of a media entry.
type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
}

// Media is one AniList media entry.
type Media struct {
	ID       int64    `json:"id"`
	MALID    int64    `json:"idMal"`
	Title    Title    `json:"title"`
	Format   string   `json:"format"`
	Country  string   `json:"countryOfOrigin"`
	Source   string   `json:"source"`
	Synonyms []string `json:"synonyms"`
	IsAdult  bool     `json:"isAdult"`
	Status   string   `json:"status"`
	Duration int      `json:"duration"`
}

// ToShow converts the media entry into a tracked show record.
func (m Media) ToShow() *store.Show {
	return &store.Show{
		ID:        m.ID,
		MALID:     m.MALID,
		Name:      m.Title.Romaji,
		NameEN:    m.Title.English,
		Type:      store.ParseShowType(m.Format),
		Country:   m.Country,
		HasSource: m.Source != "" && m.Source != "ORIGINAL",
		NSFW:      m.IsAdult,
		Airing:    store.AiringStatus(m.Status),
	}
}

// Airing is one scheduled episode airing. AirsAt already includes the
// episode's runtime, so it marks when the episode has finished airing
// rather than when it starts.
type Airing struct {
	Media   Media
	Episode int
	AirsAt  time.Time
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// Show fetches metadata for one media id.
func (c *Client) Show(ctx context.Context, mediaID int64) (*Media, error) {
	var payload struct {
		Media Media `json:"Media"`
	}
	err := c.query(ctx, mediaQuery, map[string]any{"id": mediaID}, &payload)
	if err != nil {
		return nil, fmt.Errorf("anilist show %d: %w", mediaID, err)
	}
	if payload.Media.ID == 0 {
		return nil, fmt.Errorf("anilist show %d: not found", mediaID)
	}
	return &payload.Media, nil
}

// AiringWindow walks the paged airing schedule between start and end. Pages
// that keep failing after retries are skipped so one bad page cannot stall
// the whole schedule refresh.
func (c *Client) AiringWindow(ctx context.Context, start, end time.Time) ([]Airing, error) {
	var airings []Airing

	page := 1
	skipped := 0
	for {
		var payload struct {
			Page struct {
				PageInfo struct {
					HasNextPage bool `json:"hasNextPage"`
				} `json:"pageInfo"`
				AiringSchedules []struct {
					AiringAt int64 `json:"airingAt"`
					Episode  int   `json:"episode"`
					Media    Media `json:"media"`
				} `json:"airingSchedules"`
			} `json:"Page"`
		}

		vars := map[string]any{
			"page":  page,
			"start": start.Unix(),
			"end":   end.Unix(),
		}

		var err error
		for attempt := 1; attempt <= pageRetries; attempt++ {
			err = c.query(ctx, pagedAiringQuery, vars, &payload)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return airings, ctx.Err()
			}
			c.logger.Warn("airing schedule page failed",
				logging.Int("page", page),
				logging.Int("attempt", attempt),
				logging.Error(err))
		}
		if err != nil {
			skipped++
			if skipped >= maxSkippedPages {
				return airings, fmt.Errorf("airing schedule: %d consecutive pages failed: %w", skipped, err)
			}
			c.logger.Warn("skipping airing schedule page", logging.Int("page", page))
			page++
			continue
		}
		skipped = 0

		for _, entry := range payload.Page.AiringSchedules {
			airsAt := time.Unix(entry.AiringAt, 0).UTC()
			if entry.Media.Duration > 0 {
				airsAt = airsAt.Add(time.Duration(entry.Media.Duration) * time.Minute)
			}
			airings = append(airings, Airing{
				Media:   entry.Media,
				Episode: entry.Episode,
				AirsAt:  airsAt,
			})
		}

		if !payload.Page.PageInfo.HasNextPage {
			break
		}
		page++
	}

	return airings, nil
}

// Season lists media airing in the given season, for bulk import.
func (c *Client) Season(ctx context.Context, season string, year int) ([]Media, error) {
	season = strings.ToUpper(strings.TrimSpace(season))

	var media []Media
	page := 1
	for {
		var payload struct {
			Page struct {
				PageInfo struct {
					HasNextPage bool `json:"hasNextPage"`
				} `json:"pageInfo"`
				Media []Media `json:"media"`
			} `json:"Page"`
		}

		vars := map[string]any{
			"page":   page,
			"season": season,
			"year":   year,
		}
		if err := c.query(ctx, seasonQuery, vars, &payload); err != nil {
			return nil, fmt.Errorf("anilist season %s %d: %w", season, year, err)
		}

		media = append(media, payload.Page.Media...)
		if !payload.Page.PageInfo.HasNextPage {
			break
		}
		page++
	}

	return media, nil
}

func (c *Client) query(ctx context.Context, query string, vars map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	encoded, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
