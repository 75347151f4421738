// Package lemmy is a minimal client for the Lemmy HTTP API covering the
// operations the posting pipeline needs.
package lemmy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"airpost/internal/config"
	"airpost/internal/logging"
)

const (
	apiPrefix           = "/api/v3"
	defaultHTTPTimeout  = 10 * time.Second
	rateLimitRetryDelay = 2 * time.Second
)

// ErrNotAuthenticated indicates a write operation was attempted before or
// after a failed login.
var ErrNotAuthenticated = errors.New("lemmy: not authenticated")

// ErrRateLimited indicates the instance kept rejecting requests with 429
// after the in-call retry.
var ErrRateLimited = errors.New("lemmy: rate limited")

// Client talks to one Lemmy instance as one user. Login happens lazily on
// the first call that needs it; the JWT is kept for the rest of the run.
type Client struct {
	instance   string
	community  string
	username   string
	password   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	jwt         string
	communityID int64
}

// Option customizes the Lemmy client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API endpoint, bypassing the https://instance
// default.
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

// WithLimiter throttles every request through the given limiter. The
// limiter can be shared with other clients to enforce one global ceiling.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewClient constructs a client from the platform section of the config.
func NewClient(cfg config.Lemmy, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}

	client := &Client{
		instance:   cfg.Instance,
		community:  cfg.Community,
		username:   cfg.Username,
		password:   cfg.Password,
		baseURL:    "https://" + cfg.Instance,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Community returns the configured community name.
func (c *Client) Community() string {
	return c.community
}

// Engagement is the vote and comment count snapshot of a post or comment.
// For comments the comment count is the number of child replies.
type Engagement struct {
	Upvotes  int `json:"upvotes"`
	Comments int `json:"comments"`
}

// PrivateMessage is one direct message in the account's inbox.
type PrivateMessage struct {
	ID      int64
	Creator string
	Content string
	SentAt  time.Time
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	var resp struct {
		JWT string `json:"jwt"`
	}
	err := c.do(ctx, http.MethodPost, "/user/login", map[string]any{
		"username_or_email": c.username,
		"password":          c.password,
	}, nil, &resp)
	if err != nil {
		return fmt.Errorf("lemmy login: %w", err)
	}
	if resp.JWT == "" {
		return fmt.Errorf("lemmy login: %w", ErrNotAuthenticated)
	}
	c.jwt = resp.JWT
	c.logger.Debug("logged in", logging.String("instance", c.instance))
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	if c.jwt != "" {
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) resolveCommunity(ctx context.Context) (int64, error) {
	if c.communityID != 0 {
		return c.communityID, nil
	}

	var resp struct {
		CommunityView struct {
			Community struct {
				ID int64 `json:"id"`
			} `json:"community"`
		} `json:"community_view"`
	}
	query := url.Values{"name": {c.community}}
	if err := c.do(ctx, http.MethodGet, "/community", nil, query, &resp); err != nil {
		return 0, fmt.Errorf("resolve community %q: %w", c.community, err)
	}
	if resp.CommunityView.Community.ID == 0 {
		return 0, fmt.Errorf("resolve community %q: not found", c.community)
	}
	c.communityID = resp.CommunityView.Community.ID
	return c.communityID, nil
}

// CreatePost submits a post to the configured community and returns its
// shortlink.
func (c *Client) CreatePost(ctx context.Context, title, body string, nsfw bool) (string, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return "", err
	}
	communityID, err := c.resolveCommunity(ctx)
	if err != nil {
		return "", err
	}

	var resp postResponse
	err = c.do(ctx, http.MethodPost, "/post", map[string]any{
		"community_id": communityID,
		"name":         title,
		"body":         body,
		"nsfw":         nsfw,
	}, nil, &resp)
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	if resp.PostView.Post.ID == 0 {
		return "", errors.New("create post: empty response")
	}
	return c.PostShortlink(resp.PostView.Post.ID), nil
}

// EditPost replaces the body of an existing post identified by shortlink.
func (c *Client) EditPost(ctx context.Context, postURL, body string) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	id, err := idFromURL(postURL)
	if err != nil {
		return err
	}

	var resp postResponse
	err = c.do(ctx, http.MethodPut, "/post", map[string]any{
		"post_id": id,
		"body":    body,
	}, nil, &resp)
	if err != nil {
		return fmt.Errorf("edit post %d: %w", id, err)
	}
	return nil
}

// CreateComment posts a top-level comment under the post at postURL and
// returns the comment's shortlink.
func (c *Client) CreateComment(ctx context.Context, postURL, content string) (string, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return "", err
	}
	postID, err := idFromURL(postURL)
	if err != nil {
		return "", err
	}

	var resp commentResponse
	err = c.do(ctx, http.MethodPost, "/comment", map[string]any{
		"post_id": postID,
		"content": content,
	}, nil, &resp)
	if err != nil {
		return "", fmt.Errorf("create comment on post %d: %w", postID, err)
	}
	if resp.CommentView.Comment.ID == 0 {
		return "", errors.New("create comment: empty response")
	}
	return c.CommentShortlink(resp.CommentView.Comment.ID), nil
}

// EditComment replaces the content of an existing comment.
func (c *Client) EditComment(ctx context.Context, commentURL, content string) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	id, err := idFromURL(commentURL)
	if err != nil {
		return err
	}

	var resp commentResponse
	err = c.do(ctx, http.MethodPut, "/comment", map[string]any{
		"comment_id": id,
		"content":    content,
	}, nil, &resp)
	if err != nil {
		return fmt.Errorf("edit comment %d: %w", id, err)
	}
	return nil
}

// GetEngagement reads the current vote and comment counts for either a post
// or a comment shortlink.
func (c *Client) GetEngagement(ctx context.Context, link string) (Engagement, error) {
	switch {
	case IsPostURL(link):
		return c.postEngagement(ctx, link)
	case IsCommentURL(link):
		return c.commentEngagement(ctx, link)
	default:
		return Engagement{}, fmt.Errorf("url %q is neither post nor comment", link)
	}
}

func (c *Client) postEngagement(ctx context.Context, link string) (Engagement, error) {
	id, err := idFromURL(link)
	if err != nil {
		return Engagement{}, err
	}

	var resp struct {
		PostView struct {
			Counts struct {
				Upvotes  int `json:"upvotes"`
				Comments int `json:"comments"`
			} `json:"counts"`
		} `json:"post_view"`
	}
	query := url.Values{"id": {fmt.Sprint(id)}}
	if err := c.do(ctx, http.MethodGet, "/post", nil, query, &resp); err != nil {
		return Engagement{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return Engagement{
		Upvotes:  resp.PostView.Counts.Upvotes,
		Comments: resp.PostView.Counts.Comments,
	}, nil
}

func (c *Client) commentEngagement(ctx context.Context, link string) (Engagement, error) {
	id, err := idFromURL(link)
	if err != nil {
		return Engagement{}, err
	}

	var resp struct {
		CommentView struct {
			Counts struct {
				Upvotes    int `json:"upvotes"`
				ChildCount int `json:"child_count"`
			} `json:"counts"`
		} `json:"comment_view"`
	}
	query := url.Values{"id": {fmt.Sprint(id)}}
	if err := c.do(ctx, http.MethodGet, "/comment", nil, query, &resp); err != nil {
		return Engagement{}, fmt.Errorf("get comment %d: %w", id, err)
	}
	return Engagement{
		Upvotes:  resp.CommentView.Counts.Upvotes,
		Comments: resp.CommentView.Counts.ChildCount,
	}, nil
}

// UnreadPrivateMessages lists unread direct messages in the account inbox.
func (c *Client) UnreadPrivateMessages(ctx context.Context) ([]PrivateMessage, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		PrivateMessages []struct {
			PrivateMessage struct {
				ID        int64  `json:"id"`
				Content   string `json:"content"`
				Published string `json:"published"`
			} `json:"private_message"`
			Creator struct {
				Name string `json:"name"`
			} `json:"creator"`
		} `json:"private_messages"`
	}
	query := url.Values{"unread_only": {"true"}}
	if err := c.do(ctx, http.MethodGet, "/private_message/list", nil, query, &resp); err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}

	messages := make([]PrivateMessage, 0, len(resp.PrivateMessages))
	for _, entry := range resp.PrivateMessages {
		message := PrivateMessage{
			ID:      entry.PrivateMessage.ID,
			Creator: entry.Creator.Name,
			Content: entry.PrivateMessage.Content,
		}
		if sent, err := time.Parse(time.RFC3339, entry.PrivateMessage.Published); err == nil {
			message.SentAt = sent
		}
		messages = append(messages, message)
	}
	return messages, nil
}

type postResponse struct {
	PostView struct {
		Post struct {
			ID int64 `json:"id"`
		} `json:"post"`
	} `json:"post_view"`
}

type commentResponse struct {
	CommentView struct {
		Comment struct {
			ID int64 `json:"id"`
		} `json:"comment"`
	} `json:"comment_view"`
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any, query url.Values, out any) error {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		var body io.Reader
		if encoded != nil {
			body = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if c.jwt != "" {
			req.Header.Set("Authorization", "Bearer "+c.jwt)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt > 0 {
				return fmt.Errorf("http %d: %w", resp.StatusCode, ErrRateLimited)
			}
			c.logger.Warn("rate limited by instance, retrying",
				logging.String("path", path),
				logging.Duration("delay", rateLimitRetryDelay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rateLimitRetryDelay):
			}
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("http %d: %w", resp.StatusCode, ErrNotAuthenticated)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
}
