package lemmy

import (
	"fmt"
	"strconv"
	"strings"
)

// IsPostURL reports whether the url points at a post rather than a comment.
func IsPostURL(url string) bool {
	return secondToLastSegment(url) == "post"
}

// IsCommentURL reports whether the url points at a comment.
func IsCommentURL(url string) bool {
	return secondToLastSegment(url) == "comment"
}

func secondToLastSegment(url string) string {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

func idFromURL(url string) (int64, error) {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id from %q: %w", url, err)
	}
	return id, nil
}

// hostInstance is where shortlinks resolve. Posts land on the community's
// home instance when the community is federated (name@host).
func (c *Client) hostInstance() string {
	if at := strings.LastIndex(c.community, "@"); at != -1 {
		return c.community[at+1:]
	}
	return c.instance
}

// PostShortlink builds the canonical url for a post id.
func (c *Client) PostShortlink(id int64) string {
	return fmt.Sprintf("https://%s/post/%d", c.hostInstance(), id)
}

// CommentShortlink builds the canonical url for a comment id.
func (c *Client) CommentShortlink(id int64) string {
	return fmt.Sprintf("https://%s/comment/%d", c.hostInstance(), id)
}
