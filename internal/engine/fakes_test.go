package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"airpost/internal/anilist"
	"airpost/internal/lemmy"
)

// fakePlatform records dispatched posts and comments and serves canned
// engagement snapshots keyed by url.
type fakePlatform struct {
	mu sync.Mutex

	nextPostID    int64
	nextCommentID int64

	posts      map[string]fakePost
	comments   map[string]string
	edits      map[string]int
	engagement map[string]lemmy.Engagement

	failCreatePost    bool
	failCreateComment bool
}

type fakePost struct {
	title string
	body  string
	nsfw  bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		posts:      make(map[string]fakePost),
		comments:   make(map[string]string),
		edits:      make(map[string]int),
		engagement: make(map[string]lemmy.Engagement),
	}
}

func (f *fakePlatform) CreatePost(_ context.Context, title, body string, nsfw bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreatePost {
		return "", errors.New("post rejected")
	}
	f.nextPostID++
	url := fmt.Sprintf("https://lemmy.test/post/%d", f.nextPostID)
	f.posts[url] = fakePost{title: title, body: body, nsfw: nsfw}
	return url, nil
}

func (f *fakePlatform) CreateComment(_ context.Context, postURL, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateComment {
		return "", errors.New("comment rejected")
	}
	if _, ok := f.posts[postURL]; !ok {
		return "", fmt.Errorf("unknown parent post %q", postURL)
	}
	f.nextCommentID++
	url := fmt.Sprintf("https://lemmy.test/comment/%d", f.nextCommentID)
	f.comments[url] = content
	return url, nil
}

func (f *fakePlatform) EditPost(_ context.Context, postURL, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[postURL]
	if !ok {
		return fmt.Errorf("unknown post %q", postURL)
	}
	post.body = body
	f.posts[postURL] = post
	f.edits[postURL]++
	return nil
}

func (f *fakePlatform) GetEngagement(_ context.Context, link string) (lemmy.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if engagement, ok := f.engagement[link]; ok {
		return engagement, nil
	}
	return lemmy.Engagement{}, nil
}

func (f *fakePlatform) setEngagement(link string, upvotes, comments int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engagement[link] = lemmy.Engagement{Upvotes: upvotes, Comments: comments}
}

func (f *fakePlatform) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakePlatform) commentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.comments)
}

// fakeMetadata serves a fixed airing schedule.
type fakeMetadata struct {
	airings []anilist.Airing
	err     error
}

func (f *fakeMetadata) AiringWindow(_ context.Context, _, _ time.Time) ([]anilist.Airing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.airings, nil
}
