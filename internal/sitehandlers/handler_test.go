package sitehandlers

import (
	"context"
	"net/url"
	"testing"

	"github.com/coastline/webextract/pkg/models"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestCanHandleMatchesOwnDomainOnly(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
		url     string
		want    bool
	}{
		{"reddit thread", NewReddit(), "https://www.reddit.com/r/golang/comments/abc123/title/", true},
		{"reddit non-thread", NewReddit(), "https://www.reddit.com/r/golang/", false},
		{"hackernews item", NewHackerNews(), "https://news.ycombinator.com/item?id=123", true},
		{"hackernews front page", NewHackerNews(), "https://news.ycombinator.com/", false},
		{"github repo", NewGitHub(), "https://github.com/golang/go", true},
		{"github root", NewGitHub(), "https://github.com/", false},
		{"wikipedia article", NewWikipedia(), "https://en.wikipedia.org/wiki/Go_(programming_language)", true},
		{"wikipedia non-wiki path", NewWikipedia(), "https://en.wikipedia.org/w/index.php", false},
		{"stackoverflow question", NewStackOverflow(), "https://stackoverflow.com/questions/123/how-do-i", true},
		{"stackoverflow tag page", NewStackOverflow(), "https://stackoverflow.com/questions/tagged/go", false},
		{"npm package", NewNPM(), "https://www.npmjs.com/package/express", true},
		{"pypi project", NewPyPI(), "https://pypi.org/project/requests/", true},
		{"devto article", NewDevTo(), "https://dev.to/someuser/some-slug", true},
		{"devto homepage", NewDevTo(), "https://dev.to/", false},
		{"medium article", NewMedium(), "https://medium.com/some-pub/some-slug-abc123", true},
		{"youtube watch", NewYouTube(), "https://www.youtube.com/watch?v=abc123", true},
		{"youtube short link", NewYouTube(), "https://youtu.be/abc123", true},
		{"youtube channel", NewYouTube(), "https://www.youtube.com/channel/xyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := mustParse(t, tt.url)
			if got := tt.handler.CanHandle(u); got != tt.want {
				t.Errorf("%s.CanHandle(%q) = %v, want %v", tt.handler.Name(), tt.url, got, tt.want)
			}
		})
	}
}

func TestDispatchReturnsNilWhenNoHandlerMatches(t *testing.T) {
	r := Default()
	fetch := func(ctx context.Context, req models.HTTPRequest) (*models.HTTPResponse, error) {
		t.Fatal("fetch should not be called when no handler matches")
		return nil, nil
	}

	content, strategy, err := r.Dispatch(context.Background(), "https://example.com/some/random/page", fetch)
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want nil", err)
	}
	if content != nil {
		t.Errorf("Dispatch() content = %+v, want nil", content)
	}
	if strategy != "" {
		t.Errorf("Dispatch() strategy = %q, want empty", strategy)
	}
}

func TestDispatchInvokesMatchedHandler(t *testing.T) {
	r := Default()
	called := false
	fetch := func(ctx context.Context, req models.HTTPRequest) (*models.HTTPResponse, error) {
		called = true
		return &models.HTTPResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":1,"title":"Test HN post","text":"body","by":"alice"}`),
		}, nil
	}

	content, strategy, err := r.Dispatch(context.Background(), "https://news.ycombinator.com/item?id=1", fetch)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !called {
		t.Fatal("Dispatch() did not call fetch for a matched handler")
	}
	if strategy != "site:hackernews" {
		t.Errorf("Dispatch() strategy = %q, want %q", strategy, "site:hackernews")
	}
	if content == nil || content.Title != "Test HN post" {
		t.Errorf("Dispatch() content = %+v, want title %q", content, "Test HN post")
	}
}
