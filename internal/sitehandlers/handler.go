// Package sitehandlers implements the Site Handler Dispatch component (C6):
// a uniform façade over per-site handlers, each owning its own host/path
// match and its own extraction idiom (JSON endpoint or goquery selection).
package sitehandlers

import (
	"context"
	"net/url"

	"github.com/coastline/webextract/pkg/models"
)

// Fetch is the pooled, cookie-carrying request function handlers receive —
// they never construct their own HTTP client.
type Fetch func(ctx context.Context, req models.HTTPRequest) (*models.HTTPResponse, error)

// Handler is the C6 capability set: canHandle/extract. A handler must never
// panic or return an error for "not matched" — it returns a nil result.
type Handler interface {
	Name() string
	CanHandle(u *url.URL) bool
	Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error)
}

// Registry holds the ordered handler list; dispatch stops at the first
// handler whose CanHandle matches, mirroring the orchestrator's
// "domains are mutually exclusive by construction" rule.
type Registry struct {
	handlers []Handler
}

// Default returns a Registry pre-populated with the full concrete handler
// set in the teacher-sketched order.
func Default() *Registry {
	return &Registry{handlers: []Handler{
		NewReddit(),
		NewHackerNews(),
		NewGitHub(),
		NewWikipedia(),
		NewStackOverflow(),
		NewNPM(),
		NewPyPI(),
		NewDevTo(),
		NewMedium(),
		NewYouTube(),
	}}
}

// Dispatch finds the first matching handler and invokes it. It returns
// (nil, nil) when no handler matches at all, and (nil, err) when the
// matched handler's own extraction failed transiently.
func (r *Registry) Dispatch(ctx context.Context, rawURL string, fetch Fetch) (*models.Content, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", nil
	}
	for _, h := range r.handlers {
		if !h.CanHandle(u) {
			continue
		}
		content, err := h.Extract(ctx, u, fetch)
		if err != nil {
			return nil, h.Name(), err
		}
		return content, h.Name(), nil
	}
	return nil, "", nil
}
