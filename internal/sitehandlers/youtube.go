package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// YouTube handles youtube.com/watch?v={id} and youtu.be/{id} via the
// unauthenticated oEmbed endpoint, which returns title/author without a key.
type YouTube struct{}

func NewYouTube() *YouTube { return &YouTube{} }

func (y *YouTube) Name() string { return "site:youtube" }

func (y *YouTube) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com":
		return u.Path == "/watch" && u.Query().Get("v") != ""
	case "youtu.be":
		return strings.Trim(u.Path, "/") != ""
	default:
		return false
	}
}

type youtubeOEmbed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (y *YouTube) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	oembedURL := "https://www.youtube.com/oembed?format=json&url=" + url.QueryEscape(u.String())
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: oembedURL})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: youtube fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var data youtubeOEmbed
	if err := json.Unmarshal(resp.Body, &data); err != nil || data.Title == "" {
		return nil, nil
	}

	text := fmt.Sprintf("%s\n\nBy %s", data.Title, data.AuthorName)
	return &models.Content{Title: data.Title, Text: text, Markdown: text, Structured: data}, nil
}
