package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// DevTo handles dev.to/{user}/{slug} via the forem public articles API.
type DevTo struct{}

func NewDevTo() *DevTo { return &DevTo{} }

func (d *DevTo) Name() string { return "site:devto" }

func (d *DevTo) CanHandle(u *url.URL) bool {
	if u.Hostname() != "dev.to" {
		return false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	return len(segments) == 2 && segments[0] != "" && segments[1] != ""
}

type devtoArticle struct {
	Title     string `json:"title"`
	BodyHTML  string `json:"body_html"`
	BodyMD    string `json:"body_markdown"`
	Published bool   `json:"published"`
}

func (d *DevTo) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	user, slug := segments[0], segments[1]

	apiURL := fmt.Sprintf("https://dev.to/api/articles/%s/%s", user, slug)
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: apiURL})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: devto fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var a devtoArticle
	if err := json.Unmarshal(resp.Body, &a); err != nil || a.Title == "" {
		return nil, nil
	}

	return &models.Content{
		Title:      a.Title,
		Text:       a.BodyMD,
		Markdown:   a.BodyMD,
		Structured: a,
	}, nil
}
