package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// Reddit handles reddit.com/r/*/comments/* threads via Reddit's own
// `.json` suffix, which returns the listing + comment tree as JSON.
type Reddit struct{}

func NewReddit() *Reddit { return &Reddit{} }

func (r *Reddit) Name() string { return "site:reddit" }

func (r *Reddit) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return (host == "reddit.com" || strings.HasSuffix(host, ".reddit.com")) &&
		strings.Contains(u.Path, "/comments/")
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title    string `json:"title"`
				Selftext string `json:"selftext"`
				Author   string `json:"author"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *Reddit) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	jsonURL := strings.TrimSuffix(u.String(), "/") + ".json"
	resp, err := fetch(ctx, models.HTTPRequest{
		Method:  "GET",
		URL:     jsonURL,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: reddit fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var listings []redditListing
	if err := json.Unmarshal(resp.Body, &listings); err != nil || len(listings) == 0 {
		return nil, nil
	}
	if len(listings[0].Data.Children) == 0 {
		return nil, nil
	}
	post := listings[0].Data.Children[0].Data
	if post.Title == "" {
		return nil, nil
	}

	return &models.Content{
		Title:      post.Title,
		Text:       post.Selftext,
		Markdown:   post.Selftext,
		Structured: listings,
	}, nil
}
