package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// HackerNews handles news.ycombinator.com/item?id=N via the public Firebase
// item API — no HTML scraping needed.
type HackerNews struct{}

func NewHackerNews() *HackerNews { return &HackerNews{} }

func (h *HackerNews) Name() string { return "site:hackernews" }

func (h *HackerNews) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "news.ycombinator.com" && strings.HasPrefix(u.Path, "/item")
}

type hnItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	By    string `json:"by"`
	URL   string `json:"url"`
	Kids  []int  `json:"kids"`
}

func (h *HackerNews) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	id := u.Query().Get("id")
	if id == "" {
		return nil, nil
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, nil
	}

	apiURL := fmt.Sprintf("https://hacker-news.firebaseio.com/v0/item/%s.json", id)
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: apiURL})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: hackernews fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var item hnItem
	if err := json.Unmarshal(resp.Body, &item); err != nil || item.Title == "" {
		return nil, nil
	}

	return &models.Content{
		Title:      item.Title,
		Text:       item.Text,
		Markdown:   item.Text,
		Structured: item,
	}, nil
}
