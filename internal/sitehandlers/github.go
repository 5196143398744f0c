package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// GitHub handles github.com/{owner}/{repo} via the REST API's repo endpoint.
type GitHub struct{}

func NewGitHub() *GitHub { return &GitHub{} }

func (g *GitHub) Name() string { return "site:github" }

func (g *GitHub) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != "github.com" {
		return false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	return len(segments) >= 2 && segments[0] != "" && segments[1] != ""
}

type githubRepo struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	StarCount   int    `json:"stargazers_count"`
	Language    string `json:"language"`
	HTMLURL     string `json:"html_url"`
}

func (g *GitHub) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	owner, repo := segments[0], segments[1]

	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s", owner, repo)
	resp, err := fetch(ctx, models.HTTPRequest{
		Method:  "GET",
		URL:     apiURL,
		Headers: map[string]string{"Accept": "application/vnd.github+json"},
	})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: github fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var r githubRepo
	if err := json.Unmarshal(resp.Body, &r); err != nil || r.FullName == "" {
		return nil, nil
	}

	text := r.Description
	if r.Language != "" {
		text = fmt.Sprintf("%s\n\nLanguage: %s · Stars: %d", text, r.Language, r.StarCount)
	}

	return &models.Content{
		Title:      r.FullName,
		Text:       text,
		Markdown:   text,
		Structured: r,
	}, nil
}
