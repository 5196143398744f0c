package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// NPM handles npmjs.com/package/{name} via the registry's package metadata
// endpoint, which already carries the README as markdown.
type NPM struct{}

func NewNPM() *NPM { return &NPM{} }

func (n *NPM) Name() string { return "site:npm" }

func (n *NPM) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "npmjs.com" && strings.HasPrefix(u.Path, "/package/")
}

type npmPackage struct {
	Name     string `json:"name"`
	Readme   string `json:"readme"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
}

func (n *NPM) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	name := strings.TrimPrefix(u.Path, "/package/")
	if name == "" {
		return nil, nil
	}

	apiURL := "https://registry.npmjs.org/" + name
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: apiURL})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: npm fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var pkg npmPackage
	if err := json.Unmarshal(resp.Body, &pkg); err != nil || pkg.Name == "" {
		return nil, nil
	}

	return &models.Content{
		Title:      pkg.Name + "@" + pkg.DistTags.Latest,
		Text:       pkg.Readme,
		Markdown:   pkg.Readme,
		Structured: pkg,
	}, nil
}
