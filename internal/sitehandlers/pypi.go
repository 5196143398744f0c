package sitehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// PyPI handles pypi.org/project/{name} via PyPI's JSON API.
type PyPI struct{}

func NewPyPI() *PyPI { return &PyPI{} }

func (p *PyPI) Name() string { return "site:pypi" }

func (p *PyPI) CanHandle(u *url.URL) bool {
	return u.Hostname() == "pypi.org" && strings.HasPrefix(u.Path, "/project/")
}

type pypiInfo struct {
	Info struct {
		Name        string `json:"name"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Version     string `json:"version"`
	} `json:"info"`
}

func (p *PyPI) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	name := strings.Trim(strings.TrimPrefix(u.Path, "/project/"), "/")
	if name == "" {
		return nil, nil
	}

	apiURL := fmt.Sprintf("https://pypi.org/pypi/%s/json", name)
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: apiURL})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: pypi fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var data pypiInfo
	if err := json.Unmarshal(resp.Body, &data); err != nil || data.Info.Name == "" {
		return nil, nil
	}

	body := data.Info.Description
	if body == "" {
		body = data.Info.Summary
	}

	return &models.Content{
		Title:      data.Info.Name + " " + data.Info.Version,
		Text:       body,
		Markdown:   body,
		Structured: data,
	}, nil
}
