package sitehandlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/coastline/webextract/pkg/models"
)

// Medium handles medium.com/{pub}/{slug} and {name}.medium.com/{slug} by
// parsing the rendered article body — Medium exposes no stable public API.
type Medium struct{}

func NewMedium() *Medium { return &Medium{} }

func (m *Medium) Name() string { return "site:medium" }

func (m *Medium) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "medium.com" || strings.HasSuffix(host, ".medium.com")
}

func (m *Medium) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: u.String()})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: medium fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, nil
	}

	title := strings.TrimSpace(doc.Find("article h1").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("article p, article h2, article h3").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return nil, nil
	}

	text := strings.Join(paragraphs, "\n\n")
	return &models.Content{Title: title, Text: text, Markdown: text}, nil
}
