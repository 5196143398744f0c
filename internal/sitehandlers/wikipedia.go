package sitehandlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/coastline/webextract/pkg/models"
)

// Wikipedia handles {lang}.wikipedia.org/wiki/{title} by parsing the
// rendered article body out of #mw-content-text.
type Wikipedia struct{}

func NewWikipedia() *Wikipedia { return &Wikipedia{} }

func (w *Wikipedia) Name() string { return "site:wikipedia" }

func (w *Wikipedia) CanHandle(u *url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".wikipedia.org") && strings.HasPrefix(u.Path, "/wiki/")
}

func (w *Wikipedia) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: u.String()})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: wikipedia fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, nil
	}

	title := strings.TrimSpace(doc.Find("h1#firstHeading").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("#mw-content-text .mw-parser-output > p").Each(func(i int, s *goquery.Selection) {
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
