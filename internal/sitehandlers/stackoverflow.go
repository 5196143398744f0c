package sitehandlers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/coastline/webextract/pkg/models"
)

// StackOverflow handles stackoverflow.com/questions/{id}/{slug} by parsing
// the question body and the top answer out of the rendered page.
type StackOverflow struct{}

func NewStackOverflow() *StackOverflow { return &StackOverflow{} }

func (s *StackOverflow) Name() string { return "site:stackoverflow" }

var soQuestionPathRe = regexp.MustCompile(`^/questions/\d+`)

func (s *StackOverflow) CanHandle(u *url.URL) bool {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "stackoverflow.com" && soQuestionPathRe.MatchString(u.Path)
}

func (s *StackOverflow) Extract(ctx context.Context, u *url.URL, fetch Fetch) (*models.Content, error) {
	resp, err := fetch(ctx, models.HTTPRequest{Method: "GET", URL: u.String()})
	if err != nil {
		return nil, fmt.Errorf("sitehandlers: stackoverflow fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, nil
	}

	title := strings.TrimSpace(doc.Find("h1[itemprop=name]").First().Text())
	if title == "" {
		return nil, nil
	}

	question := strings.TrimSpace(doc.Find(".question .s-prose").First().Text())
	topAnswer := strings.TrimSpace(doc.Find(".answer").First().Find(".s-prose").First().Text())

	var parts []string
	if question != "" {
		parts = append(parts, question)
	}
	if topAnswer != "" {
		parts = append(parts, "---\n"+topAnswer)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	text := strings.Join(parts, "\n\n")
	return &models.Content{Title: title, Text: text, Markdown: text}, nil
}
