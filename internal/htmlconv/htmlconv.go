// Package htmlconv renders HTML fragments to plain text and markdown,
// mirroring the goquery-based DOM walking the extraction engine already
// uses for selector-driven field extraction.
package htmlconv

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`[ \t\r\n]+`)

// ToText strips all markup and collapses whitespace into single spaces,
// trimming the result.
func ToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	raw := doc.Text()
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " ")), nil
}

// ToMarkdown renders a (reasonably well-formed) HTML fragment to markdown:
// headings become `#` runs, links become `[text](href)`, bold/italic become
// `**`/`*`, and list items become `- ` lines. Anything not recognized falls
// through to its text content.
func ToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, node *goquery.Selection) {
			if goquery.NodeName(node) == "#text" {
				b.WriteString(node.Text())
				return
			}
			writeNode(&b, node, walk)
		})
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	walk(body)

	text := b.String()
	text = regexp.MustCompile(`\n{3,}`).ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

func writeNode(b *strings.Builder, node *goquery.Selection, walk func(*goquery.Selection)) {
	switch goquery.NodeName(node) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(goquery.NodeName(node)[1] - '0')
		b.WriteString("\n" + strings.Repeat("#", level) + " ")
		walk(node)
		b.WriteString("\n\n")
	case "p", "div", "section", "article":
		b.WriteString("\n")
		walk(node)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "strong", "b":
		b.WriteString("**")
		walk(node)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		walk(node)
		b.WriteString("*")
	case "a":
		href, _ := node.Attr("href")
		b.WriteString("[")
		walk(node)
		b.WriteString("](" + href + ")")
	case "li":
		b.WriteString("\n- ")
		walk(node)
	case "ul", "ol":
		b.WriteString("\n")
		walk(node)
		b.WriteString("\n")
	case "code":
		b.WriteString("`")
		walk(node)
		b.WriteString("`")
	case "pre":
		b.WriteString("\n```\n")
		walk(node)
		b.WriteString("\n```\n")
	case "script", "style", "noscript":
		// dropped entirely
	default:
		walk(node)
	}
}
