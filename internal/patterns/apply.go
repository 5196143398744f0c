package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/coastline/webextract/internal/htmlconv"
	"github.com/coastline/webextract/internal/pathexpr"
	"github.com/coastline/webextract/pkg/models"
)

// ExtractorError is returned when a required extractor fails to produce a
// value; the caller abandons this candidate and tries the next one.
type ExtractorError struct {
	Extractor string
	Reason    string
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("patterns: extractor %q: %s", e.Extractor, e.Reason)
}

// ResolveExtractors runs every VariableExtractor in p against candidateURL
// and returns the named values. An extractor is "required" when its name
// appears as a `{name}` placeholder in p.EndpointTemplate; a required
// extractor's failure aborts the whole resolution.
func ResolveExtractors(p *models.LearnedPattern, candidateURL string, headers map[string]string, body []byte) (map[string]string, error) {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return nil, fmt.Errorf("patterns: parse candidate url: %w", err)
	}

	values := make(map[string]string, len(p.Extractors))
	for _, ex := range p.Extractors {
		val, ok, err := resolveOne(ex, u, headers, body)
		required := strings.Contains(p.EndpointTemplate, "{"+ex.Name+"}")
		if err != nil {
			if required {
				return nil, &ExtractorError{Extractor: ex.Name, Reason: err.Error()}
			}
			continue
		}
		if !ok || val == "" {
			if required {
				return nil, &ExtractorError{Extractor: ex.Name, Reason: "empty result"}
			}
			continue
		}
		values[ex.Name] = val
	}
	return values, nil
}

func resolveOne(ex models.VariableExtractor, u *url.URL, headers map[string]string, body []byte) (string, bool, error) {
	var source string
	switch ex.Source {
	case models.SourcePath:
		source = u.Path
	case models.SourceQuery:
		source = u.RawQuery
	case models.SourceHost:
		source = u.Hostname()
	case models.SourceHash:
		source = u.Fragment
	case models.SourceHeader:
		v, ok := headers[ex.HeaderName]
		if !ok {
			return "", false, nil
		}
		source = v
	case models.SourceBody:
		source = string(body)
	default:
		return "", false, nil
	}

	re, err := regexp.Compile(ex.Pattern)
	if err != nil {
		return "", false, fmt.Errorf("compile pattern: %w", err)
	}
	match := re.FindStringSubmatch(source)
	if match == nil {
		return "", false, nil
	}

	group := ex.Group
	if group == 0 {
		group = 1
	}
	if group >= len(match) {
		return "", false, fmt.Errorf("group %d out of range", group)
	}
	val := match[group]

	switch ex.Transform {
	case models.TransformLowercase:
		val = strings.ToLower(val)
	case models.TransformUppercase:
		val = strings.ToUpper(val)
	case models.TransformURLEncode:
		val = url.QueryEscape(val)
	case models.TransformURLDecode:
		if decoded, err := url.QueryUnescape(val); err == nil {
			val = decoded
		}
	}
	return val, true, nil
}

// ExpandEndpoint substitutes resolved extractor values into p.EndpointTemplate.
func ExpandEndpoint(p *models.LearnedPattern, values map[string]string) string {
	out := p.EndpointTemplate
	for name, val := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out
}

// ClassifyHTTPError maps a status code to the closed failure vocabulary.
func ClassifyHTTPError(statusCode int) models.FailureCategory {
	switch {
	case statusCode == 429:
		return models.CategoryRateLimited
	case statusCode == 401 || statusCode == 403:
		return models.CategoryAuthRequired
	case statusCode == 404 || statusCode == 410:
		return models.CategoryWrongEndpoint
	case statusCode >= 500:
		return models.CategoryServerError
	default:
		return models.CategoryUnknown
	}
}

// ApplyResult is the outcome of applying one LearnedPattern to a URL.
type ApplyResult struct {
	Content      models.Content
	ResponseMs   int64
	Category     models.FailureCategory // set only when the apply failed
}

// Apply runs § 4.4.3's full pattern-application flow: resolve extractors,
// dispatch, classify, parse, map, and validate.
func Apply(ctx context.Context, httpClient models.HTTPClient, p *models.LearnedPattern, candidateURL string) (*ApplyResult, error) {
	values, err := ResolveExtractors(p, candidateURL, nil, nil)
	if err != nil {
		return nil, err
	}
	endpoint := ExpandEndpoint(p, values)

	headers := make(map[string]string, len(p.Headers)+1)
	for k, v := range p.Headers {
		headers[k] = v
	}
	if accept := acceptHeaderFor(p.ResponseFormat); accept != "" {
		headers["Accept"] = accept
	}

	start := time.Now()
	resp, err := httpClient.Do(ctx, models.HTTPRequest{
		Method:  methodOrGet(p.Method),
		URL:     endpoint,
		Headers: headers,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &ApplyResult{ResponseMs: elapsed, Category: models.CategoryTimeout}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ApplyResult{ResponseMs: elapsed, Category: ClassifyHTTPError(resp.StatusCode)}, fmt.Errorf("patterns: apply %s: status %d", endpoint, resp.StatusCode)
	}

	content, category, err := buildContent(p, resp.Body)
	if err != nil {
		return &ApplyResult{ResponseMs: elapsed, Category: category}, err
	}

	if len(content.Text) < p.Validation.MinContentLength {
		return &ApplyResult{ResponseMs: elapsed, Category: models.CategoryEmpty}, fmt.Errorf("patterns: content shorter than minContentLength")
	}

	return &ApplyResult{Content: content, ResponseMs: elapsed}, nil
}

func acceptHeaderFor(f models.ResponseFormat) string {
	switch f {
	case models.FormatJSON:
		return "application/json"
	case models.FormatXML:
		return "application/xml"
	case models.FormatHTML:
		return "text/html"
	default:
		return ""
	}
}

func methodOrGet(m string) string {
	if m == "" {
		return "GET"
	}
	return m
}

func buildContent(p *models.LearnedPattern, body []byte) (models.Content, models.FailureCategory, error) {
	var doc interface{}
	switch p.ResponseFormat {
	case models.FormatJSON, "":
		if err := json.Unmarshal(body, &doc); err != nil {
			return models.Content{}, models.CategoryParseError, fmt.Errorf("patterns: parse json body: %w", err)
		}
	default:
		doc = string(body)
	}

	for _, field := range p.Validation.RequiredFields {
		if _, ok := pathexpr.Lookup(doc, field); !ok {
			return models.Content{}, models.CategorySchemaMismatch, fmt.Errorf("patterns: missing required field %q", field)
		}
	}

	title := stringAt(doc, p.ContentMapping.Title)
	description := stringAt(doc, p.ContentMapping.Description)
	rawBody := stringAt(doc, p.ContentMapping.Body)
	if rawBody == "" {
		rawBody = description
	}

	text := rawBody
	markdown := rawBody
	if looksLikeHTML(rawBody) {
		if t, err := htmlconv.ToText(rawBody); err == nil {
			text = t
		}
		if m, err := htmlconv.ToMarkdown(rawBody); err == nil {
			markdown = m
		}
	}

	return models.Content{
		Title:    title,
		Text:     text,
		Markdown: markdown,
	}, "", nil
}

func looksLikeHTML(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "<")
}

func stringAt(doc interface{}, path string) string {
	v, ok := pathexpr.Lookup(doc, path)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
