package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/coastline/webextract/internal/logger"
	"github.com/coastline/webextract/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	uuidRe       = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	objectIDRe   = regexp.MustCompile(`(?i)\b[0-9a-f]{24}\b`)
	alphanumRe   = regexp.MustCompile(`\b[0-9a-zA-Z]{20,}\b`)
	numericIDRe  = regexp.MustCompile(`\b\d+\b`)
)

// placeholderPasses runs in precedence order: a segment already replaced by
// an earlier pass is skipped by later passes because it no longer matches
// their (narrower or disjoint) pattern.
var placeholderPasses = []struct {
	name string
	re   *regexp.Regexp
}{
	{"uuid", uuidRe},
	{"objectId", objectIDRe},
	{"token", alphanumRe},
	{"id", numericIDRe},
}

// generalizeURL replaces UUIDs, 24-hex Mongo ObjectIds, long alphanumeric
// tokens, and numeric ids with typed placeholders, in that precedence order
// (an earlier, more specific pass claims a segment before a later, broader
// one can).
func generalizeURL(rawURL string) (template string, extractors []models.VariableExtractor) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, nil
	}

	path := u.Path
	seen := 0
	for _, pass := range placeholderPasses {
		path = pass.re.ReplaceAllStringFunc(path, func(match string) string {
			seen++
			name := fmt.Sprintf("%s%d", pass.name, seen)
			extractors = append(extractors, models.VariableExtractor{
				Name:    name,
				Source:  models.SourcePath,
				Pattern: regexp.QuoteMeta(match),
				Group:   0,
			})
			return "{" + name + "}"
		})
	}

	u.Path = path
	// url.URL.String percent-encodes the placeholder braces; restore them so
	// urlTemplateToRegex can find the placeholders.
	return strings.NewReplacer("%7B", "{", "%7D", "}").Replace(u.String()), extractors
}

// DetectTemplateType implements § 4.4.5's heuristic for classifying a
// learned extraction event.
func DetectTemplateType(event models.ExtractionSuccessEvent, body interface{}) models.TemplateType {
	if event.Strategy == "api:graphql" {
		return models.TemplateQueryAPI
	}
	switch body.(type) {
	case []interface{}:
		return models.TemplateRESTListing
	case map[string]interface{}:
		if looksPaginated(body) {
			return models.TemplateRESTListing
		}
		if isUUIDOrIDPath(event.SourceURL) {
			return models.TemplateRESTResource
		}
	}
	if contentTypeIs(event.Headers, "xml") {
		return models.TemplateRSSFeed
	}
	return models.TemplateCustom
}

func looksPaginated(body interface{}) bool {
	m, ok := body.(map[string]interface{})
	if !ok {
		return false
	}
	for _, key := range []string{"items", "results", "data", "entries"} {
		if v, ok := m[key]; ok {
			if _, isArray := v.([]interface{}); isArray {
				return true
			}
		}
	}
	return false
}

func isUUIDOrIDPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return uuidRe.MatchString(u.Path) || objectIDRe.MatchString(u.Path) || numericIDRe.MatchString(u.Path)
}

func contentTypeIs(headers map[string]string, substr string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") && strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}

// Learn implements learnFromExtraction (§ 4.4.5): generalize the source
// URL, classify the template type, derive extractors, seed metrics, and
// persist the new pattern.
func (r *Registry) Learn(ctx context.Context, tenant string, event models.ExtractionSuccessEvent) (*models.LearnedPattern, error) {
	var body interface{}
	if event.Content.Structured != nil {
		body = event.Content.Structured
	} else if event.Content.Text != "" {
		_ = json.Unmarshal([]byte(event.Content.Text), &body)
	}

	template, extractors := generalizeURL(event.SourceURL)
	templateType := DetectTemplateType(event, body)

	now := time.Now().UnixMilli()
	p := &models.LearnedPattern{
		ID:               uuid.New().String(),
		Tenant:           tenant,
		TemplateType:     templateType,
		URLPatterns:      []string{urlTemplateToRegex(template)},
		EndpointTemplate: event.APIURL,
		Extractors:       extractors,
		Method:           methodOrGet(event.Method),
		Headers:          event.Headers,
		ResponseFormat:   models.FormatJSON,
		ContentMapping:   models.ContentMapping{Title: "title", Body: "body"},
		Metrics: models.PatternMetrics{
			SuccessCount:  1,
			RawConfidence: 0.5,
			Confidence:    0.5,
			LastSuccess:   now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.patterns[p.ID] = p
	r.mu.Unlock()

	if err := r.store.Set(ctx, patternNamespace+p.ID, p); err != nil {
		return nil, fmt.Errorf("patterns: persist learned pattern: %w", err)
	}
	logger.Info("patterns: learned new pattern",
		zap.String("id", p.ID), zap.String("templateType", string(templateType)))
	return p, nil
}

func urlTemplateToRegex(template string) string {
	escaped := regexp.QuoteMeta(template)
	escaped = strings.ReplaceAll(escaped, `\{`, "{")
	escaped = strings.ReplaceAll(escaped, `\}`, "}")
	placeholder := regexp.MustCompile(`\{[a-zA-Z0-9]+\}`)
	return "^" + placeholder.ReplaceAllString(escaped, `[^/]+`) + "$"
}

// DecayConfidence implements § 4.4.6: confidence = raw·exp(-λ·Δdays),
// deleting patterns whose decayed confidence is below 0.05 and whose last
// success is more than 30 days old. Patterns are not soft-retired: a
// low-confidence pattern that is not deleted stays in the registry and
// FindCandidates still returns it. It always recomputes from Metrics.RawConfidence
// — the undecayed value last set by RecordSuccess/RecordFailure — rather than
// decaying the previous call's output, so repeated calls don't compound.
func (r *Registry) DecayConfidence(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	var toDelete []string
	for id, p := range r.patterns {
		lastSuccess := time.UnixMilli(p.Metrics.LastSuccess)
		days := now.Sub(lastSuccess).Hours() / 24
		if days < 0 {
			days = 0
		}
		decayed := p.Metrics.RawConfidence * expNeg(decayLambda*days)
		p.Metrics.Confidence = decayed
		if decayed < 0.05 && days > 30 {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(r.patterns, id)
	}
	snapshot := make(map[string]*models.LearnedPattern, len(r.patterns))
	for id, p := range r.patterns {
		cp := *p
		snapshot[id] = &cp
	}
	r.mu.Unlock()

	for _, id := range toDelete {
		if err := r.store.Delete(ctx, patternNamespace+id); err != nil {
			return fmt.Errorf("patterns: delete retired pattern %s: %w", id, err)
		}
	}
	for id, p := range snapshot {
		if err := r.store.Set(ctx, patternNamespace+id, p); err != nil {
			return fmt.Errorf("patterns: persist decayed pattern %s: %w", id, err)
		}
	}
	return nil
}

func expNeg(x float64) float64 {
	return math.Exp(-x)
}
