package openapi

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/coastline/webextract/pkg/models"
)

const maxEndpointsPerSpec = 50

var pathParamRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// GeneratePatterns implements § 4.5.1's pattern-generation step, capped at
// maxEndpointsPerSpec and applying the endpoint skip rules.
func GeneratePatterns(spec *models.ParsedOpenAPISpec) []models.LearnedPattern {
	var patterns []models.LearnedPattern
	now := time.Now().UnixMilli()

	for _, ep := range spec.Endpoints {
		if len(patterns) >= maxEndpointsPerSpec {
			break
		}
		if shouldSkip(ep) {
			continue
		}

		pattern := models.LearnedPattern{
			ID:               uuid.New().String(),
			TemplateType:     models.TemplateOpenAPI,
			Method:           ep.Method,
			EndpointTemplate: spec.BaseURL + expandTemplate(ep.Path),
			ResponseFormat:   models.FormatJSON,
			URLPatterns:      []string{pathToRegex(spec.BaseURL, ep.Path)},
			Extractors:       pathExtractors(ep),
			ContentMapping:   inferContentMapping(ep),
			Validation: models.PatternValidation{
				RequiredFields:   topRequiredFields(ep, 5),
				MinContentLength: 20,
			},
			Metrics: models.PatternMetrics{
				SuccessCount: 100,
				Confidence:   0.9,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		patterns = append(patterns, pattern)
	}

	return patterns
}

func shouldSkip(ep models.OpenAPIEndpoint) bool {
	if ep.Deprecated {
		return true
	}
	if ep.Method == "GET" || ep.Method == "DELETE" {
		required := 0
		for _, p := range ep.Parameters {
			if p.Required && p.In != "header" {
				required++
			}
		}
		if required > 3 {
			return true
		}
	}
	if ep.Method == "POST" || ep.Method == "PUT" {
		if ep.RequestBody == nil || len(ep.RequestBody.Content) == 0 {
			return true
		}
	}
	return false
}

// expandTemplate converts OpenAPI's {param} syntax into the pattern
// engine's own {param} placeholder syntax (they already coincide).
func expandTemplate(path string) string {
	return path
}

func pathToRegex(baseURL, path string) string {
	full := baseURL + path
	parts := pathParamRe.Split(full, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, `[^/]+`) + "$"
}

func pathExtractors(ep models.OpenAPIEndpoint) []models.VariableExtractor {
	var extractors []models.VariableExtractor
	for _, m := range pathParamRe.FindAllStringSubmatch(ep.Path, -1) {
		name := m[1]
		extractors = append(extractors, models.VariableExtractor{
			Name:    name,
			Source:  models.SourcePath,
			Pattern: fmt.Sprintf(`/([^/]+)(?:/|$)`),
			Group:   1,
		})
	}
	return extractors
}

var titleFields = []string{"title", "name", "subject"}
var descriptionFields = []string{"description", "summary", "excerpt"}
var bodyFields = []string{"body", "content", "text"}

func inferContentMapping(ep models.OpenAPIEndpoint) models.ContentMapping {
	schema := responseSchema(ep, "200")
	if schema == nil {
		schema = responseSchema(ep, "201")
	}
	mapping := models.ContentMapping{}
	if schema == nil {
		return mapping
	}
	props, _ := schema["properties"].(map[string]interface{})
	mapping.Title = firstMatchingField(props, titleFields)
	mapping.Description = firstMatchingField(props, descriptionFields)
	mapping.Body = firstMatchingField(props, bodyFields)
	return mapping
}

func firstMatchingField(props map[string]interface{}, candidates []string) string {
	for _, c := range candidates {
		if _, ok := props[c]; ok {
			return c
		}
	}
	return ""
}

func responseSchema(ep models.OpenAPIEndpoint, status string) map[string]interface{} {
	for _, r := range ep.Responses {
		if r.StatusCode == status {
			return r.Schema
		}
	}
	return nil
}

func topRequiredFields(ep models.OpenAPIEndpoint, n int) []string {
	schema := responseSchema(ep, "200")
	if schema == nil {
		schema = responseSchema(ep, "201")
	}
	if schema == nil {
		return nil
	}
	req, _ := schema["required"].([]interface{})
	out := make([]string, 0, n)
	for i, r := range req {
		if i >= n {
			break
		}
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
