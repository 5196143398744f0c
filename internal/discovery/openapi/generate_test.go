package openapi

import (
	"testing"

	"github.com/coastline/webextract/pkg/models"
)

func okEndpoint() models.OpenAPIEndpoint {
	return models.OpenAPIEndpoint{
		Path:   "/v1/posts/{id}",
		Method: "GET",
	}
}

func okRequiredParam() models.OpenAPIParameter {
	return models.OpenAPIParameter{Name: "x", In: "query", Required: true}
}

func TestShouldSkipDeprecated(t *testing.T) {
	ep := okEndpoint()
	ep.Deprecated = true
	if !shouldSkip(ep) {
		t.Error("shouldSkip() = false for deprecated endpoint, want true")
	}
}

func TestShouldSkipTooManyRequiredParams(t *testing.T) {
	ep := okEndpoint()
	ep.Method = "GET"
	ep.Parameters = nil
	for i := 0; i < 4; i++ {
		ep.Parameters = append(ep.Parameters, okRequiredParam())
	}
	if !shouldSkip(ep) {
		t.Error("shouldSkip() = false for GET with >3 required params, want true")
	}
}

func TestShouldSkipPostWithoutBody(t *testing.T) {
	ep := okEndpoint()
	ep.Method = "POST"
	ep.RequestBody = nil
	if !shouldSkip(ep) {
		t.Error("shouldSkip() = false for POST without request body, want true")
	}
}

func TestPathToRegexEscapesStaticSegmentsAndPlaceholders(t *testing.T) {
	got := pathToRegex("https://api.example.com", "/v1/posts/{id}")
	want := `^https://api\.example\.com/v1/posts/[^/]+$`
	if got != want {
		t.Errorf("pathToRegex() = %q, want %q", got, want)
	}
}
