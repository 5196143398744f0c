// Package openapi implements the OpenAPI/Swagger discovery path (C5.1):
// probing a fixed list of well-known spec paths, parsing with kin-openapi,
// and generating learned patterns from the result.
package openapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

// candidatePaths is the fixed, ordered probe list from § 4.5.1.
var candidatePaths = []string{
	"/openapi.json",
	"/swagger.json",
	"/v3/api-docs",
	"/api-docs",
	"/swagger/v1/swagger.json",
	"/openapi.yaml",
	"/swagger.yaml",
}

// Probe tries each candidate path against baseURL in order, returning the
// first 2xx response with a parseable spec.
func Probe(ctx context.Context, client models.HTTPClient, baseURL string) (specURL string, body []byte, err error) {
	base := strings.TrimRight(baseURL, "/")
	var lastErr error

	for _, path := range candidatePaths {
		url := base + path
		resp, reqErr := client.Do(ctx, models.HTTPRequest{
			Method: "GET",
			URL:    url,
			Headers: map[string]string{
				"Accept": "application/json, application/yaml, text/yaml",
			},
		})
		if reqErr != nil {
			lastErr = reqErr
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			continue
		}
		if _, _, parseErr := Parse(resp.Body, url); parseErr != nil {
			lastErr = parseErr
			continue
		}
		return url, resp.Body, nil
	}

	if lastErr != nil {
		return "", nil, fmt.Errorf("openapi: no spec found at any candidate path: %w", lastErr)
	}
	return "", nil, fmt.Errorf("openapi: no spec found at any candidate path")
}
