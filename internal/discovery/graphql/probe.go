// Package graphql implements the GraphQL discovery path (C5.2): endpoint
// probing, schema introspection, and query-pattern generation.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coastline/webextract/pkg/models"
)

var candidateEndpoints = []string{
	"/graphql",
	"/api/graphql",
	"/gql",
	"/query",
	"/v1/graphql",
}

type gqlRequest struct {
	Query string `json:"query"`
}

type gqlResponse struct {
	Data   json.RawMessage  `json:"data"`
	Errors []gqlErrorDetail `json:"errors"`
}

type gqlErrorDetail struct {
	Message string `json:"message"`
}

// Probe sends `{ __typename }` to each candidate endpoint in order; success
// is a 2xx response carrying either `data.__typename` or an errors array
// (both prove GraphQL semantics).
func Probe(ctx context.Context, client models.HTTPClient, baseURL string) (endpoint string, err error) {
	base := strings.TrimRight(baseURL, "/")
	body, _ := json.Marshal(gqlRequest{Query: "{ __typename }"})

	for _, path := range candidateEndpoints {
		url := base + path
		resp, reqErr := client.Do(ctx, models.HTTPRequest{
			Method:  "POST",
			URL:     url,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    body,
		})
		if reqErr != nil {
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			continue
		}
		var parsed gqlResponse
		if jsonErr := json.Unmarshal(resp.Body, &parsed); jsonErr != nil {
			continue
		}
		var data map[string]json.RawMessage
		hasTypename := json.Unmarshal(parsed.Data, &data) == nil && data["__typename"] != nil
		if hasTypename || len(parsed.Errors) > 0 {
			return url, nil
		}
	}

	return "", fmt.Errorf("graphql: no endpoint responded with graphql semantics")
}
