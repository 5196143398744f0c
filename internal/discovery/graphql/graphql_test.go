package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coastline/webextract/internal/httpclient"
	"github.com/coastline/webextract/pkg/models"
)

func testClient(t *testing.T) models.HTTPClient {
	t.Helper()
	return httpclient.New(httpclient.Config{})
}

func TestProbeFindsGraphQLEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gqlResponse{Data: json.RawMessage(`{"__typename":"Query"}`)})
	}))
	defer srv.Close()

	endpoint, err := Probe(context.Background(), testClient(t), srv.URL)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	want := srv.URL + "/graphql"
	if endpoint != want {
		t.Errorf("Probe() = %q, want %q", endpoint, want)
	}
}

func TestProbeNoneFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := Probe(context.Background(), testClient(t), srv.URL); err == nil {
		t.Error("Probe() error = nil, want error when no endpoint matches")
	}
}

func TestDetectDisabled(t *testing.T) {
	env := &introspectionEnvelope{Errors: []gqlErrorDetail{{Message: "GraphQL introspection is disabled, but the query contained __schema"}}}
	ok, msg := detectDisabled(env)
	if !ok {
		t.Fatal("detectDisabled() = false, want true")
	}
	if msg == "" {
		t.Error("detectDisabled() message = \"\", want non-empty")
	}
}

func TestDetectPaginationRelay(t *testing.T) {
	schema := &models.ParsedGraphQLSchema{
		QueryTypeName: "Query",
		Types: map[string]models.GraphQLType{
			"Query": {
				Name: "Query",
				Kind: "OBJECT",
				Fields: []models.GraphQLField{
					{
						Name: "posts",
						Args: []models.GraphQLFieldArg{
							{Name: "first", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "Int"}},
							{Name: "after", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "String"}},
						},
					},
				},
			},
		},
	}
	if got := detectPagination(schema); got != models.PaginationRelay {
		t.Errorf("detectPagination() = %q, want %q", got, models.PaginationRelay)
	}
}

func TestDetectPaginationOffset(t *testing.T) {
	schema := &models.ParsedGraphQLSchema{
		QueryTypeName: "Query",
		Types: map[string]models.GraphQLType{
			"Query": {
				Name: "Query",
				Kind: "OBJECT",
				Fields: []models.GraphQLField{
					{
						Name: "posts",
						Args: []models.GraphQLFieldArg{
							{Name: "limit", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "Int"}},
							{Name: "offset", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "Int"}},
						},
					},
				},
			},
		},
	}
	if got := detectPagination(schema); got != models.PaginationOffset {
		t.Errorf("detectPagination() = %q, want %q", got, models.PaginationOffset)
	}
}

func postType() *models.GraphQLTypeRef {
	return &models.GraphQLTypeRef{Kind: "NON_NULL", OfType: &models.GraphQLTypeRef{Kind: "OBJECT", Name: "Post"}}
}

func testSchema() *models.ParsedGraphQLSchema {
	return &models.ParsedGraphQLSchema{
		QueryTypeName: "Query",
		Types: map[string]models.GraphQLType{
			"Query": {
				Name: "Query",
				Kind: "OBJECT",
				Fields: []models.GraphQLField{
					{
						Name: "post",
						Type: postType(),
						Args: []models.GraphQLFieldArg{
							{Name: "id", Type: &models.GraphQLTypeRef{Kind: "NON_NULL", OfType: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "ID"}}},
							{Name: "preview", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "Boolean"}},
						},
					},
				},
			},
			"Post": {
				Name: "Post",
				Kind: "OBJECT",
				Fields: []models.GraphQLField{
					{Name: "id", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "ID"}},
					{Name: "title", Type: &models.GraphQLTypeRef{Kind: "SCALAR", Name: "String"}},
				},
			},
		},
	}
}

func TestGeneratePatternsSplitsRequiredOptionalArgs(t *testing.T) {
	patterns := GeneratePatterns(testSchema())
	if len(patterns) != 1 {
		t.Fatalf("GeneratePatterns() returned %d patterns, want 1", len(patterns))
	}
	p := patterns[0]
	if len(p.RequiredArgs) != 1 || p.RequiredArgs[0] != "id" {
		t.Errorf("RequiredArgs = %v, want [id]", p.RequiredArgs)
	}
	if len(p.OptionalArgs) != 1 || p.OptionalArgs[0] != "preview" {
		t.Errorf("OptionalArgs = %v, want [preview]", p.OptionalArgs)
	}
	if !strings.Contains(p.QueryTemplate, "id title") {
		t.Errorf("QueryTemplate = %q, want selection containing \"id title\"", p.QueryTemplate)
	}
}

func TestGeneratePatternsSkipsUnparseableTemplate(t *testing.T) {
	schema := testSchema()
	q := schema.Types["Query"]
	q.Fields[0].Name = "bad name"
	schema.Types["Query"] = q

	patterns := GeneratePatterns(schema)
	if len(patterns) != 0 {
		t.Errorf("GeneratePatterns() returned %d patterns for an invalid field name, want 0", len(patterns))
	}
}
