package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/coastline/webextract/pkg/models"
)

const introspectionQuery = `
query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      name
      kind
      fields {
        name
        type { ...TypeRef }
        args { name type { ...TypeRef } }
      }
    }
  }
}
fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
      }
    }
  }
}`

// reducedIntrospectionQuery omits nested args/ofType depth for servers that
// reject the full introspection document but still allow a shallow one.
const reducedIntrospectionQuery = `
query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types { name kind }
  }
}`

var introspectionDisabledRe = regexp.MustCompile(`(?i)introspection\s+is\s+disabled|introspection\s+is\s+not\s+allowed|not\s+allowed.*introspection`)

type introspectionEnvelope struct {
	Data   *introspectionData `json:"data"`
	Errors []gqlErrorDetail   `json:"errors"`
}

type introspectionData struct {
	Schema introspectionSchema `json:"__schema"`
}

type introspectionSchema struct {
	QueryType    *introspectionNamedRef `json:"queryType"`
	MutationType *introspectionNamedRef `json:"mutationType"`
	Types        []introspectionType    `json:"types"`
}

type introspectionNamedRef struct {
	Name string `json:"name"`
}

type introspectionType struct {
	Name   string               `json:"name"`
	Kind   string               `json:"kind"`
	Fields []introspectionField `json:"fields"`
}

type introspectionField struct {
	Name string                  `json:"name"`
	Type *models.GraphQLTypeRef  `json:"type"`
	Args []introspectionFieldArg `json:"args"`
}

type introspectionFieldArg struct {
	Name string                 `json:"name"`
	Type *models.GraphQLTypeRef `json:"type"`
}

// Introspect runs the canonical introspection query against endpoint,
// falling back to a reduced query, and detects introspection-disabled
// servers via their error message per § 4.5.2.
func Introspect(ctx context.Context, client models.HTTPClient, endpoint string) (*models.ParsedGraphQLSchema, error) {
	env, err := query(ctx, client, endpoint, introspectionQuery)
	if err != nil {
		return nil, err
	}
	if disabled, msg := detectDisabled(env); disabled {
		reducedEnv, rerr := query(ctx, client, endpoint, reducedIntrospectionQuery)
		if rerr != nil || reducedEnv.Data == nil {
			return &models.ParsedGraphQLSchema{
				Endpoint:              endpoint,
				IntrospectionDisabled: true,
				FetchedAt:             time.Now().UnixMilli(),
			}, nil
		}
		schema := normalize(endpoint, reducedEnv.Data)
		schema.IntrospectionDisabled = true
		_ = msg
		return schema, nil
	}
	if env.Data == nil {
		return nil, fmt.Errorf("graphql: introspection returned no data for %s", endpoint)
	}
	return normalize(endpoint, env.Data), nil
}

func query(ctx context.Context, client models.HTTPClient, endpoint, q string) (*introspectionEnvelope, error) {
	body, _ := json.Marshal(gqlRequest{Query: q})
	resp, err := client.Do(ctx, models.HTTPRequest{
		Method:  "POST",
		URL:     endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("graphql: introspection request: %w", err)
	}
	var env introspectionEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("graphql: decode introspection response: %w", err)
	}
	return &env, nil
}

func detectDisabled(env *introspectionEnvelope) (bool, string) {
	for _, e := range env.Errors {
		if introspectionDisabledRe.MatchString(e.Message) {
			return true, e.Message
		}
	}
	return false, ""
}

func normalize(endpoint string, data *introspectionData) *models.ParsedGraphQLSchema {
	schema := &models.ParsedGraphQLSchema{
		Endpoint:  endpoint,
		Types:     make(map[string]models.GraphQLType, len(data.Schema.Types)),
		FetchedAt: time.Now().UnixMilli(),
	}
	if data.Schema.QueryType != nil {
		schema.QueryTypeName = data.Schema.QueryType.Name
	}
	if data.Schema.MutationType != nil {
		schema.MutationTypeName = data.Schema.MutationType.Name
	}

	for _, t := range data.Schema.Types {
		if len(t.Name) >= 2 && t.Name[:2] == "__" {
			continue
		}
		gt := models.GraphQLType{Name: t.Name, Kind: t.Kind}
		for _, f := range t.Fields {
			field := models.GraphQLField{Name: f.Name, Type: f.Type}
			for _, a := range f.Args {
				field.Args = append(field.Args, models.GraphQLFieldArg{Name: a.Name, Type: a.Type})
			}
			gt.Fields = append(gt.Fields, field)
		}
		schema.Types[t.Name] = gt
		if t.Kind == "OBJECT" && hasIDField(gt) {
			schema.EntityTypes = append(schema.EntityTypes, t.Name)
		}
	}

	schema.PaginationPattern = detectPagination(schema)
	return schema
}

func hasIDField(t models.GraphQLType) bool {
	for _, f := range t.Fields {
		if f.Name == "id" {
			return true
		}
	}
	return false
}

// detectPagination inspects the query type's fields for relay/offset/cursor
// argument idioms per § 4.5.2.
func detectPagination(schema *models.ParsedGraphQLSchema) models.GraphQLPaginationPattern {
	queryType, ok := schema.Types[schema.QueryTypeName]
	if !ok {
		return models.PaginationNone
	}
	for _, f := range queryType.Fields {
		args := make(map[string]bool, len(f.Args))
		for _, a := range f.Args {
			args[a.Name] = true
		}
		switch {
		case args["first"] && (args["after"] || args["before"]):
			return models.PaginationRelay
		case args["limit"] && args["offset"]:
			return models.PaginationOffset
		case args["cursor"]:
			return models.PaginationCursor
		}
	}
	return models.PaginationNone
}
