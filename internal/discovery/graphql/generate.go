package graphql

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/coastline/webextract/pkg/models"
)

const maxSelectionDepth = 3

var scalarKinds = map[string]bool{"SCALAR": true, "ENUM": true}

// GeneratePatterns builds one GraphQLQueryPattern per query-type field,
// splitting required/optional args and generating a default field
// selection up to maxSelectionDepth deep, per § 4.5.2.
func GeneratePatterns(schema *models.ParsedGraphQLSchema) []models.GraphQLQueryPattern {
	queryType, ok := schema.Types[schema.QueryTypeName]
	if !ok {
		return nil
	}

	var patterns []models.GraphQLQueryPattern
	for _, f := range queryType.Fields {
		pattern := buildPattern(schema, models.GraphQLQuery, f)
		if _, err := parser.ParseQuery(&ast.Source{Input: pattern.QueryTemplate}); err != nil {
			continue
		}
		patterns = append(patterns, pattern)
	}

	if schema.MutationTypeName != "" {
		if mutType, ok := schema.Types[schema.MutationTypeName]; ok {
			for _, f := range mutType.Fields {
				pattern := buildPattern(schema, models.GraphQLMutation, f)
				if _, err := parser.ParseQuery(&ast.Source{Input: pattern.QueryTemplate}); err != nil {
					continue
				}
				patterns = append(patterns, pattern)
			}
		}
	}

	return patterns
}

func buildPattern(schema *models.ParsedGraphQLSchema, op models.GraphQLOperationType, f models.GraphQLField) models.GraphQLQueryPattern {
	var required, optional []string
	for _, a := range f.Args {
		if a.Type.IsNonNull() {
			required = append(required, a.Name)
		} else {
			optional = append(optional, a.Name)
		}
	}

	selection := selectionFor(schema, f.Type, 1, map[string]bool{})
	opKeyword := "query"
	if op == models.GraphQLMutation {
		opKeyword = "mutation"
	}

	var argList []string
	for _, a := range f.Args {
		argList = append(argList, fmt.Sprintf("$%s: %s", a.Name, typeRefToGraphQL(a.Type)))
	}
	var callArgs []string
	for _, a := range f.Args {
		callArgs = append(callArgs, fmt.Sprintf("%s: $%s", a.Name, a.Name))
	}

	argDecl := ""
	if len(argList) > 0 {
		argDecl = "(" + strings.Join(argList, ", ") + ")"
	}
	callArgDecl := ""
	if len(callArgs) > 0 {
		callArgDecl = "(" + strings.Join(callArgs, ", ") + ")"
	}

	template := fmt.Sprintf("%s %s%s {\n  %s%s%s\n}", opKeyword, f.Name, argDecl, f.Name, callArgDecl, selection)

	return models.GraphQLQueryPattern{
		OperationType:         op,
		QueryName:             f.Name,
		RequiredArgs:          required,
		OptionalArgs:          optional,
		QueryTemplate:         template,
		DefaultFieldSelection: selection,
		Confidence:            0.95,
	}
}

// selectionFor recursively builds a `{ ... }` selection set: scalars and
// enums are selected directly, object/interface/union types recurse up to
// maxSelectionDepth and then fall back to a terminal "id" field, and
// __typename is never added.
func selectionFor(schema *models.ParsedGraphQLSchema, ref *models.GraphQLTypeRef, depth int, visiting map[string]bool) string {
	if ref == nil {
		return ""
	}
	baseName := ref.BaseTypeName()
	t, ok := schema.Types[baseName]
	if !ok || scalarKinds[t.Kind] {
		return ""
	}
	if depth > maxSelectionDepth || visiting[baseName] {
		if hasIDField(t) {
			return " { id }"
		}
		return ""
	}

	visiting[baseName] = true
	defer delete(visiting, baseName)

	var fields []string
	for _, f := range t.Fields {
		if nested := selectionFor(schema, f.Type, depth+1, visiting); nested != "" {
			fields = append(fields, f.Name+nested)
		} else if fieldBaseIsScalar(schema, f.Type) {
			fields = append(fields, f.Name)
		}
	}
	if len(fields) == 0 {
		if hasIDField(t) {
			return " { id }"
		}
		return ""
	}
	return " { " + strings.Join(fields, " ") + " }"
}

func fieldBaseIsScalar(schema *models.ParsedGraphQLSchema, ref *models.GraphQLTypeRef) bool {
	name := ref.BaseTypeName()
	t, ok := schema.Types[name]
	if !ok {
		return true // built-in scalar (String, Int, ID, ...) not present in user types
	}
	return scalarKinds[t.Kind]
}

func typeRefToGraphQL(ref *models.GraphQLTypeRef) string {
	if ref == nil {
		return ""
	}
	switch ref.Kind {
	case "NON_NULL":
		return typeRefToGraphQL(ref.OfType) + "!"
	case "LIST":
		return "[" + typeRefToGraphQL(ref.OfType) + "]"
	default:
		return ref.Name
	}
}
