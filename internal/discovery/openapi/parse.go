package openapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/coastline/webextract/pkg/models"
)

// Parse normalizes a raw OpenAPI/Swagger document into a ParsedOpenAPISpec,
// resolving $refs via kin-openapi's own loader (which already performs
// cycle-safe resolution) and detecting the version family. OpenAPI 3.x
// documents are accepted as JSON or YAML; Swagger 2.0 documents are decoded
// as JSON only, so a YAML Swagger 2.0 document returns an error.
func Parse(raw []byte, specURL string) (*models.ParsedOpenAPISpec, *openapi3.T, error) {
	text := string(raw)
	if strings.Contains(text, `"swagger"`) || strings.Contains(text, "swagger:") && !strings.Contains(text, "openapi:") {
		return parseV2(raw, specURL)
	}
	return parseV3(raw, specURL)
}

func parseV3(raw []byte, specURL string) (*models.ParsedOpenAPISpec, *openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("openapi: parse v3 document: %w", err)
	}

	version := models.OpenAPIv30
	if strings.HasPrefix(doc.OpenAPI, "3.1") {
		version = models.OpenAPIv31
	}

	return normalize(doc, version, specURL), doc, nil
}

func parseV2(raw []byte, specURL string) (*models.ParsedOpenAPISpec, *openapi3.T, error) {
	var doc2 openapi2.T
	if err := doc2.UnmarshalJSON(raw); err != nil {
		return nil, nil, fmt.Errorf("openapi: parse v2 document: %w", err)
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, nil, fmt.Errorf("openapi: convert v2 to v3: %w", err)
	}

	return normalize(doc3, models.OpenAPIv2, specURL), doc3, nil
}

func normalize(doc *openapi3.T, version models.OpenAPIVersion, specURL string) *models.ParsedOpenAPISpec {
	spec := &models.ParsedOpenAPISpec{
		Version:      version,
		DiscoveredAt: time.Now().UnixMilli(),
		SpecURL:      specURL,
	}
	if doc.Info != nil {
		spec.Title = doc.Info.Title
	}
	if len(doc.Servers) > 0 {
		spec.BaseURL = doc.Servers[0].URL
	}

	if doc.Components != nil && len(doc.Components.SecuritySchemes) > 0 {
		spec.SecuritySchemes = make(map[string]interface{}, len(doc.Components.SecuritySchemes))
		for name, ref := range doc.Components.SecuritySchemes {
			if ref != nil && ref.Value != nil {
				spec.SecuritySchemes[name] = ref.Value.Type
			}
		}
	}

	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			ep := models.OpenAPIEndpoint{
				Path:        path,
				Method:      method,
				OperationID: op.OperationID,
				Deprecated:  op.Deprecated,
			}
			for _, p := range op.Parameters {
				if p.Value == nil {
					continue
				}
				ep.Parameters = append(ep.Parameters, models.OpenAPIParameter{
					Name:     p.Value.Name,
					In:       p.Value.In,
					Required: p.Value.Required,
				})
			}
			if op.RequestBody != nil && op.RequestBody.Value != nil {
				rb := &models.OpenAPIRequestBody{Required: op.RequestBody.Value.Required}
				rb.Content = make(map[string]map[string]interface{})
				for ct, mt := range op.RequestBody.Value.Content {
					if mt.Schema != nil && mt.Schema.Value != nil {
						rb.Content[ct] = schemaToMap(mt.Schema.Value)
					}
				}
				ep.RequestBody = rb
			}
			if op.Responses != nil {
				for status, respRef := range op.Responses.Map() {
					if respRef == nil || respRef.Value == nil {
						continue
					}
					var schema map[string]interface{}
					for _, mt := range respRef.Value.Content {
						if mt.Schema != nil && mt.Schema.Value != nil {
							schema = schemaToMap(mt.Schema.Value)
							break
						}
					}
					ep.Responses = append(ep.Responses, models.OpenAPIResponse{StatusCode: status, Schema: schema})
				}
			}
			spec.Endpoints = append(spec.Endpoints, ep)
		}
	}

	return spec
}

func schemaToMap(s *openapi3.Schema) map[string]interface{} {
	out := map[string]interface{}{}
	if len(s.Type.Slice()) > 0 {
		out["type"] = s.Type.Slice()[0]
	}
	if len(s.Required) > 0 {
		req := make([]interface{}, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		out["required"] = req
	}
	if len(s.Properties) > 0 {
		props := make(map[string]interface{}, len(s.Properties))
		for name, ref := range s.Properties {
			if ref != nil && ref.Value != nil {
				props[name] = schemaToMap(ref.Value)
			}
		}
		out["properties"] = props
	}
	return out
}
