package verify

import (
	"fmt"

	"github.com/coastline/webextract/pkg/models"
)

// ValidateSchema checks value against a JSON Schema Draft-07 subset:
// type, required, properties, items, minLength, maxLength, minimum,
// maximum, enum. It is intentionally narrow — just what thorough-mode
// content validation needs — not a general-purpose validator.
func ValidateSchema(schema map[string]interface{}, value interface{}) []models.SchemaError {
	var errs []models.SchemaError
	walk("$", schema, value, &errs)
	return errs
}

func walk(path string, schema map[string]interface{}, value interface{}, errs *[]models.SchemaError) {
	if schema == nil {
		return
	}

	if wantType, ok := schema["type"].(string); ok {
		if !matchesType(wantType, value) {
			*errs = append(*errs, models.SchemaError{Path: path, Keyword: "type", Message: fmt.Sprintf("expected %s", wantType)})
			return
		}
	}

	if enum, ok := schema["enum"].([]interface{}); ok {
		if !inEnum(enum, value) {
			*errs = append(*errs, models.SchemaError{Path: path, Keyword: "enum", Message: "value not in enum"})
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		if required, ok := schema["required"].([]interface{}); ok {
			for _, r := range required {
				name, _ := r.(string)
				if _, present := v[name]; !present {
					*errs = append(*errs, models.SchemaError{Path: path + "." + name, Keyword: "required", Message: "missing required property"})
				}
			}
		}
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			for name, sub := range props {
				subSchema, _ := sub.(map[string]interface{})
				if child, present := v[name]; present {
					walk(path+"."+name, subSchema, child, errs)
				}
			}
		}
	case []interface{}:
		if itemSchema, ok := schema["items"].(map[string]interface{}); ok {
			for i, item := range v {
				walk(fmt.Sprintf("%s[%d]", path, i), itemSchema, item, errs)
			}
		}
	case string:
		if minLen, ok := numberField(schema, "minLength"); ok && float64(len(v)) < minLen {
			*errs = append(*errs, models.SchemaError{Path: path, Keyword: "minLength", Message: "string shorter than minLength"})
		}
		if maxLen, ok := numberField(schema, "maxLength"); ok && float64(len(v)) > maxLen {
			*errs = append(*errs, models.SchemaError{Path: path, Keyword: "maxLength", Message: "string longer than maxLength"})
		}
	case float64:
		if min, ok := numberField(schema, "minimum"); ok && v < min {
			*errs = append(*errs, models.SchemaError{Path: path, Keyword: "minimum", Message: "value below minimum"})
		}
		if max, ok := numberField(schema, "maximum"); ok && v > max {
			*errs = append(*errs, models.SchemaError{Path: path, Keyword: "maximum", Message: "value above maximum"})
		}
	}
}

func numberField(schema map[string]interface{}, key string) (float64, bool) {
	v, ok := schema[key].(float64)
	return v, ok
}

func inEnum(enum []interface{}, value interface{}) bool {
	for _, e := range enum {
		if e == value {
			return true
		}
	}
	return false
}

func matchesType(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}
