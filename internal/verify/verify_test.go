package verify

import (
	"testing"

	"github.com/coastline/webextract/pkg/models"
)

func TestRunBasicOnlyRunsActionChecks(t *testing.T) {
	result := &models.ContentResult{Content: models.Content{Text: "hi"}}
	checks := []models.VerificationCheck{
		{Type: models.CheckAction, Assertion: "statusCode", Params: map[string]interface{}{"code": float64(200)}, Severity: models.SeverityError},
		{Type: models.CheckContent, Assertion: "minLength", Params: map[string]interface{}{"n": 100}, Severity: models.SeverityError},
	}

	got := Run(models.RunModeBasic, checks, result, 200)
	if len(got.Checks) != 1 {
		t.Fatalf("len(Checks) = %d, want 1 (action only)", len(got.Checks))
	}
	if !got.Passed {
		t.Errorf("Passed = false, want true")
	}
}

func TestRunStandardFailsOnErrorSeverity(t *testing.T) {
	result := &models.ContentResult{Content: models.Content{Text: "short"}}
	checks := []models.VerificationCheck{
		{Type: models.CheckContent, Assertion: "minLength", Params: map[string]interface{}{"n": 500}, Severity: models.SeverityError},
	}

	got := Run(models.RunModeStandard, checks, result, 200)
	if got.Passed {
		t.Error("Passed = true, want false when an error-severity check fails")
	}
	if len(got.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(got.Errors))
	}
}

func TestRunWarningDoesNotFailOverall(t *testing.T) {
	result := &models.ContentResult{Content: models.Content{Text: "short text"}}
	checks := []models.VerificationCheck{
		{Type: models.CheckContent, Assertion: "minLength", Params: map[string]interface{}{"n": 500}, Severity: models.SeverityWarning},
	}

	got := Run(models.RunModeStandard, checks, result, 200)
	if !got.Passed {
		t.Error("Passed = false, want true when only warning-severity checks fail")
	}
	if len(got.Warnings) != 1 {
		t.Errorf("len(Warnings) = %d, want 1", len(got.Warnings))
	}
}

func TestRunConfidenceWeighting(t *testing.T) {
	result := &models.ContentResult{Content: models.Content{Text: "hello world"}}
	checks := []models.VerificationCheck{
		{Type: models.CheckContent, Assertion: "containsText", Params: map[string]interface{}{"s": "hello"}, Severity: models.SeverityCritical},
		{Type: models.CheckContent, Assertion: "containsText", Params: map[string]interface{}{"s": "missing"}, Severity: models.SeverityWarning},
	}
	got := Run(models.RunModeThorough, checks, result, 200)
	want := 4.0 / 5.0
	if got.Confidence != want {
		t.Errorf("Confidence = %v, want %v", got.Confidence, want)
	}
}

func TestRunCustomCheck(t *testing.T) {
	result := &models.ContentResult{Content: models.Content{Title: "x"}}
	checks := []models.VerificationCheck{
		{Type: models.CheckCustom, Assertion: "titleStartsWithX", Severity: models.SeverityError,
			Custom: func(r *models.ContentResult) bool { return r.Content.Title == "x" }},
	}
	got := Run(models.RunModeThorough, checks, result, 200)
	if !got.Passed {
		t.Error("Passed = false, want true for a satisfied custom check")
	}
}

func TestValidateSchemaRequiredAndType(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"title", "count"},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"type": "string", "minLength": float64(1)},
			"count": map[string]interface{}{"type": "integer", "minimum": float64(0)},
		},
	}
	value := map[string]interface{}{"title": "", "count": float64(-1)}

	errs := ValidateSchema(schema, value)
	if len(errs) != 2 {
		t.Fatalf("ValidateSchema() len = %d, want 2 (minLength + minimum)", len(errs))
	}
}

func TestRunFieldExistsWithArrayIndex(t *testing.T) {
	result := &models.ContentResult{Content: models.Content{
		Structured: map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"name": "first"},
				map[string]interface{}{"name": "second"},
			},
		},
	}}
	checks := []models.VerificationCheck{
		{Type: models.CheckContent, Assertion: "fieldExists", Params: map[string]interface{}{"path": "items[1].name"}, Severity: models.SeverityError},
	}
	got := Run(models.RunModeStandard, checks, result, 200)
	if !got.Passed {
		t.Errorf("Passed = false, want true for an existing indexed path; checks=%+v", got.Checks)
	}
}

func TestValidateSchemaMissingRequired(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"id"},
	}
	errs := ValidateSchema(schema, map[string]interface{}{})
	if len(errs) != 1 || errs[0].Keyword != "required" {
		t.Errorf("ValidateSchema() = %+v, want one required error", errs)
	}
}
