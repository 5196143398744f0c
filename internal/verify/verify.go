// Package verify implements the Verification Engine (C8): a small set of
// built-in assertion kinds run against a candidate ContentResult, tiered
// into basic/standard/thorough run modes, aggregated into a single
// confidence score.
package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coastline/webextract/internal/pathexpr"
	"github.com/coastline/webextract/pkg/models"
)

// Run executes every check appropriate for mode against result and
// aggregates the outcome.
func Run(mode models.RunMode, checks []models.VerificationCheck, result *models.ContentResult, statusCode int) models.VerificationResult {
	var out models.VerificationResult
	var weightedSum, weightTotal float64
	failedHard := false

	for _, check := range checks {
		if !appliesToMode(mode, check) {
			continue
		}
		passed, msg := evaluate(check, result, statusCode)
		out.Checks = append(out.Checks, models.CheckOutcome{Check: check, Passed: passed, Message: msg})

		w := check.Severity.Weight()
		weightTotal += w
		if passed {
			weightedSum += w
		} else {
			if check.Severity == models.SeverityError || check.Severity == models.SeverityCritical {
				failedHard = true
				out.Errors = append(out.Errors, msg)
			} else {
				out.Warnings = append(out.Warnings, msg)
			}
			if check.Retryable {
				out.Retryable = true
			}
		}
	}

	if weightTotal > 0 {
		out.Confidence = weightedSum / weightTotal
	} else {
		out.Confidence = 1
	}
	out.Passed = !failedHard
	return out
}

func appliesToMode(mode models.RunMode, check models.VerificationCheck) bool {
	switch mode {
	case models.RunModeBasic:
		return check.Type == models.CheckAction
	case models.RunModeStandard:
		return check.Type == models.CheckAction || check.Type == models.CheckContent
	case models.RunModeThorough:
		return true
	default:
		return true
	}
}

func evaluate(check models.VerificationCheck, result *models.ContentResult, statusCode int) (bool, string) {
	switch check.Type {
	case models.CheckCustom:
		if check.Custom == nil {
			return false, fmt.Sprintf("custom check %q has no predicate", check.Assertion)
		}
		if check.Custom(result) {
			return true, ""
		}
		return false, fmt.Sprintf("custom check %q failed", check.Assertion)
	case models.CheckAction:
		return evaluateAction(check, statusCode)
	default:
		return evaluateContent(check, result)
	}
}

func evaluateAction(check models.VerificationCheck, statusCode int) (bool, string) {
	switch check.Assertion {
	case "statusCode":
		want, _ := check.Params["code"].(float64)
		if int(want) == statusCode {
			return true, ""
		}
		return false, fmt.Sprintf("statusCode: want %d, got %d", int(want), statusCode)
	default:
		return false, fmt.Sprintf("unknown action assertion %q", check.Assertion)
	}
}

func evaluateContent(check models.VerificationCheck, result *models.ContentResult) (bool, string) {
	switch check.Assertion {
	case "fieldExists":
		path, _ := check.Params["path"].(string)
		if fieldAt(result, path) != nil {
			return true, ""
		}
		return false, fmt.Sprintf("fieldExists(%s): not found", path)

	case "fieldNotEmpty":
		path, _ := check.Params["path"].(string)
		v := fieldAt(result, path)
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return true, ""
		}
		return false, fmt.Sprintf("fieldNotEmpty(%s): empty or missing", path)

	case "fieldMatches":
		path, _ := check.Params["path"].(string)
		pattern, _ := check.Params["pattern"].(string)
		v := fieldAt(result, path)
		s, ok := v.(string)
		if !ok {
			return false, fmt.Sprintf("fieldMatches(%s): not a string", path)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("fieldMatches(%s): invalid pattern %q", path, pattern)
		}
		if re.MatchString(s) {
			return true, ""
		}
		return false, fmt.Sprintf("fieldMatches(%s): %q does not match %q", path, s, pattern)

	case "minLength":
		n := intParam(check.Params, "n")
		if len(result.Content.Text) >= n {
			return true, ""
		}
		return false, fmt.Sprintf("minLength: text length %d < %d", len(result.Content.Text), n)

	case "maxLength":
		n := intParam(check.Params, "n")
		if len(result.Content.Text) <= n {
			return true, ""
		}
		return false, fmt.Sprintf("maxLength: text length %d > %d", len(result.Content.Text), n)

	case "containsText":
		s, _ := check.Params["s"].(string)
		if strings.Contains(result.Content.Text, s) {
			return true, ""
		}
		return false, fmt.Sprintf("containsText: %q not found", s)

	case "excludesText":
		s, _ := check.Params["s"].(string)
		if !strings.Contains(result.Content.Text, s) {
			return true, ""
		}
		return false, fmt.Sprintf("excludesText: %q unexpectedly present", s)

	default:
		return false, fmt.Sprintf("unknown content assertion %q", check.Assertion)
	}
}

func intParam(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func fieldAt(result *models.ContentResult, path string) interface{} {
	switch path {
	case "title":
		if result.Content.Title == "" {
			return nil
		}
		return result.Content.Title
	case "text":
		if result.Content.Text == "" {
			return nil
		}
		return result.Content.Text
	case "markdown":
		if result.Content.Markdown == "" {
			return nil
		}
		return result.Content.Markdown
	default:
		v, ok := pathexpr.Lookup(result.Content.Structured, path)
		if !ok {
			return nil
		}
		return v
	}
}
