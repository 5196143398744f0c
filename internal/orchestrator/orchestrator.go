// Package orchestrator implements the Strategy Orchestrator (C7): the
// canonical strategy chain, budget/cost-tier gating, candidate validation,
// and cross-strategy failure semantics.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/coastline/webextract/internal/patterns"
	"github.com/coastline/webextract/internal/sitehandlers"
	"github.com/coastline/webextract/internal/verify"
	"github.com/coastline/webextract/pkg/models"
)

// strategyFunc is § 4.7.1's per-strategy contract: it may return a nil
// result (not applicable), an error (transient, caught by the caller), or a
// populated Content.
type strategyFunc func(ctx context.Context, o *Orchestrator, u *url.URL, opts models.ExtractOptions) (*models.Content, error)

type strategy struct {
	name string
	tier models.CostTier
	// estimatedMs feeds both Preview and the maxLatencyMs skip rule.
	estimatedMs int64
	run         strategyFunc
}

// Orchestrator holds the fixed strategy chain and the collaborators each
// strategy is built against.
type Orchestrator struct {
	rc      *models.RuntimeContext
	chain   []strategy
	sites   *sitehandlers.Registry
	fetch   sitehandlers.Fetch
}

// New builds an Orchestrator wired to rc's collaborators.
func New(rc *models.RuntimeContext) *Orchestrator {
	o := &Orchestrator{rc: rc, sites: sitehandlers.Default()}
	o.fetch = func(ctx context.Context, req models.HTTPRequest) (*models.HTTPResponse, error) {
		return o.rc.HTTP.Do(ctx, req)
	}
	o.chain = []strategy{
		{"site-handlers", models.TierLightweight, 300, siteHandlerStrategy},
		{"learned-patterns", models.TierIntelligence, 200, learnedPatternStrategy},
		{"framework-extraction", models.TierIntelligence, 150, frameworkExtractionStrategy},
		{"structured-data", models.TierIntelligence, 100, structuredDataStrategy},
		{"static-parse", models.TierIntelligence, 150, staticParseStrategy},
		{"predicted-api", models.TierIntelligence, 250, predictedAPIStrategy},
		{"openapi-discovery", models.TierLightweight, 800, openAPIDiscoveryStrategy},
		{"graphql-discovery", models.TierLightweight, 800, graphQLDiscoveryStrategy},
		{"google-cache", models.TierLightweight, 500, googleCacheStrategy},
		{"archive-org", models.TierLightweight, 600, archiveOrgStrategy},
		{"render:headless", models.TierPlaywright, 4000, headlessRendererStrategy},
	}
	return o
}

// Extract runs § 4.7's canonical chain and returns a ContentResult for every
// URL that parses; an unparsable URL yields a nil result and an error.
func (o *Orchestrator) Extract(ctx context.Context, rawURL string, opts models.ExtractOptions) (*models.ContentResult, error) {
	start := time.Now()
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: invalid url: %w", err)
	}
	domain := u.Hostname()

	var traceID string
	if o.rc.Trace != nil {
		traceID = o.rc.Trace.Start(ctx, rawURL)
	}

	tenant := o.tenant(opts)

	if o.rc.Patterns != nil {
		for _, category := range permanentCategories {
			if ap, suppressed := o.rc.Patterns.IsSuppressed(ctx, tenant, domain, category); suppressed {
				result := &models.ContentResult{
					Meta: models.ResultMeta{URL: rawURL, FinalURL: rawURL, Confidence: models.ConfidenceLow},
					Error: "Domain suppressed: " + ap.Reason,
				}
				o.finish(traceID, result)
				return result, nil
			}
		}
	}

	var attempted []string
	var warnings []string
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, strat := range o.chain {
		if !o.shouldRun(strat, opts, start) {
			continue
		}
		attempted = append(attempted, strat.name)
		attemptStart := time.Now()
		content, err := strat.run(ctx, o, u, opts)
		attemptDuration := time.Since(attemptStart).Milliseconds()

		if err != nil {
			o.recordTrace(traceID, strat.name, "tier_attempt", map[string]interface{}{
				"success":    false,
				"durationMs": attemptDuration,
			})
			category := classifyStrategyError(err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", strat.name, err))
			o.recordTrace(traceID, strat.name, "error", map[string]interface{}{"category": string(category)})
			o.maybeRecordFailure(ctx, tenant, strat.name, domain, rawURL, category)
			if opts.ForceStrategy != "" {
				break
			}
			continue
		}
		if content == nil {
			o.recordTrace(traceID, strat.name, "tier_attempt", map[string]interface{}{
				"success":    false,
				"durationMs": attemptDuration,
			})
			continue
		}
		o.recordTrace(traceID, strat.name, "tier_attempt", map[string]interface{}{
			"success":    true,
			"durationMs": attemptDuration,
		})

		result := &models.ContentResult{
			Content: *content,
			Meta: models.ResultMeta{
				URL:                 rawURL,
				FinalURL:            rawURL,
				Strategy:            strat.name,
				StrategiesAttempted: attempted,
				TimingMs:            time.Since(start).Milliseconds(),
			},
			Warnings: warnings,
		}

		if accepted, vr := o.validate(content, opts); accepted {
			result.Meta.Confidence = bucketConfidence(vr.Confidence)
			o.onAccept(ctx, strat.name, rawURL, result, opts)
			o.finish(traceID, result)
			return result, nil
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: candidate rejected (confidence %.2f)", strat.name, vr.Confidence))
			if opts.ForceStrategy != "" {
				result.Error = "candidate failed verification"
				result.Meta.Confidence = models.ConfidenceLow
				o.finish(traceID, result)
				return result, nil
			}
		}
	}

	result := &models.ContentResult{
		Meta: models.ResultMeta{
			URL:                 rawURL,
			FinalURL:            rawURL,
			StrategiesAttempted: attempted,
			TimingMs:            time.Since(start).Milliseconds(),
			Confidence:          models.ConfidenceLow,
		},
		Warnings: warnings,
		Error:    "all strategies exhausted",
	}
	o.finish(traceID, result)
	return result, nil
}

var permanentCategories = []models.FailureCategory{
	models.CategoryBlocked,
	models.CategoryWrongEndpoint,
	models.CategorySchemaMismatch,
}

// shouldRun applies § 4.7.2's selection rules.
func (o *Orchestrator) shouldRun(s strategy, opts models.ExtractOptions, start time.Time) bool {
	if opts.ForceStrategy != "" {
		return s.name == opts.ForceStrategy
	}
	for _, skip := range opts.SkipStrategies {
		if skip == s.name {
			return false
		}
	}
	if s.tier == models.TierPlaywright && !opts.AllowBrowser {
		return false
	}
	if !opts.MaxCostTier.Allows(s.tier) {
		return false
	}
	if opts.MaxLatencyMs > 0 {
		elapsed := time.Since(start).Milliseconds()
		if elapsed+s.estimatedMs > opts.MaxLatencyMs {
			return false
		}
	}
	return true
}

func (o *Orchestrator) validate(content *models.Content, opts models.ExtractOptions) (bool, models.VerificationResult) {
	minLen := opts.EffectiveMinContentLength()
	if len(content.Text) < minLen {
		return false, models.VerificationResult{}
	}
	if !opts.Verify.Enabled {
		return true, models.VerificationResult{Passed: true, Confidence: 1}
	}
	mode := opts.Verify.Mode
	if mode == "" {
		mode = models.RunModeStandard
	}
	result := &models.ContentResult{Content: *content}
	vr := verify.Run(mode, opts.Verify.Checks, result, 200)
	if vr.Passed {
		return true, vr
	}
	// "passed: true OR severity of all failures <= warning"
	onlyWarnings := true
	for _, c := range vr.Checks {
		if !c.Passed {
			onlyWarnings = false
			break
		}
	}
	return onlyWarnings, vr
}

func bucketConfidence(c float64) models.Confidence {
	switch {
	case c >= 0.8:
		return models.ConfidenceHigh
	case c >= 0.5:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// onAccept implements the success half of § 4.7.3: emit extraction-success
// events for api:* strategies, feed the Pattern Registry, and notify the
// caller's listener.
func (o *Orchestrator) onAccept(ctx context.Context, strategyName, rawURL string, result *models.ContentResult, opts models.ExtractOptions) {
	if !strings.HasPrefix(strategyName, "api:") && !isAPIStrategy(strategyName) {
		return
	}
	event := models.ExtractionSuccessEvent{
		SourceURL: rawURL,
		APIURL:    rawURL,
		Strategy:  strategyName,
		Content:   result.Content,
	}
	if o.rc.Patterns != nil {
		_, _ = o.rc.Patterns.Learn(ctx, o.tenant(opts), event)
	}
	if opts.OnExtractionSuccess != nil {
		opts.OnExtractionSuccess(event)
	}
}

func isAPIStrategy(name string) bool {
	switch name {
	case "learned-patterns", "openapi-discovery", "graphql-discovery", "predicted-api":
		return true
	default:
		return false
	}
}

func (o *Orchestrator) maybeRecordFailure(ctx context.Context, tenant, strategyName, domain, rawURL string, category models.FailureCategory) {
	if o.rc.Patterns == nil {
		return
	}
	if !isAPIStrategy(strategyName) && strategyName != "site-handlers" {
		return
	}
	o.rc.Patterns.RecordFailure(ctx, tenant, models.FailureRecord{
		Domain:    domain,
		URL:       rawURL,
		Category:  category,
		Reason:    string(category),
		Timestamp: time.Now().UnixMilli(),
	})
}

// tenant resolves the effective tenant id for a request: opts.Tenant
// overrides the engine's configured default (o.rc.Tenant), per § 6.5.
func (o *Orchestrator) tenant(opts models.ExtractOptions) string {
	if opts.Tenant != "" {
		return opts.Tenant
	}
	return o.rc.Tenant
}

func classifyStrategyError(err error) models.FailureCategory {
	if ee, ok := err.(*patterns.ExtractorError); ok {
		_ = ee
		return models.CategoryParseError
	}
	return models.CategoryUnknown
}

func (o *Orchestrator) recordTrace(traceID, strategy, event string, detail map[string]interface{}) {
	if o.rc.Trace == nil || traceID == "" {
		return
	}
	o.rc.Trace.Record(traceID, strategy, event, detail)
}

func (o *Orchestrator) finish(traceID string, result *models.ContentResult) {
	if o.rc.Trace == nil || traceID == "" {
		return
	}
	o.rc.Trace.Finish(traceID, result)
}

// Preview returns the planned strategy order without executing anything,
// per § 6.1 — must stay well under the documented 50ms budget since it
// does no network I/O.
func (o *Orchestrator) Preview(ctx context.Context, rawURL string, opts models.ExtractOptions) (*models.ExecutionPlan, error) {
	start := time.Now()
	plan := &models.ExecutionPlan{GeneratedAt: time.Now().UnixMilli()}

	for _, strat := range o.chain {
		planned := models.PlannedStrategy{Name: strat.name, Tier: string(strat.tier), EstimatedMs: strat.estimatedMs}
		if !o.shouldRun(strat, opts, start) {
			planned.Skipped = true
			planned.SkipReason = skipReason(strat, opts)
		} else {
			plan.TotalEstimatedMs += strat.estimatedMs
		}
		plan.Strategies = append(plan.Strategies, planned)
	}
	return plan, nil
}

func skipReason(s strategy, opts models.ExtractOptions) string {
	switch {
	case opts.ForceStrategy != "" && s.name != opts.ForceStrategy:
		return "not the forced strategy"
	case s.tier == models.TierPlaywright && !opts.AllowBrowser:
		return "browser strategy disabled"
	case !opts.MaxCostTier.Allows(s.tier):
		return "exceeds maxCostTier"
	default:
		for _, skip := range opts.SkipStrategies {
			if skip == s.name {
				return "explicitly skipped"
			}
		}
		return "exceeds maxLatencyMs budget"
	}
}
