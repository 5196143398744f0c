package patterns

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coastline/webextract/internal/logger"
	"github.com/coastline/webextract/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	patternNamespace     = "pattern:"
	antiPatternNamespace = "antipattern:"
	failureNamespace     = "failure:"

	failureWindowSize = 10
	failureWindowAge  = time.Hour
	decayLambda       = 0.05
)

type suppressionRule struct {
	action   models.RecommendedAction
	duration time.Duration
}

var suppressionTable = map[models.FailureCategory]suppressionRule{
	models.CategoryRateLimited:    {models.ActionBackoff, 60 * time.Second},
	models.CategoryTimeout:        {models.ActionRetry, 5 * time.Second},
	models.CategoryServerError:    {models.ActionBackoff, 10 * time.Second},
	models.CategoryAuthRequired:   {models.ActionNone, time.Hour},
	models.CategoryWrongEndpoint:  {models.ActionSkipDomain, time.Hour},
	models.CategoryBlocked:        {models.ActionSkipDomain, 24 * time.Hour},
	models.CategorySchemaMismatch: {models.ActionSkipDomain, 0},
}

const failureThreshold = failureWindowSize
const failureSuccessRatioCeiling = 0.10

// Registry is the Pattern Registry (C4): a learned-pattern store, an
// anti-pattern suppression gate, and the failure-clustering logic that
// promotes repeated failures into anti-patterns.
type Registry struct {
	store models.PersistenceStore

	mu           sync.RWMutex
	patterns     map[string]*models.LearnedPattern
	antiPatterns map[string]*models.AntiPattern
	failures     map[string][]models.FailureRecord // key: tenant + "|" + domain + "|" + category
}

// NewRegistry loads persisted patterns and anti-patterns from store. Failure
// records are kept in memory only: they are neither loaded from nor written
// to the store, so failure windows start empty on every start.
func NewRegistry(ctx context.Context, store models.PersistenceStore) (*Registry, error) {
	r := &Registry{
		store:        store,
		patterns:     make(map[string]*models.LearnedPattern),
		antiPatterns: make(map[string]*models.AntiPattern),
		failures:     make(map[string][]models.FailureRecord),
	}

	patternKeys, err := store.Keys(ctx, patternNamespace)
	if err != nil {
		return nil, fmt.Errorf("patterns: load pattern keys: %w", err)
	}
	for _, k := range patternKeys {
		var p models.LearnedPattern
		if ok, err := store.Get(ctx, k, &p); err == nil && ok {
			r.patterns[p.ID] = &p
		}
	}

	apKeys, err := store.Keys(ctx, antiPatternNamespace)
	if err != nil {
		return nil, fmt.Errorf("patterns: load antipattern keys: %w", err)
	}
	for _, k := range apKeys {
		var ap models.AntiPattern
		if ok, err := store.Get(ctx, k, &ap); err == nil && ok {
			r.antiPatterns[ap.ID] = &ap
		}
	}

	return r, nil
}

// Candidate is a ranked pattern with its expanded endpoint URL.
type Candidate struct {
	Pattern     *models.LearnedPattern
	APIEndpoint string
}

// FindCandidates implements § 4.4.1: anti-pattern gate, candidate set,
// ranking, and endpoint-template expansion. Only patterns/anti-patterns
// belonging to tenant (or recorded before tenant isolation, i.e. untenanted)
// are considered, per § 6.5.
func (r *Registry) FindCandidates(_ context.Context, tenant, rawURL string) ([]models.LearnedPattern, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("patterns: parse url: %w", err)
	}
	host := u.Hostname()

	r.mu.Lock()
	r.pruneExpiredAntiPatternsLocked()
	for _, ap := range r.antiPatterns {
		if !sameTenant(ap.Tenant, tenant) {
			continue
		}
		if !ap.MatchesDomain(host) {
			continue
		}
		if len(ap.URLPatterns) == 0 || matchesAny(ap.URLPatterns, rawURL) {
			r.mu.Unlock()
			return nil, nil
		}
	}

	var candidates []*models.LearnedPattern
	for _, p := range r.patterns {
		if !sameTenant(p.Tenant, tenant) {
			continue
		}
		if matchesAny(p.URLPatterns, rawURL) {
			candidates = append(candidates, p)
		}
	}
	r.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Metrics.Confidence != cj.Metrics.Confidence {
			return ci.Metrics.Confidence > cj.Metrics.Confidence
		}
		if ci.Metrics.LastSuccess != cj.Metrics.LastSuccess {
			return ci.Metrics.LastSuccess > cj.Metrics.LastSuccess
		}
		return ci.ID < cj.ID
	})

	out := make([]models.LearnedPattern, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, *c)
	}
	return out, nil
}

// IsSuppressed reports whether an active anti-pattern covers
// tenant+domain+category.
func (r *Registry) IsSuppressed(_ context.Context, tenant, domain string, category models.FailureCategory) (*models.AntiPattern, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneExpiredAntiPatternsLocked()
	for _, ap := range r.antiPatterns {
		if !sameTenant(ap.Tenant, tenant) {
			continue
		}
		if ap.FailureCategory == category && ap.MatchesDomain(domain) {
			return ap, true
		}
	}
	return nil, false
}

// sameTenant treats an empty stored tenant as matching any requested
// tenant, so records written before tenant isolation was introduced remain
// visible instead of becoming orphaned.
func sameTenant(stored, requested string) bool {
	return stored == "" || stored == requested
}

func (r *Registry) pruneExpiredAntiPatternsLocked() {
	now := time.Now().UnixMilli()
	for id, ap := range r.antiPatterns {
		if ap.ExpiresAt != 0 && ap.ExpiresAt < now {
			delete(r.antiPatterns, id)
		}
	}
}

func matchesAny(patterns []string, target string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(target) {
			return true
		}
	}
	return false
}

// RecordSuccess updates a pattern's rolling metrics after a successful apply.
func (r *Registry) RecordSuccess(ctx context.Context, tenant, patternID string, responseMs int64) {
	r.mu.Lock()
	p, ok := r.patterns[patternID]
	if !ok || !sameTenant(p.Tenant, tenant) {
		r.mu.Unlock()
		return
	}
	p.Metrics.SuccessCount++
	p.Metrics.LastSuccess = time.Now().UnixMilli()
	if p.Metrics.AvgResponseMs == 0 {
		p.Metrics.AvgResponseMs = float64(responseMs)
	} else {
		const alpha = 0.2
		p.Metrics.AvgResponseMs = alpha*float64(responseMs) + (1-alpha)*p.Metrics.AvgResponseMs
	}
	p.Metrics.RawConfidence = recomputeConfidence(p.Metrics)
	p.Metrics.Confidence = p.Metrics.RawConfidence
	p.UpdatedAt = time.Now().UnixMilli()
	snapshot := *p
	r.mu.Unlock()

	if err := r.store.Set(ctx, patternNamespace+patternID, snapshot); err != nil {
		logger.Error("patterns: persist success", zap.String("pattern_id", patternID), zap.Error(err))
	}
}

func recomputeConfidence(m models.PatternMetrics) float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 0.5
	}
	ratio := float64(m.SuccessCount) / float64(total)
	if ratio > 0.99 {
		ratio = 0.99
	}
	return ratio
}

// RecordFailure classifies and stores a failure, running the sliding-window
// promotion check from § 4.4.4, and — when rec.PatternID names a known
// pattern — increments that pattern's Metrics.FailureCount and recomputes
// its confidence.
func (r *Registry) RecordFailure(ctx context.Context, tenant string, rec models.FailureRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	rec.Tenant = tenant

	key := tenant + "|" + rec.Domain + "|" + string(rec.Category)

	r.mu.Lock()
	window := append(r.failures[key], rec)
	cutoff := time.Now().Add(-failureWindowAge).UnixMilli()
	filtered := window[:0]
	for _, f := range window {
		if f.Timestamp >= cutoff {
			filtered = append(filtered, f)
		}
	}
	if len(filtered) > failureWindowSize {
		filtered = filtered[len(filtered)-failureWindowSize:]
	}
	r.failures[key] = filtered
	shouldPromote := len(filtered) >= failureThreshold

	var patternSnapshot *models.LearnedPattern
	if rec.PatternID != "" {
		if p, ok := r.patterns[rec.PatternID]; ok && sameTenant(p.Tenant, tenant) {
			p.Metrics.FailureCount++
			p.Metrics.RawConfidence = recomputeConfidence(p.Metrics)
			p.Metrics.Confidence = p.Metrics.RawConfidence
			p.UpdatedAt = time.Now().UnixMilli()
			cp := *p
			patternSnapshot = &cp
		}
	}
	r.mu.Unlock()

	if patternSnapshot != nil {
		if err := r.store.Set(ctx, patternNamespace+patternSnapshot.ID, patternSnapshot); err != nil {
			logger.Error("patterns: persist failure", zap.String("pattern_id", patternSnapshot.ID), zap.Error(err))
		}
	}

	if shouldPromote {
		r.promote(ctx, tenant, rec.Domain, rec.Category)
	}
}

func (r *Registry) promote(ctx context.Context, tenant, domain string, category models.FailureCategory) {
	rule, ok := suppressionTable[category]
	if !ok {
		rule = suppressionRule{models.ActionNone, 0}
	}

	id := domain + "|" + string(category)
	if tenant != "" {
		id = tenant + "|" + id
	}

	now := time.Now()
	ap := &models.AntiPattern{
		ID:                    id,
		Tenant:                tenant,
		FailureCategory:       category,
		Domains:               []string{domain},
		RecommendedAction:     rule.action,
		Reason:                fmt.Sprintf("%d failures of category %s within the trailing window", failureThreshold, category),
		SuppressionDurationMs: rule.duration.Milliseconds(),
		CreatedAt:             now.UnixMilli(),
	}
	if rule.duration > 0 {
		ap.ExpiresAt = now.Add(rule.duration).UnixMilli()
	}

	r.mu.Lock()
	r.antiPatterns[ap.ID] = ap
	r.mu.Unlock()

	if err := r.store.Set(ctx, antiPatternNamespace+ap.ID, ap); err != nil {
		logger.Error("patterns: persist anti-pattern", zap.String("id", ap.ID), zap.Error(err))
	}
	logger.Warn("patterns: anti-pattern promoted",
		zap.String("tenant", tenant), zap.String("domain", domain), zap.String("category", string(category)),
		zap.String("action", string(rule.action)))
}

var _ models.PatternRegistry = (*Registry)(nil)
