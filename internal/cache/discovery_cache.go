package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/coastline/webextract/pkg/models"
)

type entry struct {
	key       string
	result    *models.DiscoveryResult
	expiresAt time.Time
	elem      *list.Element
}

// DiscoveryCache is a TTL+LRU cache of per-tenant, per-source, per-domain
// discovery results, plus an exponential-backoff cooldown tracker for
// tenant/source/domain triples that recently failed discovery, so the
// orchestrator stops re-probing a dead endpoint on every request. Tenant and
// source ("openapi"/"graphql") are both part of the key so tenants never
// observe each other's cached results and two discovery sources for the same
// domain never overwrite one another, per § 4.2/§ 6.5.
type DiscoveryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*entry
	order   *list.List // most-recently-used at front

	cooldownMu   sync.Mutex
	cooldownBase time.Duration
	cooldownMax  time.Duration
	failures     map[string]*cooldownState
}

type cooldownState struct {
	consecutiveFailures int
	cooldownUntil       time.Time
}

// New builds a DiscoveryCache with the given TTL, max entry count, and
// cooldown backoff bounds.
func New(ttl time.Duration, maxSize int, cooldownBase, cooldownMax time.Duration) *DiscoveryCache {
	return &DiscoveryCache{
		ttl:          ttl,
		maxSize:      maxSize,
		entries:      make(map[string]*entry),
		order:        list.New(),
		cooldownBase: cooldownBase,
		cooldownMax:  cooldownMax,
		failures:     make(map[string]*cooldownState),
	}
}

// cacheKey composes the tenant:source:domain key from § 4.2. An empty tenant
// collapses to the untenanted form so single-tenant deployments keep the
// plain "source:domain" shape.
func cacheKey(tenant, source, domain string) string {
	if tenant == "" {
		return source + ":" + domain
	}
	return tenant + ":" + source + ":" + domain
}

func (c *DiscoveryCache) Get(_ context.Context, tenant, source, domain string) (*models.DiscoveryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(tenant, source, domain)
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.evictLocked(e)
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	return e.result, true
}

func (c *DiscoveryCache) Put(_ context.Context, tenant, source, domain string, result *models.DiscoveryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(tenant, source, domain)
	if existing, ok := c.entries[key]; ok {
		existing.result = result
		existing.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(existing.elem)
		return
	}

	e := &entry{key: key, result: result, expiresAt: time.Now().Add(c.ttl)}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e

	for len(c.entries) > c.maxSize {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.evictLocked(back.Value.(*entry))
	}
}

func (c *DiscoveryCache) evictLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

// IsCoolingDown reports whether tenant/source/domain is currently within its
// backoff window following consecutive discovery failures.
func (c *DiscoveryCache) IsCoolingDown(tenant, source, domain string) bool {
	c.cooldownMu.Lock()
	defer c.cooldownMu.Unlock()

	st, ok := c.failures[cacheKey(tenant, source, domain)]
	if !ok {
		return false
	}
	return time.Now().Before(st.cooldownUntil)
}

// RecordFailure doubles the backoff window for tenant/source/domain, capped
// at cooldownMax.
func (c *DiscoveryCache) RecordFailure(tenant, source, domain string) {
	c.cooldownMu.Lock()
	defer c.cooldownMu.Unlock()

	key := cacheKey(tenant, source, domain)
	st, ok := c.failures[key]
	if !ok {
		st = &cooldownState{}
		c.failures[key] = st
	}
	st.consecutiveFailures++

	backoff := c.cooldownBase << uint(st.consecutiveFailures-1)
	if backoff <= 0 || backoff > c.cooldownMax {
		backoff = c.cooldownMax
	}
	st.cooldownUntil = time.Now().Add(backoff)
}

// RecordSuccess resets tenant/source/domain's cooldown state.
func (c *DiscoveryCache) RecordSuccess(tenant, source, domain string) {
	c.cooldownMu.Lock()
	defer c.cooldownMu.Unlock()
	delete(c.failures, cacheKey(tenant, source, domain))
}

var _ models.DiscoveryCache = (*DiscoveryCache)(nil)
