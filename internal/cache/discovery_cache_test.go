package cache

import (
	"context"
	"testing"
	"time"

	"github.com/coastline/webextract/pkg/models"
)

func TestDiscoveryCacheGetPut(t *testing.T) {
	ctx := context.Background()
	c := New(50*time.Millisecond, 10, time.Millisecond, time.Second)

	if _, ok := c.Get(ctx, "acme", "openapi", "example.com"); ok {
		t.Fatal("Get() on empty cache found = true, want false")
	}

	c.Put(ctx, "acme", "openapi", "example.com", &models.DiscoveryResult{Found: true, Endpoint: "/api/v1"})

	res, ok := c.Get(ctx, "acme", "openapi", "example.com")
	if !ok {
		t.Fatal("Get() found = false, want true")
	}
	if res.Endpoint != "/api/v1" {
		t.Errorf("Get().Endpoint = %q, want /api/v1", res.Endpoint)
	}
}

func TestDiscoveryCacheScopesBySourceAndTenant(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute, 10, time.Millisecond, time.Second)

	c.Put(ctx, "acme", "openapi", "example.com", &models.DiscoveryResult{Found: true, Endpoint: "/openapi.json"})
	c.Put(ctx, "acme", "graphql", "example.com", &models.DiscoveryResult{Found: true, Endpoint: "/graphql"})

	if res, ok := c.Get(ctx, "acme", "openapi", "example.com"); !ok || res.Endpoint != "/openapi.json" {
		t.Errorf("Get(openapi) = %+v, %v; want /openapi.json, true", res, ok)
	}
	if res, ok := c.Get(ctx, "acme", "graphql", "example.com"); !ok || res.Endpoint != "/graphql" {
		t.Errorf("Get(graphql) = %+v, %v; want /graphql, true", res, ok)
	}

	if _, ok := c.Get(ctx, "other-tenant", "openapi", "example.com"); ok {
		t.Error("Get() under a different tenant found = true, want false")
	}
}

func TestDiscoveryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := New(10*time.Millisecond, 10, time.Millisecond, time.Second)

	c.Put(ctx, "acme", "openapi", "example.com", &models.DiscoveryResult{Found: true})
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(ctx, "acme", "openapi", "example.com"); ok {
		t.Error("Get() after TTL elapsed found = true, want false")
	}
}

func TestDiscoveryCacheEvictsLRU(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute, 2, time.Millisecond, time.Second)

	c.Put(ctx, "acme", "openapi", "a.com", &models.DiscoveryResult{Found: true})
	c.Put(ctx, "acme", "openapi", "b.com", &models.DiscoveryResult{Found: true})
	c.Get(ctx, "acme", "openapi", "a.com") // touch a.com, making b.com the LRU entry
	c.Put(ctx, "acme", "openapi", "c.com", &models.DiscoveryResult{Found: true})

	if _, ok := c.Get(ctx, "acme", "openapi", "b.com"); ok {
		t.Error("Get(b.com) found = true after eviction, want false")
	}
	if _, ok := c.Get(ctx, "acme", "openapi", "a.com"); !ok {
		t.Error("Get(a.com) found = false, want true (recently touched)")
	}
	if _, ok := c.Get(ctx, "acme", "openapi", "c.com"); !ok {
		t.Error("Get(c.com) found = false, want true (just inserted)")
	}
}

func TestDiscoveryCacheCooldownBackoff(t *testing.T) {
	c := New(time.Minute, 10, 10*time.Millisecond, 200*time.Millisecond)

	if c.IsCoolingDown("acme", "openapi", "flaky.com") {
		t.Fatal("IsCoolingDown() before any failure = true, want false")
	}

	c.RecordFailure("acme", "openapi", "flaky.com")
	if !c.IsCoolingDown("acme", "openapi", "flaky.com") {
		t.Error("IsCoolingDown() after first failure = false, want true")
	}

	time.Sleep(15 * time.Millisecond)
	if c.IsCoolingDown("acme", "openapi", "flaky.com") {
		t.Error("IsCoolingDown() after first cooldown elapsed = true, want false")
	}

	c.RecordFailure("acme", "openapi", "flaky.com")
	c.RecordFailure("acme", "openapi", "flaky.com")
	if !c.IsCoolingDown("acme", "openapi", "flaky.com") {
		t.Error("IsCoolingDown() after repeated failures = false, want true")
	}

	c.RecordSuccess("acme", "openapi", "flaky.com")
	if c.IsCoolingDown("acme", "openapi", "flaky.com") {
		t.Error("IsCoolingDown() after RecordSuccess() = true, want false")
	}
}
