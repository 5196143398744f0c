package models

import "context"

// PersistenceStore is the durable key/value contract C1 implements
// (file-backed debounced-write or Postgres-backed).
type PersistenceStore interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Has(ctx context.Context, key string) (bool, error)
	Count(ctx context.Context, prefix string) (int, error)
	Clear(ctx context.Context, prefix string) error
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DiscoveryCache is the TTL+LRU contract C2 implements for OpenAPI/GraphQL
// probe results, plus a per-domain cooldown tracker for repeated failures.
// Every key is scoped by tenant and by source ("openapi"/"graphql") so two
// tenants, or two discovery sources, never collide on the same domain.
type DiscoveryCache interface {
	Get(ctx context.Context, tenant, source, domain string) (*DiscoveryResult, bool)
	Put(ctx context.Context, tenant, source, domain string, result *DiscoveryResult)
	IsCoolingDown(tenant, source, domain string) bool
	RecordFailure(tenant, source, domain string)
	RecordSuccess(tenant, source, domain string)
}

// HTTPRequest is the minimal request shape C3 accepts, shared across the
// Pattern Registry and discovery probes.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse is what C3 returns for a completed request.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	FinalURL   string
}

// HTTPClient is the pooled transport contract C3 implements over fasthttp.
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// PatternRegistry is the contract C4 implements: candidate lookup, learning
// from successful extractions, and anti-pattern gating.
type PatternRegistry interface {
	FindCandidates(ctx context.Context, tenant, url string) ([]LearnedPattern, error)
	IsSuppressed(ctx context.Context, tenant, domain string, category FailureCategory) (*AntiPattern, bool)
	RecordSuccess(ctx context.Context, tenant, patternID string, responseMs int64)
	RecordFailure(ctx context.Context, tenant string, rec FailureRecord)
	Learn(ctx context.Context, tenant string, event ExtractionSuccessEvent) (*LearnedPattern, error)
}

// TraceRecorder is the contract C9 implements for per-request debug traces.
type TraceRecorder interface {
	Start(ctx context.Context, url string) string
	Record(traceID, strategy, event string, detail map[string]interface{})
	Finish(traceID string, result *ContentResult)
}

// HeadlessRenderer is the C10 collaborator adapter wrapping a pooled
// browser context (playwright-backed) for the render:headless strategy.
type HeadlessRenderer interface {
	Render(ctx context.Context, url string, waitForSelector string) (html string, finalURL string, err error)
	Close() error
}

// EmbeddingProvider is the C10 collaborator adapter producing vector
// embeddings for stored content (genai-backed).
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the C10 collaborator adapter persisting and querying
// embeddings produced by an EmbeddingProvider.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error
	Query(ctx context.Context, vector []float32, topK int) ([]string, error)
}

// SessionStore is the C10 collaborator adapter persisting authenticated
// browser/cookie sessions across process restarts (bbolt-backed).
type SessionStore interface {
	Load(ctx context.Context, domain string) ([]byte, bool, error)
	Save(ctx context.Context, domain string, data []byte) error
}

// RuntimeContext is the single explicit handle every entry point takes,
// replacing ambient package-level singletons. Collaborator adapters are
// optional: a nil field means the corresponding strategy tier is skipped.
type RuntimeContext struct {
	Store      PersistenceStore
	Cache      DiscoveryCache
	HTTP       HTTPClient
	Patterns   PatternRegistry
	Trace      TraceRecorder
	Renderer   HeadlessRenderer
	Embeddings EmbeddingProvider
	Vectors    VectorStore
	Sessions   SessionStore
	// Tenant is the default tenant id applied when a request's
	// ExtractOptions.Tenant is empty.
	Tenant     string
}
