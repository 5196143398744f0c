// Package engine is the public façade wiring every C1–C10 component into
// one RuntimeContext and exposing the extract/preview entry points of
// § 6.1.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/coastline/webextract/internal/cache"
	"github.com/coastline/webextract/internal/collaborators"
	"github.com/coastline/webextract/internal/config"
	"github.com/coastline/webextract/internal/httpclient"
	"github.com/coastline/webextract/internal/orchestrator"
	"github.com/coastline/webextract/internal/patterns"
	"github.com/coastline/webextract/internal/persistence"
	"github.com/coastline/webextract/internal/trace"
	"github.com/coastline/webextract/pkg/models"
)

// Engine is the top-level handle a host process constructs once at startup.
type Engine struct {
	rc   *models.RuntimeContext
	orch *orchestrator.Orchestrator
}

// Options configures which optional C10 collaborators New wires in.
type Options struct {
	EnableHeadlessRenderer bool
	EnableEmbeddings       bool
	EmbeddingAPIKey        string
	SessionStorePath       string
}

// New builds the full RuntimeContext from cfg and constructs an Engine.
// Optional collaborators that fail to initialize are left nil, and their
// errors discarded, rather than failing startup — they gate individual strategies, not the
// engine as a whole.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	store, err := persistence.New(ctx, cfg.Persistence, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("engine: init persistence store: %w", err)
	}

	discoveryCache := cache.New(
		time.Duration(cfg.Discovery.CacheTTLSeconds)*time.Second,
		cfg.Discovery.CacheMaxEntries,
		time.Duration(cfg.Discovery.CooldownBaseMs)*time.Millisecond,
		time.Duration(cfg.Discovery.CooldownMaxMs)*time.Millisecond,
	)

	httpClient := httpclient.New(httpclient.Config{
		UserAgent: cfg.Crawler.UserAgent,
	})

	registry, err := patterns.NewRegistry(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("engine: init pattern registry: %w", err)
	}

	recorder := trace.New(trace.Policy{Enabled: true, OnlyRecordFailures: false}, 500, 24*time.Hour)

	rc := &models.RuntimeContext{
		Store:    store,
		Cache:    discoveryCache,
		HTTP:     httpClient,
		Patterns: registry,
		Trace:    recorder,
		Tenant:   cfg.Tenant.ID,
	}

	if opts.EnableHeadlessRenderer {
		renderer, rerr := collaborators.NewHeadlessRenderer(collaborators.RendererConfig{
			PoolSize: cfg.Browser.PoolSize,
			Headless: cfg.Browser.Headless,
			Timeout:  time.Duration(cfg.Browser.Timeout) * time.Millisecond,
		})
		if rerr == nil {
			rc.Renderer = renderer
		}
	}

	if opts.EnableEmbeddings && opts.EmbeddingAPIKey != "" {
		provider, eerr := collaborators.NewEmbeddingProvider(ctx, opts.EmbeddingAPIKey, "")
		if eerr == nil {
			rc.Embeddings = provider
			rc.Vectors = collaborators.NewVectorStore()
		}
	}

	if opts.SessionStorePath != "" {
		sessions, serr := collaborators.NewSessionStore(opts.SessionStorePath)
		if serr == nil {
			rc.Sessions = sessions
		}
	}

	return &Engine{rc: rc, orch: orchestrator.New(rc)}, nil
}

// Extract runs the full strategy chain for url and returns a result for
// every url that parses; an unparsable url yields a nil result and an error.
func (e *Engine) Extract(ctx context.Context, url string, opts models.ExtractOptions) (*models.ContentResult, error) {
	return e.orch.Extract(ctx, url, opts)
}

// Preview returns the non-executing strategy plan for url.
func (e *Engine) Preview(ctx context.Context, url string, opts models.ExtractOptions) (*models.ExecutionPlan, error) {
	return e.orch.Preview(ctx, url, opts)
}

// Close shuts down the headless renderer's browser pool when one is wired.
// The session store and the persistence store are not closed here.
func (e *Engine) Close() error {
	var firstErr error
	if e.rc.Renderer != nil {
		if err := e.rc.Renderer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
