package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coastline/webextract/internal/httpclient"
	"github.com/coastline/webextract/pkg/models"
)

func newTestRuntime() *models.RuntimeContext {
	return &models.RuntimeContext{
		HTTP: httpclient.New(httpclient.Config{}),
	}
}

func TestExtractStaticParseFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Example Article</title></head><body><main><p>` +
			longText(600) + `</p></main></body></html>`))
	}))
	defer srv.Close()

	o := New(newTestRuntime())
	opts := models.ExtractOptions{
		AllowBrowser: false,
		Verify:       models.VerifyOptions{Enabled: false},
	}
	result, err := o.Extract(context.Background(), srv.URL, opts)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Error != "" {
		t.Fatalf("Extract() result.Error = %q, want empty; warnings=%v", result.Error, result.Warnings)
	}
	if result.Content.Title != "Example Article" {
		t.Errorf("Extract() title = %q, want %q", result.Content.Title, "Example Article")
	}
	if result.Meta.Strategy != "static-parse" {
		t.Errorf("Extract() strategy = %q, want %q", result.Meta.Strategy, "static-parse")
	}
}

func TestExtractForceStrategyFailsFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := New(newTestRuntime())
	opts := models.ExtractOptions{
		ForceStrategy: "static-parse",
		AllowBrowser:  false,
		Verify:        models.VerifyOptions{Enabled: false},
	}
	result, err := o.Extract(context.Background(), srv.URL, opts)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Error == "" {
		t.Error("Extract() with forced failing strategy: result.Error = \"\", want non-empty")
	}
	if result.Meta.Confidence != models.ConfidenceLow {
		t.Errorf("Extract() confidence = %q, want %q", result.Meta.Confidence, models.ConfidenceLow)
	}
}

func TestShouldRunRespectsMaxCostTier(t *testing.T) {
	o := New(newTestRuntime())
	playwrightStrat := strategy{name: "render:headless", tier: models.TierPlaywright, estimatedMs: 1000}
	opts := models.ExtractOptions{MaxCostTier: models.TierIntelligence, AllowBrowser: true}
	if o.shouldRun(playwrightStrat, opts, time.Now()) {
		t.Error("shouldRun() = true for a playwright strategy under maxCostTier=intelligence, want false")
	}
}

func TestShouldRunSkipsExplicitlyExcluded(t *testing.T) {
	o := New(newTestRuntime())
	s := strategy{name: "google-cache", tier: models.TierLightweight}
	opts := models.ExtractOptions{SkipStrategies: []string{"google-cache"}}
	if o.shouldRun(s, opts, time.Now()) {
		t.Error("shouldRun() = true for an explicitly skipped strategy, want false")
	}
}

func TestPreviewDoesNotExecuteNetwork(t *testing.T) {
	called := false
	rc := &models.RuntimeContext{HTTP: fakeHTTPClient{fn: func() { called = true }}}
	o := New(rc)
	plan, err := o.Preview(context.Background(), "https://example.com/post/1", models.NewExtractOptions())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if called {
		t.Error("Preview() performed network I/O, want none")
	}
	if len(plan.Strategies) != 11 {
		t.Errorf("Preview() returned %d strategies, want 11", len(plan.Strategies))
	}
}

type fakeHTTPClient struct {
	fn func()
}

func (f fakeHTTPClient) Do(ctx context.Context, req models.HTTPRequest) (*models.HTTPResponse, error) {
	f.fn()
	return &models.HTTPResponse{StatusCode: 200}, nil
}

func longText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
