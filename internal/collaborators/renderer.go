package collaborators

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/coastline/webextract/internal/logger"
	"github.com/coastline/webextract/pkg/models"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// RendererConfig tunes the pooled headless-renderer collaborator.
type RendererConfig struct {
	PoolSize int
	Headless bool
	Timeout  time.Duration
}

// challengeHeuristics match page content indicating an interactive
// challenge (CAPTCHA) is blocking extraction.
var challengeHeuristics = []*regexp.Regexp{
	regexp.MustCompile(`(?i)verify you are human`),
	regexp.MustCompile(`(?i)complete the security check`),
	regexp.MustCompile(`(?i)checking your browser`),
	regexp.MustCompile(`(?i)captcha`),
}

// HeadlessRenderer is the C10 collaborator adapter wrapping a pooled
// playwright browser-context channel, adapted from the teacher's
// BrowserPool for the single render(url) → (html, finalURL) contract.
type HeadlessRenderer struct {
	cfg    RendererConfig
	pw     *playwright.Playwright
	browser playwright.Browser

	mu       sync.Mutex
	contexts chan playwright.BrowserContext
	closed   bool
}

// NewHeadlessRenderer launches Chromium and pre-warms cfg.PoolSize contexts.
func NewHeadlessRenderer(cfg RendererConfig) (*HeadlessRenderer, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if err := playwright.Install(&playwright.RunOptions{Verbose: false}); err != nil {
		logger.Warn("collaborators: playwright install failed, assuming already present", zap.Error(err))
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("collaborators: start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Timeout:  playwright.Float(float64(cfg.Timeout.Milliseconds())),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("collaborators: launch chromium: %w", err)
	}

	r := &HeadlessRenderer{
		cfg:      cfg,
		pw:       pw,
		browser:  browser,
		contexts: make(chan playwright.BrowserContext, cfg.PoolSize),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		bctx, err := r.newContext()
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("collaborators: pre-warm context: %w", err)
		}
		r.contexts <- bctx
	}

	return r, nil
}

func (r *HeadlessRenderer) newContext() (playwright.BrowserContext, error) {
	return r.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String("webextract/1.0"),
		IgnoreHttpsErrors: playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
	})
}

// Render navigates to url in a pooled context, optionally waiting for a
// selector, and returns the rendered HTML and final URL. If the page
// matches a known interactive-challenge heuristic, a *ChallengeError is
// returned together with the rendered HTML so the orchestrator can invoke
// its challenge callback.
func (r *HeadlessRenderer) Render(ctx context.Context, url string, waitForSelector string) (string, string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", "", fmt.Errorf("collaborators: renderer closed")
	}
	r.mu.Unlock()

	var bctx playwright.BrowserContext
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case bctx = <-r.contexts:
	}
	defer func() { r.contexts <- bctx }()

	page, err := bctx.NewPage()
	if err != nil {
		return "", "", fmt.Errorf("collaborators: new page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(r.cfg.Timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return "", "", fmt.Errorf("collaborators: navigate to %s: %w", url, err)
	}

	if waitForSelector != "" {
		if _, err := page.WaitForSelector(waitForSelector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(float64(r.cfg.Timeout.Milliseconds())),
		}); err != nil {
			logger.Debug("collaborators: wait for selector timed out", zap.String("selector", waitForSelector), zap.Error(err))
		}
	}

	html, err := page.Content()
	if err != nil {
		return "", "", fmt.Errorf("collaborators: read content: %w", err)
	}

	if info := DetectChallenge(html); info != "" {
		return html, page.URL(), &ChallengeError{Info: info}
	}

	return html, page.URL(), nil
}

// ChallengeError signals that an interactive challenge (CAPTCHA-style) was
// detected on the rendered page.
type ChallengeError struct {
	Info string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("collaborators: interactive challenge detected: %s", e.Info)
}

// DetectChallenge returns a short description when html matches one of the
// known interactive-challenge heuristics, or "" otherwise.
func DetectChallenge(html string) string {
	for _, re := range challengeHeuristics {
		if re.MatchString(html) {
			return re.String()
		}
	}
	return ""
}

// Available reports whether the renderer is usable, i.e. has not been
// closed. The orchestrator does not consult it; it skips the headless
// strategy only when no renderer is wired.
func (r *HeadlessRenderer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

// Close shuts down the browser and playwright driver.
func (r *HeadlessRenderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.contexts)
	for bctx := range r.contexts {
		_ = bctx.Close()
	}
	if err := r.browser.Close(); err != nil {
		return fmt.Errorf("collaborators: close browser: %w", err)
	}
	return r.pw.Stop()
}

var _ models.HeadlessRenderer = (*HeadlessRenderer)(nil)
