package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coastline/webextract/internal/logger"
	"github.com/coastline/webextract/pkg/models"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Config tunes the pooled client's connection limits and timeouts.
type Config struct {
	MaxConnsPerHost     int
	MaxIdleConnDuration time.Duration
	Timeout             time.Duration
	UserAgent           string
	// MaxRedirects caps how many 3xx responses Do follows before giving up.
	MaxRedirects int
}

// Client is a pooled HTTP transport over fasthttp.Client, giving native
// per-host connection caps instead of the stdlib's shared global pool. It
// also carries a per-host cookie jar and follows redirects, per § 4.3.
type Client struct {
	fast         *fasthttp.Client
	timeout      time.Duration
	userAgent    string
	maxConns     int
	maxRedirects int

	mu      sync.Mutex
	metrics Metrics
	hosts   map[string]bool // hosts already dialed at least once, for new-vs-reused accounting

	jarMu sync.Mutex
	jar   map[string]map[string]string // host -> cookie name -> value
}

// Metrics tracks request outcomes and connection-pool behavior for the life
// of a Client.
type Metrics struct {
	Requests          int64
	Successes         int64
	Failures          int64
	Timeouts          int64
	ConnectionsReused int64
	NewConnections    int64
	ActiveSockets     map[string]int
	PendingRequests   map[string]int
}

// New builds a Client with the given connection and timeout bounds.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 64
	}
	if cfg.MaxIdleConnDuration <= 0 {
		cfg.MaxIdleConnDuration = 90 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "webextract/1.0"
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	return &Client{
		fast: &fasthttp.Client{
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			MaxIdleConnDuration: cfg.MaxIdleConnDuration,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
		},
		timeout:      cfg.Timeout,
		userAgent:    cfg.UserAgent,
		maxConns:     cfg.MaxConnsPerHost,
		maxRedirects: cfg.MaxRedirects,
		hosts:        make(map[string]bool),
		metrics: Metrics{
			ActiveSockets:   make(map[string]int),
			PendingRequests: make(map[string]int),
		},
		jar: make(map[string]map[string]string),
	}
}

// Do issues req within the client's configured timeout or ctx's deadline,
// whichever is shorter, following redirects and replaying/storing cookies
// through the client's jar. Only ctx's deadline is used: cancelling ctx
// does not interrupt a request already in flight.
func (c *Client) Do(ctx context.Context, r models.HTTPRequest) (*models.HTTPResponse, error) {
	host := hostOf(r.URL)
	c.beginHost(host)
	defer c.endHost(host)

	deadline := c.timeout
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < deadline {
			deadline = remaining
		}
	}

	currentURL := r.URL
	method := methodOrDefault(r.Method)

	var resp *fasthttp.Response
	for redirectCount := 0; ; redirectCount++ {
		req := fasthttp.AcquireRequest()
		resp = fasthttp.AcquireResponse()

		req.SetRequestURI(currentURL)
		req.Header.SetMethod(method)
		req.Header.Set("User-Agent", c.userAgent)
		if cookies := c.cookieHeader(hostOf(currentURL)); cookies != "" {
			req.Header.Set("Cookie", cookies)
		}
		for k, v := range r.Headers {
			req.Header.Set(k, v)
		}
		if len(r.Body) > 0 {
			req.SetBody(r.Body)
		}

		c.mu.Lock()
		c.metrics.Requests++
		c.mu.Unlock()

		err := c.fast.DoTimeout(req, resp, deadline)
		fasthttp.ReleaseRequest(req)
		if err != nil {
			fasthttp.ReleaseResponse(resp)
			c.recordFailure(err)
			if err == fasthttp.ErrTimeout {
				c.mu.Lock()
				c.metrics.Timeouts++
				c.mu.Unlock()
			}
			return nil, fmt.Errorf("httpclient: request to %s: %w", r.URL, err)
		}

		c.storeCookies(hostOf(currentURL), resp)

		status := resp.StatusCode()
		location := string(resp.Header.Peek("Location"))
		if !isRedirectStatus(status) || location == "" || redirectCount >= c.maxRedirects {
			break
		}
		next, resolveErr := resolveRedirect(currentURL, location)
		if resolveErr != nil {
			break
		}
		if status == fasthttp.StatusSeeOther || (status == fasthttp.StatusFound && method == fasthttp.MethodPost) {
			method = fasthttp.MethodGet
			r.Body = nil
		}
		currentURL = next
		fasthttp.ReleaseResponse(resp)
	}
	defer fasthttp.ReleaseResponse(resp)

	headers := make(map[string]string)
	resp.Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	c.mu.Lock()
	c.metrics.Successes++
	c.mu.Unlock()

	return &models.HTTPResponse{
		StatusCode: resp.StatusCode(),
		Headers:    headers,
		Body:       body,
		FinalURL:   currentURL,
	}, nil
}

func isRedirectStatus(status int) bool {
	switch status {
	case fasthttp.StatusMovedPermanently, fasthttp.StatusFound, fasthttp.StatusSeeOther,
		fasthttp.StatusTemporaryRedirect, fasthttp.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	next, err := baseURL.Parse(location)
	if err != nil {
		return "", err
	}
	return next.String(), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

// beginHost records the in-flight gauge and the new-vs-reused connection
// counters for host at the start of a request.
func (c *Client) beginHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hosts[host] {
		c.metrics.ConnectionsReused++
	} else {
		c.hosts[host] = true
		c.metrics.NewConnections++
	}
	if c.metrics.ActiveSockets[host] >= c.maxConns {
		c.metrics.PendingRequests[host]++
	}
	c.metrics.ActiveSockets[host]++
}

func (c *Client) endHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metrics.ActiveSockets[host] > 0 {
		c.metrics.ActiveSockets[host]--
	}
	if c.metrics.PendingRequests[host] > 0 {
		c.metrics.PendingRequests[host]--
	}
}

// storeCookies copies Set-Cookie values from resp into host's jar entry.
func (c *Client) storeCookies(host string, resp *fasthttp.Response) {
	resp.Header.VisitAllCookie(func(_, value []byte) {
		var ck fasthttp.Cookie
		if err := ck.ParseBytes(value); err != nil {
			return
		}
		name := string(ck.Key())
		val := string(ck.Value())

		c.jarMu.Lock()
		defer c.jarMu.Unlock()
		if c.jar[host] == nil {
			c.jar[host] = make(map[string]string)
		}
		if val == "" {
			delete(c.jar[host], name)
		} else {
			c.jar[host][name] = val
		}
	})
}

// cookieHeader renders host's stored jar cookies as a single Cookie header
// value, empty if the jar has nothing for host.
func (c *Client) cookieHeader(host string) string {
	c.jarMu.Lock()
	defer c.jarMu.Unlock()
	cookies := c.jar[host]
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for name, val := range cookies {
		parts = append(parts, name+"="+val)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	c.metrics.Failures++
	c.mu.Unlock()
	logger.Debug("httpclient: request failed", zap.Error(err))
}

// Metrics returns a snapshot of the client's request counters and
// per-host connection gauges.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.metrics
	snapshot.ActiveSockets = make(map[string]int, len(c.metrics.ActiveSockets))
	for k, v := range c.metrics.ActiveSockets {
		snapshot.ActiveSockets[k] = v
	}
	snapshot.PendingRequests = make(map[string]int, len(c.metrics.PendingRequests))
	for k, v := range c.metrics.PendingRequests {
		snapshot.PendingRequests[k] = v
	}
	return snapshot
}

func methodOrDefault(m string) string {
	if m == "" {
		return fasthttp.MethodGet
	}
	return m
}

var _ models.HTTPClient = (*Client)(nil)
