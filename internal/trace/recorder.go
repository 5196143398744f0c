// Package trace implements the Debug Trace Recorder (C9): per-request
// attempt logs retained by count and age, gated by a record policy.
package trace

import (
	"container/list"
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/coastline/webextract/pkg/models"
)

// TierAttempt is one strategy invocation within a request's trace.
type TierAttempt struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs"`
}

// SelectorAttempt is one field-extraction attempt within a request's trace.
type SelectorAttempt struct {
	Source        string `json:"source"`
	Selector      string `json:"selector,omitempty"`
	Found         bool   `json:"found"`
	Selected      bool   `json:"selected"`
	Value         string `json:"value,omitempty"`
	SkipReason    string `json:"skipReason,omitempty"`
	ContentLength int    `json:"contentLength,omitempty"`
}

// ErrorEntry is one recorded failure within a request's trace.
type ErrorEntry struct {
	Type              string `json:"type"`
	Message           string `json:"message"`
	RecoveryAttempted bool   `json:"recoveryAttempted"`
	Timestamp         int64  `json:"timestamp"`
}

// ContentStats summarizes the final accepted (or best-effort) content.
type ContentStats struct {
	TextLength     int `json:"textLength"`
	MarkdownLength int `json:"markdownLength"`
	TableCount     int `json:"tableCount"`
	APICount       int `json:"apiCount"`
}

// BudgetSnapshot records how the orchestrator's latency budget was spent.
type BudgetSnapshot struct {
	MaxLatencyMs    int64    `json:"maxLatencyMs"`
	LatencyExceeded bool     `json:"latencyExceeded"`
	TiersSkipped    []string `json:"tiersSkipped,omitempty"`
}

// Trace is the full per-request debug record.
type Trace struct {
	ID          string            `json:"id"`
	Timestamp   int64             `json:"timestamp"`
	URL         string            `json:"url"`
	Domain      string            `json:"domain"`
	FinalURL    string            `json:"finalUrl,omitempty"`
	DurationMs  int64             `json:"durationMs"`
	Success     bool              `json:"success"`
	FinalTier   string            `json:"finalTier,omitempty"`
	Fallback    bool              `json:"fallback"`
	Budget      BudgetSnapshot    `json:"budget"`
	Tiers       []TierAttempt     `json:"tiers"`
	Selectors   []SelectorAttempt `json:"selectors,omitempty"`
	Errors      []ErrorEntry      `json:"errors,omitempty"`
	Content     ContentStats      `json:"content"`
	OptionsEcho map[string]interface{} `json:"optionsEcho,omitempty"`
	SessionLoaded bool            `json:"sessionLoaded"`

	start time.Time
}

// Policy gates when a request's trace is recorded.
type Policy struct {
	Enabled            bool
	AlwaysRecord       map[string]bool
	NeverRecord        map[string]bool
	OnlyRecordFailures bool
}

func (p Policy) shouldRecord(domain string, success bool) bool {
	if p.NeverRecord[domain] {
		return false
	}
	if p.AlwaysRecord[domain] {
		return true
	}
	if !p.Enabled {
		return false
	}
	if p.OnlyRecordFailures && success {
		return false
	}
	return true
}

// Recorder stores traces with an LRU-by-timestamp retention policy.
type Recorder struct {
	mu       sync.Mutex
	policy   Policy
	maxCount int
	maxAge   time.Duration

	inflight map[string]*Trace
	order    *list.List
	byID     map[string]*list.Element
}

// New builds a Recorder with the given policy and retention bounds.
func New(policy Policy, maxCount int, maxAge time.Duration) *Recorder {
	if maxCount <= 0 {
		maxCount = 1000
	}
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &Recorder{
		policy:   policy,
		maxCount: maxCount,
		maxAge:   maxAge,
		inflight: make(map[string]*Trace),
		order:    list.New(),
		byID:     make(map[string]*list.Element),
	}
}

// Start opens a new in-flight trace for url and returns its id.
func (r *Recorder) Start(_ context.Context, rawURL string) string {
	id := uuid.New().String()
	domain := ""
	if u, err := url.Parse(rawURL); err == nil {
		domain = u.Hostname()
	}
	tr := &Trace{ID: id, Timestamp: time.Now().UnixMilli(), URL: rawURL, Domain: domain, start: time.Now()}

	r.mu.Lock()
	r.inflight[id] = tr
	r.mu.Unlock()
	return id
}

// Record appends one event to an in-flight trace.
func (r *Recorder) Record(traceID, strategy, event string, detail map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.inflight[traceID]
	if !ok {
		return
	}

	switch event {
	case "tier_attempt":
		success, _ := detail["success"].(bool)
		durationMs, _ := detail["durationMs"].(int64)
		tr.Tiers = append(tr.Tiers, TierAttempt{Name: strategy, Success: success, DurationMs: durationMs})
	case "selector_attempt":
		sa := SelectorAttempt{Source: strategy}
		if v, ok := detail["selector"].(string); ok {
			sa.Selector = v
		}
		if v, ok := detail["found"].(bool); ok {
			sa.Found = v
		}
		if v, ok := detail["selected"].(bool); ok {
			sa.Selected = v
		}
		if v, ok := detail["value"].(string); ok {
			sa.Value = v
		}
		if v, ok := detail["skipReason"].(string); ok {
			sa.SkipReason = v
		}
		if v, ok := detail["contentLength"].(int); ok {
			sa.ContentLength = v
		}
		tr.Selectors = append(tr.Selectors, sa)
	case "error":
		msg, _ := detail["message"].(string)
		recovery, _ := detail["recoveryAttempted"].(bool)
		tr.Errors = append(tr.Errors, ErrorEntry{Type: strategy, Message: msg, RecoveryAttempted: recovery, Timestamp: time.Now().UnixMilli()})
	case "fallback":
		tr.Fallback = true
	case "budget":
		if v, ok := detail["maxLatencyMs"].(int64); ok {
			tr.Budget.MaxLatencyMs = v
		}
		if v, ok := detail["latencyExceeded"].(bool); ok {
			tr.Budget.LatencyExceeded = v
		}
		if v, ok := detail["tiersSkipped"].([]string); ok {
			tr.Budget.TiersSkipped = v
		}
	}
}

// Finish closes the trace, applies the retention policy, and stores it if
// the record policy accepts it.
func (r *Recorder) Finish(traceID string, result *models.ContentResult) {
	r.mu.Lock()
	tr, ok := r.inflight[traceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.inflight, traceID)

	tr.DurationMs = time.Since(tr.start).Milliseconds()
	if result != nil {
		tr.Success = result.Error == ""
		tr.FinalURL = result.Meta.FinalURL
		tr.FinalTier = result.Meta.Strategy
		tr.Content = ContentStats{
			TextLength:     len(result.Content.Text),
			MarkdownLength: len(result.Content.Markdown),
		}
	}

	if !r.policy.shouldRecord(tr.Domain, tr.Success) {
		r.mu.Unlock()
		return
	}

	elem := r.order.PushFront(tr)
	r.byID[tr.ID] = elem
	r.enforceRetentionLocked()
	r.mu.Unlock()
}

func (r *Recorder) enforceRetentionLocked() {
	cutoff := time.Now().Add(-r.maxAge).UnixMilli()
	for r.order.Len() > 0 {
		back := r.order.Back()
		tr := back.Value.(*Trace)
		if r.order.Len() <= r.maxCount && tr.Timestamp >= cutoff {
			break
		}
		r.order.Remove(back)
		delete(r.byID, tr.ID)
	}
}

// Get returns a stored trace by id.
func (r *Recorder) Get(id string) (*Trace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*Trace), true
}

// Recent returns up to n most-recently-finished traces, newest first.
func (r *Recorder) Recent(n int) []*Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Trace, 0, n)
	for e := r.order.Front(); e != nil && len(out) < n; e = e.Next() {
		out = append(out, e.Value.(*Trace))
	}
	return out
}

var _ models.TraceRecorder = (*Recorder)(nil)
