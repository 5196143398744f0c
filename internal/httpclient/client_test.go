package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coastline/webextract/pkg/models"
)

func TestClientDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	resp, err := c.Do(context.Background(), models.HTTPRequest{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %q, want {\"ok\":true}", resp.Body)
	}
	if resp.Headers["X-Test"] != "yes" {
		t.Errorf("Headers[X-Test] = %q, want yes", resp.Headers["X-Test"])
	}

	m := c.Metrics()
	if m.Successes != 1 || m.Requests != 1 {
		t.Errorf("Metrics() = %+v, want 1 request / 1 success", m)
	}
}

func TestClientDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 10 * time.Millisecond})
	_, err := c.Do(context.Background(), models.HTTPRequest{Method: "GET", URL: srv.URL})
	if err == nil {
		t.Fatal("Do() error = nil, want timeout error")
	}

	m := c.Metrics()
	if m.Failures != 1 {
		t.Errorf("Metrics().Failures = %d, want 1", m.Failures)
	}
}

func TestClientDoPersistsCookiesAcrossRequests(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil {
			gotCookie = ck.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	if _, err := c.Do(context.Background(), models.HTTPRequest{Method: "GET", URL: srv.URL}); err != nil {
		t.Fatalf("Do() #1 error = %v", err)
	}
	if gotCookie != "" {
		t.Fatalf("gotCookie before jar has anything = %q, want empty", gotCookie)
	}

	if _, err := c.Do(context.Background(), models.HTTPRequest{Method: "GET", URL: srv.URL}); err != nil {
		t.Fatalf("Do() #2 error = %v", err)
	}
	if gotCookie != "abc123" {
		t.Errorf("gotCookie on second request = %q, want abc123 from jar", gotCookie)
	}
}

func TestClientDoFollowsRedirects(t *testing.T) {
	var finalHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		finalHits++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	resp, err := c.Do(context.Background(), models.HTTPRequest{Method: "GET", URL: srv.URL + "/start"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200 after following redirect", resp.StatusCode)
	}
	if string(resp.Body) != "landed" {
		t.Errorf("Body = %q, want landed", resp.Body)
	}
	if finalHits != 1 {
		t.Errorf("finalHits = %d, want 1", finalHits)
	}
	if resp.FinalURL != srv.URL+"/end" {
		t.Errorf("FinalURL = %q, want %q", resp.FinalURL, srv.URL+"/end")
	}
}

func TestClientMetricsTracksConnectionReuse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	for i := 0; i < 3; i++ {
		if _, err := c.Do(context.Background(), models.HTTPRequest{Method: "GET", URL: srv.URL}); err != nil {
			t.Fatalf("Do() #%d error = %v", i, err)
		}
	}

	m := c.Metrics()
	if m.NewConnections != 1 {
		t.Errorf("NewConnections = %d, want 1 (one new host)", m.NewConnections)
	}
	if m.ConnectionsReused != 2 {
		t.Errorf("ConnectionsReused = %d, want 2 (requests 2 and 3)", m.ConnectionsReused)
	}
	for host, n := range m.ActiveSockets {
		if n != 0 {
			t.Errorf("ActiveSockets[%s] = %d after all requests completed, want 0", host, n)
		}
	}
	for host, n := range m.PendingRequests {
		if n != 0 {
			t.Errorf("PendingRequests[%s] = %d after all requests completed, want 0", host, n)
		}
	}
}

func TestClientDoSetsDefaultMethod(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	if _, err := c.Do(context.Background(), models.HTTPRequest{URL: srv.URL}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
}
