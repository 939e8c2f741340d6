package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "sauna-briefing") {
			t.Errorf("missing user agent")
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second)
	html, err := f.Fetch(context.Background(), srv.URL+"/events")
	if err != nil || !strings.Contains(html, "ok") {
		t.Fatalf("Fetch: %q %v", html, err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestCloudflareFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content" || r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"success": true, "result": "<div class=\"event\">Aufguss</div>"}`))
	}))
	defer srv.Close()

	c := NewCloudflare("acct", "tok", time.Second)
	c.baseURL = srv.URL
	html, err := c.Fetch(context.Background(), "https://venue.example.com/whats-on")
	if err != nil || !strings.Contains(html, "Aufguss") {
		t.Fatalf("Fetch: %q %v", html, err)
	}
	if _, err := c.Fetch(context.Background(), "not a url"); err == nil {
		t.Fatalf("expected invalid url error")
	}
}
