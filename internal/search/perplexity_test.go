package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearch(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": " A new sauna opened in Peckham. "}}],
			"citations": ["https://news.example.com/peckham"],
			"search_results": [{"title": "Peckham sauna opens", "url": "https://news.example.com/peckham", "date": "2026-02-08"}]
		}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL + "/", Recency: "week"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := c.Search(context.Background(), "London sauna new openings")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Model != "sonar" || got.SearchRecencyFilter != "week" || !got.ReturnCitations {
		t.Errorf("unexpected request %+v", got)
	}
	if a.Content != "A new sauna opened in Peckham." || len(a.Citations) != 1 {
		t.Errorf("unexpected answer %+v", a)
	}
	if len(a.Results) != 1 || a.Results[0].Date != "2026-02-08" {
		t.Errorf("unexpected results %+v", a.Results)
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c, _ := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Search(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
